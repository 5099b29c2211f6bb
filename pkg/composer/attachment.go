package composer

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedAudio = errors.New("unsupported audio file")
	ErrUnsupportedImage = errors.New("unsupported image file")
)

// AudioExtensions lists the accepted audio suffixes. Only the file name is
// checked, not the content.
var AudioExtensions = []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm", ".x-m4a"}

// IsAudioFile reports whether name carries one of the accepted audio suffixes.
func IsAudioFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range AudioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// NewAudioAttachment validates path by suffix and describes it.
func NewAudioAttachment(path string) (*conversation.Attachment, error) {
	if !IsAudioFile(path) {
		return nil, errors.Wrapf(ErrUnsupportedAudio, "%q", filepath.Base(path))
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %q", path)
	}
	return &conversation.Attachment{
		Name:     fi.Name(),
		Path:     path,
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Size:     fi.Size(),
	}, nil
}

// NewImageAttachment accepts any file whose MIME type starts with "image/".
// The type comes from the extension, or from sniffing the first bytes when the
// extension is unknown.
func NewImageAttachment(path string) (*conversation.Attachment, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %q", path)
	}
	if fi.IsDir() {
		return nil, errors.Wrapf(ErrUnsupportedImage, "%q is a directory", path)
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt, err = sniff(path)
		if err != nil {
			return nil, err
		}
	}
	if !strings.HasPrefix(mt, "image/") {
		return nil, errors.Wrapf(ErrUnsupportedImage, "%q has type %s", fi.Name(), mt)
	}
	return &conversation.Attachment{
		Name:     fi.Name(),
		Path:     path,
		MIMEType: mt,
		Size:     fi.Size(),
	}, nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %q", path)
	}
	defer func() {
		_ = f.Close()
	}()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Wrapf(err, "read %q", path)
	}
	return http.DetectContentType(buf[:n]), nil
}
