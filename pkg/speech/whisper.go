package speech

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// OutputPlaceholder is replaced by the clip path in the recorder command.
const OutputPlaceholder = "{output}"

// DefaultRecorder records five seconds of 16 kHz mono audio from the default input.
var DefaultRecorder = []string{"sox", "-d", "-q", "-r", "16000", "-c", "1", OutputPlaceholder, "trim", "0", "5"}

type WhisperSettings struct {
	APIKey   string
	BaseURL  string
	Model    string
	Recorder []string
	TempDir  string

	// Language overrides the language derived from the session locale.
	Language string
}

// WhisperCapability records a clip with an external command and transcribes
// it with the OpenAI transcription API.
type WhisperCapability struct {
	client   *openai.Client
	settings WhisperSettings
}

var _ Capability = &WhisperCapability{}

func NewWhisperCapability(s WhisperSettings) *WhisperCapability {
	if s.Model == "" {
		s.Model = openai.Whisper1
	}
	if len(s.Recorder) == 0 {
		s.Recorder = DefaultRecorder
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	return &WhisperCapability{
		client:   openai.NewClientWithConfig(cfg),
		settings: s,
	}
}

// Available requires an API key and the recorder binary on PATH.
func (w *WhisperCapability) Available() bool {
	if w.settings.APIKey == "" {
		return false
	}
	if _, err := exec.LookPath(w.settings.Recorder[0]); err != nil {
		log.Debug().Err(err).Str("component", "speech").Str("recorder", w.settings.Recorder[0]).Msg("recorder not found")
		return false
	}
	return true
}

func (w *WhisperCapability) NewSession(cfg SessionConfig) (Session, error) {
	lang := w.settings.Language
	if lang == "" {
		lang, _, _ = strings.Cut(cfg.Locale, "-")
	}
	return &whisperSession{capability: w, language: strings.ToLower(lang)}, nil
}

func recorderArgs(recorder []string, output string) []string {
	args := make([]string, len(recorder))
	for i, a := range recorder {
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}
	return args
}

type whisperSession struct {
	capability *WhisperCapability
	language   string

	mu        sync.Mutex
	listeners Listeners
	started   bool
}

func (s *whisperSession) SetListeners(l Listeners) {
	s.mu.Lock()
	s.listeners = l
	s.mu.Unlock()
}

func (s *whisperSession) current() Listeners {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners
}

func (s *whisperSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("speech session already started")
	}
	s.started = true
	s.mu.Unlock()

	f, err := os.CreateTemp(s.capability.settings.TempDir, "chatwidget-*.wav")
	if err != nil {
		return errors.Wrap(err, "create clip file")
	}
	path := f.Name()
	_ = f.Close()

	go s.run(ctx, path)
	return nil
}

func (s *whisperSession) run(ctx context.Context, path string) {
	defer func() {
		_ = os.Remove(path)
		if l := s.current(); l.OnEnd != nil {
			l.OnEnd()
		}
	}()

	text, err := s.transcribe(ctx, path)
	if err != nil {
		if l := s.current(); l.OnError != nil {
			l.OnError(err)
		}
		return
	}
	if text == "" {
		return
	}
	if l := s.current(); l.OnResult != nil {
		l.OnResult(text)
	}
}

func (s *whisperSession) transcribe(ctx context.Context, path string) (string, error) {
	args := recorderArgs(s.capability.settings.Recorder, path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "record clip: %s", strings.TrimSpace(string(out)))
	}

	resp, err := s.capability.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.capability.settings.Model,
		FilePath: path,
		Language: s.language,
	})
	if err != nil {
		return "", errors.Wrap(err, "transcribe clip")
	}
	return strings.TrimSpace(resp.Text), nil
}
