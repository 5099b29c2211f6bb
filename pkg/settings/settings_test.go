package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestImageModeEnabled(t *testing.T) {
	require.True(t, AppSetting{URL: VisionEndpoint}.ImageModeEnabled())
	require.True(t, AppSetting{URL: " " + VisionEndpoint + " "}.ImageModeEnabled())
	require.False(t, AppSetting{URL: "http://localhost:8092/v1/gpt/ask"}.ImageModeEnabled())
	require.False(t, AppSetting{}.ImageModeEnabled())

	require.True(t, AppSetting{URL: "http://other", ImageInput: boolPtr(true)}.ImageModeEnabled())
	require.False(t, AppSetting{URL: VisionEndpoint, ImageInput: boolPtr(false)}.ImageModeEnabled())
}

func TestParse_AcceptsJSONAndYAML(t *testing.T) {
	s, err := Parse([]byte(`{"url": "` + VisionEndpoint + `"}`))
	require.NoError(t, err)
	require.Equal(t, VisionEndpoint, s.URL)

	s, err = Parse([]byte("url: http://x\nimage_input: true\n"))
	require.NoError(t, err)
	require.Equal(t, "http://x", s.URL)
	require.True(t, s.ImageModeEnabled())

	_, err = Parse([]byte("  "))
	require.Error(t, err)
}

func TestStaticWatcher(t *testing.T) {
	w := NewStaticWatcher()
	_, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.False(t, found)

	var got []AppSetting
	unsubscribe := w.Subscribe(func(s AppSetting) { got = append(got, s) })
	require.NoError(t, w.Write(context.Background(), AppSetting{URL: VisionEndpoint}))
	unsubscribe()
	require.NoError(t, w.Write(context.Background(), AppSetting{URL: "x"}))

	require.Len(t, got, 1)
	s, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "x", s.URL)
}

func TestFileWatcher_ReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app-setting.yaml")
	w, err := NewFileWatcher(path)
	require.NoError(t, err)

	_, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, w.Write(context.Background(), AppSetting{URL: VisionEndpoint}))
	s, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, s.ImageModeEnabled())
}

func TestFileWatcher_NotifiesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app-setting.json")
	w, err := NewFileWatcher(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []AppSetting
	w.Subscribe(func(s AppSetting) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"`+VisionEndpoint+`"}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].ImageModeEnabled()
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSQLiteWatcher_PollsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	w, err := NewSQLiteWatcher(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.False(t, found)

	var mu sync.Mutex
	var got []AppSetting
	w.Subscribe(func(s AppSetting) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	other, err := NewSQLiteWatcher(path, time.Second)
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	require.NoError(t, other.Write(context.Background(), AppSetting{URL: VisionEndpoint}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].URL == VisionEndpoint
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, VisionEndpoint, s.URL)
}
