package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/chatwidget/pkg/config"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/stretchr/testify/require"
)

func TestSettingRow(t *testing.T) {
	row := settingRow(settings.AppSetting{URL: settings.VisionEndpoint}, true)
	v, ok := row.Get("image_mode")
	require.True(t, ok)
	require.Equal(t, true, v)
	v, _ = row.Get("image_input")
	require.Nil(t, v)
	v, _ = row.Get("url")
	require.Equal(t, settings.VisionEndpoint, v)
}

func TestApplySet(t *testing.T) {
	s := applySet(settings.AppSetting{URL: "http://old"}, &SettingsSetSettings{ImageInput: "off"})
	require.Equal(t, "http://old", s.URL)
	require.NotNil(t, s.ImageInput)
	require.False(t, s.ImageModeEnabled())

	s = applySet(s, &SettingsSetSettings{URL: settings.VisionEndpoint})
	require.False(t, *s.ImageInput)
	require.Equal(t, settings.VisionEndpoint, s.URL)
}

func TestSettingsSetCommand_WritesFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-setting.yaml")
	c, err := NewSettingsSetCommand()
	require.NoError(t, err)

	parsed := values.New()
	require.NoError(t, sources.Execute(c.Description().Schema, parsed,
		sources.FromMap(map[string]map[string]interface{}{
			values.DefaultSlug: {"url": settings.VisionEndpoint},
			config.AppSettingSlug: {
				"settings-backend": config.BackendFile,
				"settings-file":    path,
			},
		}),
		sources.FromDefaults(),
	))
	require.NoError(t, c.Run(context.Background(), parsed))

	w, err := settings.NewFileWatcher(path)
	require.NoError(t, err)
	s, found, err := w.Read(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, s.ImageModeEnabled())
}

func TestCommandsBuild(t *testing.T) {
	_, err := NewRunCommand()
	require.NoError(t, err)
	_, err = newSettingsCommand()
	require.NoError(t, err)
}
