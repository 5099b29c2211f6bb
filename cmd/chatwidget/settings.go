package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-go-golems/chatwidget/pkg/config"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	glazed_settings "github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func openSettings(parsedValues *values.Values) (settings.Watcher, func() error, error) {
	sc, err := config.LoadSettings(parsedValues)
	if err != nil {
		return nil, nil, err
	}
	return config.OpenSettings(sc)
}

type SettingsGetCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*SettingsGetCommand)(nil)

func NewSettingsGetCommand() (*SettingsGetCommand, error) {
	glazedSection, err := glazed_settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	appSettingSection, err := config.NewAppSettingSection()
	if err != nil {
		return nil, err
	}
	desc := cmds.NewCommandDescription(
		"get",
		cmds.WithShort("Print the current app setting"),
		cmds.WithSections(glazedSection, appSettingSection),
	)
	return &SettingsGetCommand{CommandDescription: desc}, nil
}

func (c *SettingsGetCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedValues *values.Values,
	gp middlewares.Processor,
) error {
	w, closeFn, err := openSettings(parsedValues)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	s, found, err := w.Read(ctx)
	if err != nil {
		return err
	}
	return gp.AddRow(ctx, settingRow(s, found))
}

func settingRow(s settings.AppSetting, found bool) types.Row {
	var imageInput interface{}
	if s.ImageInput != nil {
		imageInput = *s.ImageInput
	}
	return types.NewRow(
		types.MRP("found", found),
		types.MRP("url", s.URL),
		types.MRP("image_input", imageInput),
		types.MRP("image_mode", s.ImageModeEnabled()),
	)
}

type SettingsSetCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = (*SettingsSetCommand)(nil)

type SettingsSetSettings struct {
	URL        string `glazed:"url"`
	ImageInput string `glazed:"image-input"`
}

func NewSettingsSetCommand() (*SettingsSetCommand, error) {
	appSettingSection, err := config.NewAppSettingSection()
	if err != nil {
		return nil, err
	}
	desc := cmds.NewCommandDescription(
		"set",
		cmds.WithShort("Change the app setting, running widgets pick it up"),
		cmds.WithFlags(
			fields.New("url", fields.TypeString,
				fields.WithHelp("Backend URL, "+settings.VisionEndpoint+" enables image input"),
				fields.WithDefault("")),
			fields.New("image-input", fields.TypeChoice,
				fields.WithHelp("Enable or disable image input explicitly"),
				fields.WithChoices("", "on", "off"),
				fields.WithDefault("")),
		),
		cmds.WithSections(appSettingSection),
	)
	return &SettingsSetCommand{CommandDescription: desc}, nil
}

func (c *SettingsSetCommand) Run(ctx context.Context, parsedValues *values.Values) error {
	ss := &SettingsSetSettings{}
	if err := parsedValues.DecodeSectionInto(values.DefaultSlug, ss); err != nil {
		return err
	}
	w, closeFn, err := openSettings(parsedValues)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	writer, ok := w.(settings.Writer)
	if !ok {
		return errors.New("settings backend is read-only")
	}
	s, _, err := w.Read(ctx)
	if err != nil {
		return err
	}
	s = applySet(s, ss)
	if err := writer.Write(ctx, s); err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "image input: %t\n", s.ImageModeEnabled())
	return err
}

// applySet leaves fields whose flag was not given untouched.
func applySet(s settings.AppSetting, ss *SettingsSetSettings) settings.AppSetting {
	if ss.URL != "" {
		s.URL = ss.URL
	}
	switch ss.ImageInput {
	case "on":
		v := true
		s.ImageInput = &v
	case "off":
		v := false
		s.ImageInput = &v
	}
	return s
}

func newSettingsCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the persisted app setting",
	}

	getCommand, err := NewSettingsGetCommand()
	if err != nil {
		return nil, err
	}
	cobraGetCmd, err := cli.BuildCobraCommand(getCommand, parserOptions()...)
	if err != nil {
		return nil, err
	}
	setCommand, err := NewSettingsSetCommand()
	if err != nil {
		return nil, err
	}
	cobraSetCmd, err := cli.BuildCobraCommand(setCommand, parserOptions()...)
	if err != nil {
		return nil, err
	}

	cmd.AddCommand(cobraGetCmd, cobraSetCmd)
	return cmd, nil
}
