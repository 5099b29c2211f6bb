package main

import (
	"context"

	"github.com/go-go-golems/chatwidget/pkg/chatrunner"
	"github.com/go-go-golems/chatwidget/pkg/config"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
)

type RunCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = (*RunCommand)(nil)

func NewRunCommand() (*RunCommand, error) {
	sections, err := config.NewSections()
	if err != nil {
		return nil, errors.Wrap(err, "build config sections")
	}
	desc := cmds.NewCommandDescription(
		"run",
		cmds.WithShort("Open the chat widget"),
		cmds.WithLong("Open the chat widget. Text, image and audio submissions go to the echo action provider."),
		cmds.WithSections(sections...),
	)
	return &RunCommand{CommandDescription: desc}, nil
}

func (c *RunCommand) Run(ctx context.Context, parsedValues *values.Values) error {
	cfg, err := config.Load(parsedValues)
	if err != nil {
		return err
	}
	session, err := chatrunner.NewChatBuilder().
		WithContext(ctx).
		WithConfig(cfg).
		Build()
	if err != nil {
		return errors.Wrap(err, "build chat session")
	}
	return session.Run()
}
