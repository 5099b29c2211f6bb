package chatrunner

import (
	"context"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/actions"
	"github.com/go-go-golems/chatwidget/pkg/bus"
	"github.com/go-go-golems/chatwidget/pkg/composer"
	"github.com/go-go-golems/chatwidget/pkg/config"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/metrics"
	"github.com/go-go-golems/chatwidget/pkg/plugins"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/scroll"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/go-go-golems/chatwidget/pkg/speech"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ChatSession holds the wired widget and runs it.
type ChatSession struct {
	ctx    context.Context
	config config.Config

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store    *conversation.Store
	renderer *render.Renderer
	plugins  *plugins.Runtime
	scroller *scroll.Controller
	bus      *bus.Bus
	provider *actions.EchoProvider
	composer *composer.Composer
	speech   *speech.Adapter
	watcher  settings.Watcher
	closeFns []func() error

	model   *ui.Model
	program *tea.Program
}

// ChatBuilder provides a fluent API for configuring a chat session.
type ChatBuilder struct {
	err            error
	ctx            context.Context
	config         config.Config
	hasConfig      bool
	registry       *prometheus.Registry
	capability     speech.Capability
	watcher        settings.Watcher
	programOptions []tea.ProgramOption
	markdownStyle  string
	components     render.Components
	scrollObserver func()
}

func NewChatBuilder() *ChatBuilder {
	return &ChatBuilder{
		ctx:            context.Background(),
		programOptions: []tea.ProgramOption{tea.WithAltScreen()},
	}
}

func (b *ChatBuilder) WithContext(ctx context.Context) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if ctx == nil {
		b.err = errors.New("context cannot be nil")
		return b
	}
	b.ctx = ctx
	return b
}

// WithConfig sets the widget configuration. (Required)
func (b *ChatBuilder) WithConfig(c config.Config) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if err := c.Validate(); err != nil {
		b.err = err
		return b
	}
	b.config = c
	b.hasConfig = true
	return b
}

// WithRegistry sets the prometheus registry the widget metrics are registered on.
// A fresh registry is used otherwise.
func (b *ChatBuilder) WithRegistry(reg *prometheus.Registry) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.registry = reg
	return b
}

// WithSpeechCapability replaces the transcription capability built from the config.
func (b *ChatBuilder) WithSpeechCapability(c speech.Capability) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.capability = c
	return b
}

// WithSettingsWatcher replaces the settings backend built from the config.
func (b *ChatBuilder) WithSettingsWatcher(w settings.Watcher) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("settings watcher cannot be nil")
		return b
	}
	b.watcher = w
	return b
}

// WithProgramOptions adds options for configuring the bubbletea program.
func (b *ChatBuilder) WithProgramOptions(opts ...tea.ProgramOption) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.programOptions = append(b.programOptions, opts...)
	return b
}

// WithMarkdownStyle sets the glamour style of bot messages.
func (b *ChatBuilder) WithMarkdownStyle(style string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.markdownStyle = style
	return b
}

// WithComponents overrides the header and avatars. Set fields win over
// components registered by plugin scripts.
func (b *ChatBuilder) WithComponents(c render.Components) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.components = c
	return b
}

// WithScrollObserver registers fn to run on every scroll to bottom
// notification, after the UI has been told.
func (b *ChatBuilder) WithScrollObserver(fn func()) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.scrollObserver = fn
	return b
}

func mergeComponents(base, override render.Components) render.Components {
	if override.Header != nil {
		base.Header = override.Header
	}
	if override.BotAvatar != nil {
		base.BotAvatar = override.BotAvatar
	}
	if override.UserAvatar != nil {
		base.UserAvatar = override.UserAvatar
	}
	return base
}

// Build wires every component. Nothing runs until ChatSession.Run.
func (b *ChatBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasConfig {
		return nil, errors.New("config is required (use WithConfig)")
	}

	cs := &ChatSession{
		ctx:      b.ctx,
		config:   b.config,
		registry: b.registry,
	}
	if err := cs.wire(b); err != nil {
		_ = cs.close()
		return nil, err
	}
	return cs, nil
}

func (cs *ChatSession) wire(b *ChatBuilder) error {
	c := cs.config

	if cs.registry == nil {
		cs.registry = prometheus.NewRegistry()
	}
	m, err := metrics.New(cs.registry)
	if err != nil {
		return err
	}
	cs.metrics = m

	initial, err := config.LoadInitialMessages(c.InitialMessagesFile)
	if err != nil {
		return err
	}
	cs.store, err = conversation.NewStore(conversation.State{Messages: initial})
	if err != nil {
		return errors.Wrap(err, "initial messages")
	}

	onScroll := b.scrollObserver
	cs.scroller = scroll.NewController(
		func() {
			cs.send(ui.ScrollMsg{})
			if onScroll != nil {
				onScroll()
			}
		},
		scroll.WithDelay(c.ScrollDelay),
		scroll.WithDisabled(c.DisableScrollToBottom),
	)

	cs.bus, err = bus.New()
	if err != nil {
		return err
	}
	cs.closeFns = append(cs.closeFns, cs.bus.Close)

	cs.provider = actions.NewEchoProvider(cs.store, actions.WithDelay(c.ReplyDelay))
	providerActions := cs.provider.Actions()

	widgets := render.NewWidgetRegistry()
	cs.provider.RegisterWidgets(widgets)

	cs.plugins = plugins.NewRuntime()
	for _, p := range c.Plugins {
		if err := cs.plugins.LoadScriptFile(p); err != nil {
			return err
		}
	}
	cs.plugins.InstallWidgets(widgets)

	cs.renderer = render.NewRenderer(cs.store,
		render.WithWidgets(widgets),
		render.WithCustomMessages(cs.plugins.CustomMessages(nil)),
		render.WithScroll(cs.scroller.ScrollToBottom),
		render.WithActionProvider(cs.provider),
		render.WithActions(providerActions),
		render.WithMetrics(cs.metrics),
		render.WithComponents(mergeComponents(cs.plugins.Components(), b.components)),
	)

	capability := b.capability
	if capability == nil {
		capability = speech.NewWhisperCapability(speech.WhisperSettings{
			APIKey:   c.Speech.APIKey,
			BaseURL:  c.Speech.BaseURL,
			Model:    c.Speech.Model,
			Recorder: c.Speech.Recorder,
			Language: c.Speech.Language,
		})
	}

	cs.watcher = b.watcher
	if cs.watcher == nil {
		w, closeFn, err := config.OpenSettings(c.Settings)
		if err != nil {
			return err
		}
		cs.watcher = w
		cs.closeFns = append(cs.closeFns, closeFn)
	}
	current, found, err := cs.watcher.Read(cs.ctx)
	if err != nil {
		log.Warn().Err(err).Str("component", "chatrunner").Msg("could not read app setting, starting in audio mode")
	} else if !found {
		log.Debug().Str("component", "chatrunner").Msg("no app setting stored, starting in audio mode")
	}

	// The adapter and the composer point at each other through these
	// callbacks; both only run on the UI loop.
	var model *ui.Model
	cs.speech = speech.NewAdapter(capability,
		speech.WithDispatch(cs.dispatch),
		speech.WithTranscriptHandler(func(transcript string) { cs.composer.ApplyTranscript(transcript) }),
		speech.WithNotifier(func(notice string) { model.Notify(notice) }),
		speech.WithMetrics(cs.metrics),
	)

	composerOpts := []composer.Option{
		composer.WithMessageParser(cs.bus.Parser()),
		composer.WithScroller(cs.scroller),
		composer.WithCapturer(cs.speech),
		composer.WithMetrics(cs.metrics),
		composer.WithImageMode(current.ImageModeEnabled()),
	}
	if v := c.Validator(); v != nil {
		composerOpts = append(composerOpts, composer.WithValidator(v))
	}
	cs.composer, err = composer.New(cs.store, composerOpts...)
	if err != nil {
		return err
	}

	model = ui.NewModel(cs.ctx, ui.Options{
		Header:        c.Header(),
		Placeholder:   c.Placeholder,
		Preamble:      c.Preamble,
		BotName:       c.BotName,
		MarkdownStyle: b.markdownStyle,
		Store:         cs.store,
		Renderer:      cs.renderer,
		Composer:      cs.composer,
		Indicator:     cs.speech,
	})
	cs.model = model
	cs.program = tea.NewProgram(model, append(b.programOptions, tea.WithContext(cs.ctx))...)
	return nil
}

// send delivers msg to the UI loop without blocking the caller.
func (cs *ChatSession) send(msg tea.Msg) {
	if cs.program == nil {
		return
	}
	go cs.program.Send(msg)
}

func (cs *ChatSession) dispatch(fn func()) {
	cs.send(ui.DispatchMsg{Fn: fn})
}

func (cs *ChatSession) Store() *conversation.Store { return cs.store }

func (cs *ChatSession) Composer() *composer.Composer { return cs.composer }

func (cs *ChatSession) Model() *ui.Model { return cs.model }

func (cs *ChatSession) Registry() *prometheus.Registry { return cs.registry }

// Run starts the action provider, the settings watcher, the optional metrics
// endpoint and the UI. It returns when the UI exits.
func (cs *ChatSession) Run() error {
	defer func() {
		if err := cs.close(); err != nil {
			log.Warn().Err(err).Str("component", "chatrunner").Msg("shutdown")
		}
	}()

	eg, childCtx := errgroup.WithContext(cs.ctx)
	childCtx, cancel := context.WithCancel(childCtx)
	defer cancel()

	defer cs.subscribe()()

	// the program only watches cs.ctx, a failing goroutine has to stop it
	go func() {
		<-childCtx.Done()
		cs.program.Quit()
	}()

	eg.Go(func() error {
		log.Debug().Str("component", "chatrunner").Msg("starting action provider")
		return cs.bus.Run(childCtx, cs.provider.Handle)
	})

	eg.Go(func() error {
		err := cs.watcher.Run(childCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// A broken backend leaves the widget in its current mode.
			log.Warn().Err(err).Str("component", "chatrunner").Msg("settings watcher stopped")
		}
		return nil
	})

	if cs.config.MetricsAddr != "" {
		eg.Go(func() error {
			return cs.serveMetrics(childCtx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		log.Debug().Str("component", "chatrunner").Msg("starting Bubble Tea program")
		_, err := cs.program.Run()
		log.Debug().Err(err).Str("component", "chatrunner").Msg("Bubble Tea program finished")
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errors.Wrap(err, "run ui")
		}
		return nil
	})

	err := eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// subscribe forwards store and setting changes to the UI. Every store change
// also requests a scroll to the newest message.
func (cs *ChatSession) subscribe() func() {
	unsubscribeStore := cs.store.Subscribe(func(conversation.State) {
		cs.send(ui.StateChangedMsg{})
		cs.scroller.ScrollToBottom()
	})
	unsubscribeSettings := cs.watcher.Subscribe(func(s settings.AppSetting) {
		cs.send(ui.SettingChangedMsg{Setting: s})
	})
	return func() {
		unsubscribeStore()
		unsubscribeSettings()
	}
}

func (cs *ChatSession) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(cs.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cs.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("component", "chatrunner").Str("addr", cs.config.MetricsAddr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

func (cs *ChatSession) close() error {
	if cs.speech != nil {
		cs.speech.Close()
	}
	if cs.scroller != nil {
		cs.scroller.Close()
	}
	var ret error
	for i := len(cs.closeFns) - 1; i >= 0; i-- {
		if err := cs.closeFns[i](); err != nil && ret == nil {
			ret = err
		}
	}
	cs.closeFns = nil
	return ret
}
