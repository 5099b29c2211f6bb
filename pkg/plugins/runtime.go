package plugins

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Runtime hosts JavaScript custom messages and widgets.
//
// Scripts register through three globals:
//
//	registerCustomMessage(type, fn(props) -> string)
//	registerWidget(name, fn(ctx) -> {kind, title, body, options})
//	registerComponent("header", fn(actionProvider) -> string)
//	registerComponent("botAvatar" | "userAvatar", fn() -> string)
//
// props exposes payload, actions, actionProvider, messages, appendMessage(msg)
// and scrollToBottom(). ctx exposes payload, actions, messages and
// scrollToBottom(). Exceptions thrown by a script are logged and render as
// nothing.
type Runtime struct {
	mu sync.Mutex

	vm *goja.Runtime

	messages   map[string]goja.Callable
	widgets    map[string]goja.Callable
	components map[string]goja.Callable
}

// Component names accepted by registerComponent.
const (
	ComponentHeader     = "header"
	ComponentBotAvatar  = "botAvatar"
	ComponentUserAvatar = "userAvatar"
)

func NewRuntime() *Runtime {
	r := &Runtime{
		vm:         goja.New(),
		messages:   map[string]goja.Callable{},
		widgets:    map[string]goja.Callable{},
		components: map[string]goja.Callable{},
	}
	r.installHostAPIs()
	return r
}

func (r *Runtime) installHostAPIs() {
	if err := r.vm.Set("registerCustomMessage", func(call goja.FunctionCall) goja.Value {
		name, fn := r.registration("registerCustomMessage(type, fn)", call)
		r.messages[name] = fn
		return goja.Undefined()
	}); err != nil {
		panic(err)
	}

	if err := r.vm.Set("registerWidget", func(call goja.FunctionCall) goja.Value {
		name, fn := r.registration("registerWidget(name, fn)", call)
		r.widgets[name] = fn
		return goja.Undefined()
	}); err != nil {
		panic(err)
	}

	if err := r.vm.Set("registerComponent", func(call goja.FunctionCall) goja.Value {
		name, fn := r.registration("registerComponent(name, fn)", call)
		switch name {
		case ComponentHeader, ComponentBotAvatar, ComponentUserAvatar:
		default:
			panic(r.vm.NewTypeError(fmt.Sprintf("registerComponent: unknown component %q", name)))
		}
		r.components[name] = fn
		return goja.Undefined()
	}); err != nil {
		panic(err)
	}
}

func (r *Runtime) registration(signature string, call goja.FunctionCall) (string, goja.Callable) {
	if len(call.Arguments) < 2 {
		panic(r.vm.NewTypeError(signature + " requires 2 arguments"))
	}
	name := strings.TrimSpace(call.Arguments[0].String())
	if name == "" {
		panic(r.vm.NewTypeError(signature + ": name must be non-empty"))
	}
	if name == conversation.TypeBot || name == conversation.TypeUser {
		panic(r.vm.NewTypeError(fmt.Sprintf("%s: %q is reserved", signature, name)))
	}
	fn, ok := goja.AssertFunction(call.Arguments[1])
	if !ok {
		panic(r.vm.NewTypeError(signature + ": second argument must be a function"))
	}
	return name, fn
}

func (r *Runtime) LoadScriptFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("plugins: empty script path")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "plugins: read script %q", path)
	}
	return r.LoadScriptSource(path, string(blob))
}

func (r *Runtime) LoadScriptSource(name string, source string) error {
	if strings.TrimSpace(name) == "" {
		name = "plugin.js"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.vm.RunScript(name, source); err != nil {
		return errors.Wrapf(err, "plugins: run script %q", name)
	}
	log.Debug().Str("component", "plugins").Str("script", name).Msg("loaded plugin script")
	return nil
}

func (r *Runtime) MessageTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.messages)
}

func (r *Runtime) WidgetNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.widgets)
}

func (r *Runtime) ComponentNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.components)
}

// Components returns the registered overrides. Components a script did not
// register stay nil.
func (r *Runtime) Components() render.Components {
	ret := render.Components{}
	for _, name := range r.ComponentNames() {
		call := r.component(name)
		switch name {
		case ComponentHeader:
			ret.Header = func(actionProvider any) string { return call(actionProvider) }
		case ComponentBotAvatar:
			ret.BotAvatar = func() string { return call(nil) }
		case ComponentUserAvatar:
			ret.UserAvatar = func() string { return call(nil) }
		}
	}
	return ret
}

// CustomMessages returns a renderer for every registered custom message type.
// extra entries are kept unless a script registered the same type.
func (r *Runtime) CustomMessages(extra render.CustomMessages) render.CustomMessages {
	ret := render.CustomMessages{}
	for k, v := range extra {
		ret[k] = v
	}
	for _, name := range r.MessageTypes() {
		ret[name] = r.customMessage(name)
	}
	return ret
}

// InstallWidgets registers every script widget in reg.
func (r *Runtime) InstallWidgets(reg *render.WidgetRegistry) {
	for _, name := range r.WidgetNames() {
		reg.Register(name, r.widget(name))
	}
}

func (r *Runtime) customMessage(name string) render.CustomMessageFunc {
	return func(props render.CustomProps) string {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn := r.messages[name]
		ret, err := fn(goja.Undefined(), r.vm.ToValue(r.propsObject(props)))
		if err != nil {
			log.Warn().Err(err).Str("component", "plugins").Str("type", name).Msg("custom message threw")
			return ""
		}
		if goja.IsUndefined(ret) || goja.IsNull(ret) {
			return ""
		}
		return ret.String()
	}
}

func (r *Runtime) component(name string) func(arg any) string {
	return func(arg any) string {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn := r.components[name]
		args := []goja.Value{}
		if arg != nil {
			args = append(args, r.vm.ToValue(arg))
		}
		ret, err := fn(goja.Undefined(), args...)
		if err != nil {
			log.Warn().Err(err).Str("component", "plugins").Str("override", name).Msg("component threw")
			return ""
		}
		if goja.IsUndefined(ret) || goja.IsNull(ret) {
			return ""
		}
		return ret.String()
	}
}

func (r *Runtime) widget(name string) render.WidgetFunc {
	return func(ctx render.WidgetContext) *render.Widget {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn := r.widgets[name]
		obj := map[string]any{
			"payload":        ctx.Payload,
			"actions":        ctx.Actions,
			"messages":       messagesToJS(ctx.State.Messages),
			"scrollToBottom": scrollFunc(ctx.Scroll),
		}
		ret, err := fn(goja.Undefined(), r.vm.ToValue(obj))
		if err != nil {
			log.Warn().Err(err).Str("component", "plugins").Str("widget", name).Msg("widget threw")
			return nil
		}
		return decodeWidget(name, ret)
	}
}

func (r *Runtime) propsObject(props render.CustomProps) map[string]any {
	messages := []map[string]any{}
	if props.Read != nil {
		messages = messagesToJS(props.Read().Messages)
	}
	return map[string]any{
		"payload":        props.Payload,
		"actions":        props.Actions,
		"actionProvider": props.ActionProvider,
		"messages":       messages,
		"scrollToBottom": scrollFunc(props.Scroll),
		"appendMessage": func(call goja.FunctionCall) goja.Value {
			if props.Mutate == nil {
				panic(r.vm.NewTypeError("appendMessage: conversation is read-only"))
			}
			m, err := decodeMessage(call.Argument(0))
			if err != nil {
				panic(r.vm.NewTypeError(err.Error()))
			}
			if err := props.Mutate(conversation.Append(m)); err != nil {
				panic(r.vm.NewGoError(err))
			}
			return r.vm.ToValue(m.ID)
		},
	}
}

func scrollFunc(scroll func()) func() {
	return func() {
		if scroll != nil {
			scroll()
		}
	}
}

func messagesToJS(msgs []conversation.Message) []map[string]any {
	ret := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		ret = append(ret, map[string]any{
			"id":      m.ID,
			"type":    m.Type,
			"message": m.Message,
			"widget":  m.Widget,
			"loading": m.Loading,
			"payload": m.Payload,
		})
	}
	return ret
}

// decodeMessage builds a message from a script object. type defaults to bot.
func decodeMessage(v goja.Value) (conversation.Message, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return conversation.Message{}, errors.New("appendMessage: message object required")
	}
	raw, ok := v.Export().(map[string]any)
	if !ok {
		return conversation.Message{}, errors.New("appendMessage: message must be an object")
	}

	opts := []conversation.MessageOption{}
	if w, ok := raw["widget"].(string); ok && w != "" {
		opts = append(opts, conversation.WithWidget(w))
	}
	if l, ok := raw["loading"].(bool); ok && l {
		opts = append(opts, conversation.WithLoading())
	}
	if p, ok := raw["payload"]; ok {
		opts = append(opts, conversation.WithPayload(p))
	}
	if a, ok := raw["withAvatar"].(bool); ok {
		opts = append(opts, conversation.WithAvatar(a))
	}
	if id, ok := raw["id"].(string); ok && id != "" {
		opts = append(opts, conversation.WithID(id))
	}

	type_, _ := raw["type"].(string)
	text, _ := raw["message"].(string)
	switch type_ {
	case "", conversation.TypeBot:
		return conversation.NewBotMessage(text, opts...), nil
	case conversation.TypeUser:
		return conversation.Message{}, errors.New("appendMessage: user messages come from the composer")
	default:
		m := conversation.NewCustomMessage(type_, opts...)
		m.Message = text
		return m, nil
	}
}

func decodeWidget(name string, v goja.Value) *render.Widget {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	raw, ok := v.Export().(map[string]any)
	if !ok {
		return &render.Widget{Name: name, Kind: render.WidgetText, Body: v.String()}
	}
	w := &render.Widget{Name: name, Kind: render.WidgetText}
	if k, ok := raw["kind"].(string); ok {
		switch render.WidgetKind(k) {
		case render.WidgetText, render.WidgetMarkdown, render.WidgetOptions:
			w.Kind = render.WidgetKind(k)
		default:
			log.Warn().Str("component", "plugins").Str("widget", name).Str("kind", k).Msg("unknown widget kind, rendering as text")
		}
	}
	w.Title, _ = raw["title"].(string)
	w.Body, _ = raw["body"].(string)
	if opts, ok := raw["options"].([]any); ok {
		for _, o := range opts {
			w.Options = append(w.Options, fmt.Sprint(o))
		}
	}
	return w
}

func sortedKeys(m map[string]goja.Callable) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
