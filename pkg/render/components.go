package render

// Components replace fixed parts of the widget. Nil fields, and overrides
// returning an empty string, keep the built-in rendering.
type Components struct {
	// Header receives the action provider and returns the header line.
	Header     func(actionProvider any) string
	BotAvatar  func() string
	UserAvatar func() string
}

func WithComponents(c Components) RendererOption {
	return func(r *Renderer) {
		r.components = c
	}
}

// Header returns the header line, fallback unless a Header override is set.
func (r *Renderer) Header(fallback string) string {
	if r.components.Header == nil {
		return fallback
	}
	if h := r.components.Header(r.actionProvider); h != "" {
		return h
	}
	return fallback
}

func (r *Renderer) BotAvatar(fallback string) string {
	if r.components.BotAvatar == nil {
		return fallback
	}
	if a := r.components.BotAvatar(); a != "" {
		return a
	}
	return fallback
}

// UserAvatar is empty unless overridden, user bubbles have no avatar by default.
func (r *Renderer) UserAvatar() string {
	if r.components.UserAvatar == nil {
		return ""
	}
	return r.components.UserAvatar()
}
