package ui

import (
	"github.com/go-go-golems/chatwidget/pkg/settings"
)

// StateChangedMsg tells the model the conversation changed. The model reads
// the current state from the store, so out-of-order delivery is harmless.
type StateChangedMsg struct{}

// ScrollMsg moves the message viewport to its bottom.
type ScrollMsg struct{}

// SettingChangedMsg carries a new persisted app setting.
type SettingChangedMsg struct {
	Setting settings.AppSetting
}

// DispatchMsg runs Fn on the UI loop. Fn may change the model and the composer.
type DispatchMsg struct {
	Fn func()
}

// NoticeMsg shows an advisory line under the conversation.
type NoticeMsg struct {
	Text string
}
