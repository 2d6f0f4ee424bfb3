package common

import lerrors "moneymarket/core/errors"

// ErrModulePaused is returned by Guard when the module is switched off.
var ErrModulePaused = lerrors.ErrModulePaused

// PauseView reports whether a native module is paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when module is paused. A nil view never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed set of paused module names.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool {
	return s[module]
}
