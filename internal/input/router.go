// Package input routes viewport key events to player actions.
package input

import (
	"context"
	"errors"
	"sync"
)

// KeySpace is the key code of the space bar
const KeySpace = "Space"

// ErrUnbound is returned when binding an empty key code or a nil action
var ErrUnbound = errors.New("key binding requires a code and an action")

// KeyEvent is a key press delivered by the viewport.
// InputFocused is true when a text field or other focusable input holds focus;
// such events belong to that element and are never routed.
type KeyEvent struct {
	Code         string `json:"code" binding:"required"`
	InputFocused bool   `json:"input_focused"`
}

// Action handles a routed key press
type Action func(ctx context.Context) error

// Router maps key codes to actions for one player region
type Router struct {
	mu       sync.RWMutex
	bindings map[string]Action
}

// NewRouter creates a router with no bindings
func NewRouter() *Router {
	return &Router{bindings: make(map[string]Action)}
}

// Bind routes code to action, replacing any existing binding
func (r *Router) Bind(code string, action Action) error {
	if code == "" || action == nil {
		return ErrUnbound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[code] = action
	return nil
}

// Unbind removes the binding for code
func (r *Router) Unbind(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, code)
}

// Dispatch runs the action bound to ev.Code. It reports whether the event was
// consumed; events with an input focused or without a binding are not.
func (r *Router) Dispatch(ctx context.Context, ev KeyEvent) (bool, error) {
	if ev.InputFocused {
		return false, nil
	}

	r.mu.RLock()
	action, ok := r.bindings[ev.Code]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	return true, action(ctx)
}
