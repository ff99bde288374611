package debug

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Modifier bitmask, OR-combinable. These match the wire encoding of
// the Input domain, so they pass through unchanged.
const (
	ModAlt   = 1
	ModCtrl  = 2
	ModMeta  = 4 // platform "command" key
	ModShift = 8
)

// namedKeys maps key names (lowercased for lookup) to their virtual
// key codes and the canonical name the protocol expects.
var namedKeys = map[string]struct {
	name string
	code int
	text string // for keys that produce text
}{
	"enter":      {"Enter", 13, "\r"},
	"tab":        {"Tab", 9, "\t"},
	"escape":     {"Escape", 27, ""},
	"backspace":  {"Backspace", 8, ""},
	"delete":     {"Delete", 46, ""},
	"arrowup":    {"ArrowUp", 38, ""},
	"arrowdown":  {"ArrowDown", 40, ""},
	"arrowleft":  {"ArrowLeft", 37, ""},
	"arrowright": {"ArrowRight", 39, ""},
	"home":       {"Home", 36, ""},
	"end":        {"End", 35, ""},
	"pageup":     {"PageUp", 33, ""},
	"pagedown":   {"PageDown", 34, ""},
	"space":      {"Space", 32, " "},
	"f1":         {"F1", 112, ""},
	"f2":         {"F2", 113, ""},
	"f3":         {"F3", 114, ""},
	"f4":         {"F4", 115, ""},
	"f5":         {"F5", 116, ""},
	"f6":         {"F6", 117, ""},
	"f7":         {"F7", 118, ""},
	"f8":         {"F8", 119, ""},
	"f9":         {"F9", 120, ""},
	"f10":        {"F10", 121, ""},
	"f11":        {"F11", 122, ""},
	"f12":        {"F12", 123, ""},
}

// keyEvent is the resolved key-event encoding for one named key.
type keyEvent struct {
	Key     string
	KeyCode int
	Text    string
}

// resolveKey maps a key name to its event encoding. Named keys resolve
// case-insensitively; a single character resolves to itself, with the
// virtual key code of its upper-case form.
func resolveKey(key string) (keyEvent, error) {
	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		return keyEvent{Key: k.name, KeyCode: k.code, Text: k.text}, nil
	}

	runes := []rune(key)
	if len(runes) != 1 {
		return keyEvent{}, fmt.Errorf("unknown key %q", key)
	}
	r := runes[0]
	return keyEvent{
		Key:     string(r),
		KeyCode: int(unicode.ToUpper(r)),
		Text:    string(r),
	}, nil
}

// PressKey maps a named key plus a modifier bitmask to the underlying
// key-event encoding and dispatches a down/up pair. The modifier state
// is independent of the key itself.
func (s *Supervisor) PressKey(ctx context.Context, targetID, key string, modifiers int) error {
	c, err := s.conn(targetID)
	if err != nil {
		return err
	}

	ev, err := resolveKey(key)
	if err != nil {
		return err
	}

	down := map[string]interface{}{
		"type":                  "keyDown",
		"key":                   ev.Key,
		"modifiers":             modifiers,
		"windowsVirtualKeyCode": ev.KeyCode,
		"nativeVirtualKeyCode":  ev.KeyCode,
	}
	// Text only makes sense without ctrl/meta chords; a ctrl+a must not
	// insert the letter.
	if ev.Text != "" && modifiers&(ModCtrl|ModMeta) == 0 {
		down["text"] = ev.Text
	}
	if _, err := c.Call(ctx, "Input.dispatchKeyEvent", down); err != nil {
		return err
	}

	up := map[string]interface{}{
		"type":                  "keyUp",
		"key":                   ev.Key,
		"modifiers":             modifiers,
		"windowsVirtualKeyCode": ev.KeyCode,
		"nativeVirtualKeyCode":  ev.KeyCode,
	}
	_, err = c.Call(ctx, "Input.dispatchKeyEvent", up)
	return err
}
