// Package hotkey turns raw keyboard input into push-to-talk press and release edges.
package hotkey

import (
	"fmt"
	"strings"
)

// KeyCode identifies a key that can take part in a binding.
// The string value is the persisted form.
type KeyCode string

// Modifier keys.
const (
	Alt     KeyCode = "Alt"
	Control KeyCode = "Control"
	Shift   KeyCode = "Shift"
	Meta    KeyCode = "Meta" // Cmd on macOS, Win on Windows
)

// Function keys.
const (
	F1  KeyCode = "F1"
	F2  KeyCode = "F2"
	F3  KeyCode = "F3"
	F4  KeyCode = "F4"
	F5  KeyCode = "F5"
	F6  KeyCode = "F6"
	F7  KeyCode = "F7"
	F8  KeyCode = "F8"
	F9  KeyCode = "F9"
	F10 KeyCode = "F10"
	F11 KeyCode = "F11"
	F12 KeyCode = "F12"
)

// Letter keys.
const (
	KeyA KeyCode = "KeyA"
	KeyB KeyCode = "KeyB"
	KeyC KeyCode = "KeyC"
	KeyD KeyCode = "KeyD"
	KeyE KeyCode = "KeyE"
	KeyF KeyCode = "KeyF"
	KeyG KeyCode = "KeyG"
	KeyH KeyCode = "KeyH"
	KeyI KeyCode = "KeyI"
	KeyJ KeyCode = "KeyJ"
	KeyK KeyCode = "KeyK"
	KeyL KeyCode = "KeyL"
	KeyM KeyCode = "KeyM"
	KeyN KeyCode = "KeyN"
	KeyO KeyCode = "KeyO"
	KeyP KeyCode = "KeyP"
	KeyQ KeyCode = "KeyQ"
	KeyR KeyCode = "KeyR"
	KeyS KeyCode = "KeyS"
	KeyT KeyCode = "KeyT"
	KeyU KeyCode = "KeyU"
	KeyV KeyCode = "KeyV"
	KeyW KeyCode = "KeyW"
	KeyX KeyCode = "KeyX"
	KeyY KeyCode = "KeyY"
	KeyZ KeyCode = "KeyZ"
)

// Digit keys.
const (
	Digit0 KeyCode = "Digit0"
	Digit1 KeyCode = "Digit1"
	Digit2 KeyCode = "Digit2"
	Digit3 KeyCode = "Digit3"
	Digit4 KeyCode = "Digit4"
	Digit5 KeyCode = "Digit5"
	Digit6 KeyCode = "Digit6"
	Digit7 KeyCode = "Digit7"
	Digit8 KeyCode = "Digit8"
	Digit9 KeyCode = "Digit9"
)

// Special keys.
const (
	Space     KeyCode = "Space"
	Tab       KeyCode = "Tab"
	CapsLock  KeyCode = "CapsLock"
	Escape    KeyCode = "Escape"
	Backquote KeyCode = "Backquote"
)

// DefaultKey is the primary key used when nothing else is configured.
const DefaultKey = Alt

// KeyCodes lists every supported key in display order.
var KeyCodes = []KeyCode{
	Alt, Control, Shift, Meta,
	F1, F2, F3, F4, F5, F6, F7, F8, F9, F10, F11, F12,
	KeyA, KeyB, KeyC, KeyD, KeyE, KeyF, KeyG, KeyH, KeyI, KeyJ, KeyK, KeyL, KeyM,
	KeyN, KeyO, KeyP, KeyQ, KeyR, KeyS, KeyT, KeyU, KeyV, KeyW, KeyX, KeyY, KeyZ,
	Digit0, Digit1, Digit2, Digit3, Digit4, Digit5, Digit6, Digit7, Digit8, Digit9,
	Space, Tab, CapsLock, Escape, Backquote,
}

var knownKeys = func() map[KeyCode]struct{} {
	m := make(map[KeyCode]struct{}, len(KeyCodes))
	for _, k := range KeyCodes {
		m[k] = struct{}{}
	}
	return m
}()

// Valid reports whether k is one of the supported keys.
func (k KeyCode) Valid() bool {
	_, ok := knownKeys[k]
	return ok
}

// IsModifier reports whether k is Alt, Control, Shift or Meta.
func (k KeyCode) IsModifier() bool {
	switch k {
	case Alt, Control, Shift, Meta:
		return true
	}
	return false
}

// DisplayName returns the label shown to users.
func (k KeyCode) DisplayName() string {
	s := string(k)
	switch {
	case k == Backquote:
		return "`"
	case strings.HasPrefix(s, "Key") && len(s) == 4:
		return s[3:]
	case strings.HasPrefix(s, "Digit") && len(s) == 6:
		return s[5:]
	}
	return s
}

func (k KeyCode) String() string { return string(k) }

// MarshalText implements encoding.TextMarshaler.
func (k KeyCode) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown key code %q", string(k))
	}
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *KeyCode) UnmarshalText(text []byte) error {
	c := KeyCode(text)
	if !c.Valid() {
		return fmt.Errorf("unknown key code %q", string(text))
	}
	*k = c
	return nil
}
