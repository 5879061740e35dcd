package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Binding is the key combination that gates recording.
// A Binding is a value: listeners receive a copy and never mutate it.
type Binding struct {
	Key       KeyCode   `json:"key" yaml:"key"`
	Modifiers []KeyCode `json:"modifiers" yaml:"modifiers"`
}

// DefaultBinding returns the Alt-only binding.
func DefaultBinding() Binding {
	return Binding{Key: DefaultKey, Modifiers: []KeyCode{}}
}

// ModifierPrimary reports whether the primary key is itself a modifier.
// Such bindings are matched from modifier flag changes only.
func (b Binding) ModifierPrimary() bool {
	return b.Key.IsModifier()
}

// DisplayText renders the binding as "Control + Shift + A".
func (b Binding) DisplayText() string {
	parts := make([]string, 0, len(b.Modifiers)+1)
	for _, m := range b.Modifiers {
		parts = append(parts, m.DisplayName())
	}
	parts = append(parts, b.Key.DisplayName())
	return strings.Join(parts, " + ")
}

// Equal reports whether both bindings describe the same combination.
// Modifier order and duplicates are ignored.
func (b Binding) Equal(o Binding) bool {
	if b.Key != o.Key {
		return false
	}
	return slices.Equal(b.modifierSet(), o.modifierSet())
}

// Clone returns a copy that shares no memory with b.
func (b Binding) Clone() Binding {
	return Binding{Key: b.Key, Modifiers: slices.Clone(b.Modifiers)}
}

// Validate checks that every key is known and that the primary key is not
// repeated as a modifier.
func (b Binding) Validate() error {
	if b.Key == "" {
		return errors.New("binding has no primary key")
	}
	if !b.Key.Valid() {
		return fmt.Errorf("unknown primary key %q", b.Key)
	}
	for _, m := range b.Modifiers {
		if !m.Valid() {
			return fmt.Errorf("unknown modifier %q", m)
		}
		if m == b.Key {
			return fmt.Errorf("primary key %s repeated as modifier", b.Key)
		}
	}
	return nil
}

func (b Binding) modifierSet() []KeyCode {
	set := slices.Clone(b.Modifiers)
	slices.Sort(set)
	return slices.Compact(set)
}

func (b Binding) String() string { return b.DisplayText() }
