package hotkey

import (
	"slices"
	"strings"

	"github.com/vcaesar/keycode"
)

// Codes not present in the keycode table.
const (
	vcCapsLock uint16 = 0x003A
	vcControlR uint16 = 0x0E1D
)

// Event mask flags. Left and right modifiers have separate bits.
const (
	maskShiftL   uint16 = 1 << 0
	maskCtrlL    uint16 = 1 << 1
	maskMetaL    uint16 = 1 << 2
	maskAltL     uint16 = 1 << 3
	maskShiftR   uint16 = 1 << 4
	maskCtrlR    uint16 = 1 << 5
	maskMetaR    uint16 = 1 << 6
	maskAltR     uint16 = 1 << 7
	maskCapsLock uint16 = 1 << 14
)

// modifierMask returns the left and right flag bits of modifier k.
func modifierMask(k KeyCode) (left, right uint16) {
	switch k {
	case Alt:
		return maskAltL, maskAltR
	case Control:
		return maskCtrlL, maskCtrlR
	case Shift:
		return maskShiftL, maskShiftR
	case Meta:
		return maskMetaL, maskMetaR
	}
	return 0, 0
}

// hookCodes returns the hook virtual codes that count as k being held.
// Modifiers match either the left or the right key.
func hookCodes(k KeyCode) []uint16 {
	kc := keycode.Keycode
	switch k {
	case Alt:
		return []uint16{kc["alt"], kc["ralt"]}
	case Control:
		return []uint16{kc["ctrl"], vcControlR}
	case Shift:
		return []uint16{kc["shift"], kc["rshift"]}
	case Meta:
		return []uint16{kc["cmd"], kc["rcmd"]}
	case Space:
		return []uint16{kc["space"]}
	case Tab:
		return []uint16{kc["tab"]}
	case Escape:
		return []uint16{kc["esc"]}
	case Backquote:
		return []uint16{kc["`"]}
	case CapsLock:
		return []uint16{vcCapsLock}
	}

	s := string(k)
	var name string
	switch {
	case strings.HasPrefix(s, "Key"):
		name = strings.ToLower(s[3:])
	case strings.HasPrefix(s, "Digit"):
		name = s[5:]
	case strings.HasPrefix(s, "F"):
		name = strings.ToLower(s)
	}
	if code, ok := kc[name]; ok {
		return []uint16{code}
	}
	return nil
}

// virtualKey returns the Windows virtual-key code for k.
func virtualKey(k KeyCode) uint16 {
	switch k {
	case Alt:
		return 0x12 // VK_MENU
	case Control:
		return 0x11 // VK_CONTROL
	case Shift:
		return 0x10 // VK_SHIFT
	case Meta:
		return 0x5B // VK_LWIN
	case Space:
		return 0x20
	case Tab:
		return 0x09
	case CapsLock:
		return 0x14 // VK_CAPITAL
	case Escape:
		return 0x1B
	case Backquote:
		return 0xC0 // VK_OEM_3
	}

	s := string(k)
	switch {
	case strings.HasPrefix(s, "Key") && len(s) == 4:
		return uint16(s[3])
	case strings.HasPrefix(s, "Digit") && len(s) == 6:
		return uint16(s[5])
	case strings.HasPrefix(s, "F"):
		var n int
		for _, c := range s[1:] {
			n = n*10 + int(c-'0')
		}
		return 0x70 + uint16(n-1) // VK_F1
	}
	return 0
}

// keyEvent is a raw key transition as delivered by the event hook.
type keyEvent struct {
	down bool
	code uint16
	mask uint16
}

// matcher evaluates hook events against one binding. Modifier state comes
// from the event flags, so a fresh matcher sees keys held before it started.
type matcher struct {
	binding Binding
	primary []uint16
	key     uint16   // flag bits of a modifier primary key
	mods    []uint16 // flag bits per required modifier
	flag    map[uint16]uint16
}

func newMatcher(b Binding) *matcher {
	m := &matcher{
		binding: b,
		primary: hookCodes(b.Key),
		flag:    make(map[uint16]uint16),
	}
	if l, r := modifierMask(b.Key); l != 0 {
		m.key = l | r
	}
	for _, k := range b.Modifiers {
		l, r := modifierMask(k)
		m.mods = append(m.mods, l|r)
	}
	for _, k := range []KeyCode{Alt, Control, Shift, Meta} {
		codes := hookCodes(k)
		l, r := modifierMask(k)
		m.flag[codes[0]] = l
		m.flag[codes[1]] = r
	}
	return m
}

// flags returns the modifier flags in effect after ev. The event's own key
// follows the transition whether or not the hook already updated the mask.
func (m *matcher) flags(ev keyEvent) uint16 {
	f := ev.mask
	if bit, ok := m.flag[ev.code]; ok {
		if ev.down {
			f |= bit
		} else {
			f &^= bit
		}
	}
	return f
}

// handle reports the binding's match state after ev.
// ok is false when the event says nothing about the binding.
func (m *matcher) handle(ev keyEvent) (pressed, ok bool) {
	flags := m.flags(ev)

	switch {
	case m.binding.ModifierPrimary():
		if _, isMod := m.flag[ev.code]; !isMod {
			return false, false
		}
		return flags&m.key != 0 && m.modifiersHeld(flags), true

	case m.binding.Key == CapsLock:
		// Toggle-style key: follow its lock flag, not key down/up.
		if ev.code != vcCapsLock {
			return false, false
		}
		return flags&maskCapsLock != 0 && m.modifiersHeld(flags), true

	default:
		if !slices.Contains(m.primary, ev.code) {
			return false, false
		}
		if ev.down {
			if !m.modifiersHeld(flags) {
				return false, false
			}
			return true, true
		}
		return false, true
	}
}

func (m *matcher) modifiersHeld(flags uint16) bool {
	for _, want := range m.mods {
		if flags&want == 0 {
			return false
		}
	}
	return true
}
