package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by New on platforms without global hotkeys
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Manager defines the interface for global hotkey management.
// Callbacks run on the manager's event goroutine, on key press only.
type Manager interface {
	Register(accel string, callback func()) error
	Close() error
}

// Modifier is a set of modifier keys
type Modifier uint

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"win":     ModSuper,
}

// namedKeys are the non-character keys an accelerator may end with
var namedKeys = map[string]bool{
	"space": true, "enter": true, "tab": true, "esc": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

// Accelerator is a parsed key combination such as Ctrl+Alt+S
type Accelerator struct {
	Mods Modifier
	Key  string // lower case: "s", "7", "space", "f5"
}

func (a Accelerator) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	key := a.Key
	if len(key) == 1 || strings.HasPrefix(key, "f") {
		key = strings.ToUpper(key)
	} else {
		key = strings.ToUpper(key[:1]) + key[1:]
	}
	return strings.Join(append(parts, key), "+")
}

// Parse reads accelerators like "Ctrl+Alt+S". Modifier names are case
// insensitive and exactly one non-modifier key must come last.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	parts := strings.Split(accel, "+")
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: empty key", accel)
		}
		if mod, ok := modifierNames[p]; ok && i < len(parts)-1 {
			a.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown modifier %q", accel, p)
		}
		if !validKey(p) {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown key %q", accel, p)
		}
		a.Key = p
	}
	return a, nil
}

func validKey(k string) bool {
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	return namedKeys[k]
}
