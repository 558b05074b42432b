//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(int id);

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkRef;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkRef), NULL, &hkRef);
    goHotkeyCallback((int)hkRef.id);
    return noErr;
}

static int handlerInstalled = 0;

// Register hotkey with Carbon
static int registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id, EventHotKeyRef* ref) {
    if (!handlerInstalled) {
        EventTypeSpec eventType;
        eventType.eventClass = kEventClassKeyboard;
        eventType.eventKind = kEventHotKeyPressed;
        InstallApplicationEventHandler(NewEventHandlerUPP(hotkeyHandler), 1, &eventType, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'wmtg';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, ref);
    return (status == noErr) ? 1 : 0;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    UnregisterEventHotKey(ref);
}
*/
import "C"

import (
	"fmt"
	"sync"
)

// Carbon modifier masks
const (
	carbonCmd     = 0x100
	carbonShift   = 0x200
	carbonOption  = 0x800
	carbonControl = 0x1000
)

// Virtual key codes (kVK_*) for the keys Parse accepts
var carbonKeys = map[string]uint32{
	"a": 0, "s": 1, "d": 2, "f": 3, "h": 4, "g": 5, "z": 6, "x": 7, "c": 8, "v": 9,
	"b": 11, "q": 12, "w": 13, "e": 14, "r": 15, "y": 16, "t": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"o": 31, "u": 32, "i": 34, "p": 35, "l": 37, "j": 38, "k": 40, "n": 45, "m": 46,
	"enter": 36, "tab": 48, "space": 49, "esc": 53,
	"f1": 122, "f2": 120, "f3": 99, "f4": 118, "f5": 96, "f6": 97,
	"f7": 98, "f8": 100, "f9": 101, "f10": 109, "f11": 103, "f12": 111,
}

type darwinHotkey struct {
	ref      C.EventHotKeyRef
	callback func()
}

type darwinManager struct {
	mu      sync.Mutex
	nextID  uint32
	byID    map[uint32]*darwinHotkey
	byAccel map[string]uint32
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon.
// Events are delivered by the application run loop, which the tray provides.
func New() (Manager, error) {
	mgr := &darwinManager{
		byID:    make(map[uint32]*darwinHotkey),
		byAccel: make(map[string]uint32),
	}
	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()
	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.int) {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m == nil {
		return
	}

	m.mu.Lock()
	hk := m.byID[uint32(id)]
	m.mu.Unlock()
	if hk != nil && hk.callback != nil {
		go hk.callback()
	}
}

func carbonModifiers(m Modifier) uint32 {
	var out uint32
	if m&ModCtrl != 0 {
		out |= carbonControl
	}
	if m&ModAlt != 0 {
		out |= carbonOption
	}
	if m&ModShift != 0 {
		out |= carbonShift
	}
	if m&ModSuper != 0 {
		out |= carbonCmd
	}
	return out
}

func (m *darwinManager) Register(accel string, callback func()) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}
	keyCode, ok := carbonKeys[a.Key]
	if !ok {
		return fmt.Errorf("no key code for %s", accel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byAccel[a.String()]; exists {
		return fmt.Errorf("hotkey %s already registered", a)
	}

	m.nextID++
	id := m.nextID
	hk := &darwinHotkey{callback: callback}
	if C.registerHotkey(C.UInt32(keyCode), C.UInt32(carbonModifiers(a.Mods)), C.UInt32(id), &hk.ref) == 0 {
		return fmt.Errorf("failed to register hotkey %s", a)
	}

	m.byID[id] = hk
	m.byAccel[a.String()] = id
	return nil
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	for id, hk := range m.byID {
		C.unregisterHotkey(hk.ref)
		delete(m.byID, id)
	}
	m.byAccel = make(map[string]uint32)
	m.mu.Unlock()

	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
	return nil
}
