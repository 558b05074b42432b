//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    return displayPtr != NULL;
}

int keycodeFor(const char* name) {
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

void grabKey(int keycode, int modifiers) {
    Window root = DefaultRootWindow(displayPtr);
    // Also grab with CapsLock and NumLock held so they do not mask the hotkey
    unsigned int extra[4] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | extra[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask);
    XSync(displayPtr, False);
}

void ungrabKey(int keycode, int modifiers) {
    Window root = DefaultRootWindow(displayPtr);
    unsigned int extra[4] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | extra[i], root);
    }
    XSync(displayPtr, False);
}

int checkEvent(int* keycode, int* state) {
    XEvent event;
    while (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress) {
            *keycode = event.xkey.keycode;
            *state = event.xkey.state;
            return 1;
        }
    }
    return 0;
}

void closeDisplay() {
    if (displayPtr != NULL) {
        XCloseDisplay(displayPtr);
        displayPtr = NULL;
    }
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"
)

const (
	x11Shift = 1 << 0 // ShiftMask
	x11Ctrl  = 1 << 2 // ControlMask
	x11Alt   = 1 << 3 // Mod1Mask
	x11Super = 1 << 6 // Mod4Mask
	x11Mods  = x11Shift | x11Ctrl | x11Alt | x11Super
)

var x11Names = map[string]string{
	"space": "space",
	"enter": "Return",
	"tab":   "Tab",
	"esc":   "Escape",
}

type grab struct {
	keycode int
	mods    int
}

type linuxManager struct {
	mu        sync.Mutex // Xlib is not thread safe
	callbacks map[grab]func()
	byAccel   map[string]grab
	stop      chan struct{}
	done      chan struct{}
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("%w: cannot open X display", ErrUnsupported)
	}

	mgr := &linuxManager{
		callbacks: make(map[grab]func()),
		byAccel:   make(map[string]grab),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func x11Modifiers(m Modifier) int {
	var out int
	if m&ModShift != 0 {
		out |= x11Shift
	}
	if m&ModCtrl != 0 {
		out |= x11Ctrl
	}
	if m&ModAlt != 0 {
		out |= x11Alt
	}
	if m&ModSuper != 0 {
		out |= x11Super
	}
	return out
}

func x11KeyName(key string) string {
	if name, ok := x11Names[key]; ok {
		return name
	}
	if strings.HasPrefix(key, "f") && len(key) > 1 {
		return strings.ToUpper(key)
	}
	return key
}

func (m *linuxManager) Register(accel string, callback func()) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := C.CString(x11KeyName(a.Key))
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.keycodeFor(name))
	if keycode == 0 {
		return fmt.Errorf("no keycode for %s", accel)
	}

	g := grab{keycode: keycode, mods: x11Modifiers(a.Mods)}
	if _, exists := m.callbacks[g]; exists {
		return fmt.Errorf("hotkey %s already registered", a)
	}

	C.grabKey(C.int(g.keycode), C.int(g.mods))
	m.callbacks[g] = callback
	m.byAccel[a.String()] = g
	return nil
}

func (m *linuxManager) eventLoop() {
	defer close(m.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, state C.int
			m.mu.Lock()
			got := C.checkEvent(&keycode, &state) != 0
			cb := m.callbacks[grab{keycode: int(keycode), mods: int(state) & x11Mods}]
			m.mu.Unlock()

			if got && cb != nil {
				cb()
			}
		}
	}
}

func (m *linuxManager) Close() error {
	close(m.stop)
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.byAccel {
		C.ungrabKey(C.int(g.keycode), C.int(g.mods))
	}
	C.closeDisplay()
	return nil
}
