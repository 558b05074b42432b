package permissions

import "errors"

// ErrMicrophoneDenied means the OS has not granted audio capture
var ErrMicrophoneDenied = errors.New("microphone permission not granted")
