//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "github.com/rs/zerolog"

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() int {
	return int(C.checkMicrophonePermission())
}

// EnsureMicrophone triggers the system dialog the first time and reports
// ErrMicrophoneDenied until the user grants access.
func EnsureMicrophone(log zerolog.Logger) error {
	switch CheckMicrophone() {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		log.Warn().Msg("Microphone permission required, accept the system dialog and restart")
		C.requestMicrophonePermission()
	default:
		log.Warn().Msg("Microphone access denied. Go to: System Settings → Privacy & Security → Microphone")
	}
	return ErrMicrophoneDenied
}
