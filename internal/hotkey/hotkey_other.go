//go:build !linux && !darwin

package hotkey

// New is not available on this platform
func New() (Manager, error) {
	return nil, ErrUnsupported
}
