package clip

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Writer places text on the system clipboard
type Writer interface {
	Write(text string) error
}

type systemClipboard struct{}

// New returns the system clipboard writer
func New() Writer {
	return systemClipboard{}
}

// Available reports whether a clipboard backend could be found
// (xclip, xsel or wl-copy on Linux)
func Available() bool {
	return !clipboard.Unsupported
}

func (systemClipboard) Write(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Nop discards everything; used when copying is disabled or unsupported
type Nop struct{}

func (Nop) Write(string) error { return nil }
