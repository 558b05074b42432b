package tray

import "testing"

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"listening", "🔴"},
		{"processing", "🟡"},
		{"idle", "🟢"},
		{"error", "⚪️"},
		{"unknown", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestTitleFor(t *testing.T) {
	if got := titleFor("processing"); got != "🎤 🟡" {
		t.Errorf("unexpected title %q", got)
	}
}
