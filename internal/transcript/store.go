// Package transcript keeps the recent conversation in memory and appends
// every line to a plain-text log.
package transcript

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxItems bounds the in-memory history
const DefaultMaxItems = 50

const timeLayout = "2006-01-02 15:04:05"

// Entry is one transcribed line
type Entry struct {
	ID   string
	At   time.Time
	Text string
}

// Line renders the entry the way it is written to the log file
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] %s", e.At.Format(timeLayout), e.Text)
}

// Store is a bounded, concurrency-safe history of transcribed lines
type Store struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	path    string
	log     zerolog.Logger
	now     func() time.Time
}

// NewStore creates a store; an empty path disables the log file
func NewStore(path string, maxItems int, log zerolog.Logger) *Store {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Store{
		max:  maxItems,
		path: path,
		log:  log,
		now:  time.Now,
	}
}

// Add records text, evicting the oldest entry when full
func (s *Store) Add(text string) Entry {
	e := Entry{ID: uuid.NewString(), At: s.now(), Text: text}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.max {
		s.entries = append(s.entries[:0], s.entries[len(s.entries)-s.max:]...)
	}
	s.mu.Unlock()

	s.appendFile(e)
	return e
}

// Recent returns up to n of the newest texts, oldest first
func (s *Store) Recent(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	out := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		out = append(out, e.Text)
	}
	return out
}

// All returns every held text, oldest first
func (s *Store) All() []string {
	return s.Recent(0)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear empties the history and returns how many entries were dropped.
// The log file is left alone.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = nil
	return n
}

func (s *Store) appendFile(e Entry) {
	if s.path == "" {
		return
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to open transcript file")
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, e.Line()); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to write transcript")
	}
}
