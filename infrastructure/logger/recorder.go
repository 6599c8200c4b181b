package logger

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one captured log line
type Entry struct {
	Level   Level
	Name    string
	Message string
}

// Recorder captures log lines in memory so tests can assert on them
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	name    string
}

func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) Emit(level Level, message string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Name: r.name, Message: fmt.Sprintf(message, args...)})
}

func (r *Recorder) Named(name string) Logger {
	child := *r
	if r.name != "" {
		name = r.name + "." + name
	}
	child.name = name
	return &child
}

// Entries returns every captured line, including those from named children
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), *r.entries...)
}

// Contains reports whether any line at level contains substr
func (r *Recorder) Contains(level Level, substr string) bool {
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
