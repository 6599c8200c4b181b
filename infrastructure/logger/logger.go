package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type Level int

const (
	VERBOSE Level = iota
	DEBUG
	INFO
	SUCCESS
	WARNING
	ERROR
)

func (l Level) String() string {
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"!",
		"!!",
	}[l]
}

func (l Level) Color() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),     // Verbose
		color.New(color.FgWhite, color.Italic),     // Debug
		color.New(color.FgWhite),                   // Info
		color.New(color.FgHiGreen),                 // Success
		color.New(color.FgYellow, color.Underline), // Warning
		color.New(color.FgHiRed, color.Bold),       // Error
	}[l]
}

// Logger is handed to every component that reports progress or problems
type Logger interface {
	Emit(Level, string, ...interface{})
	Named(string) Logger
}

// Manager writes log lines for any number of named loggers to one writer
type Manager struct {
	mu     sync.Mutex
	out    io.Writer
	min    Level
	offset int
}

// New creates a manager that drops lines below min
func New(out io.Writer, min Level) *Manager {
	return &Manager{out: out, min: min}
}

// Get returns a logger that prefixes its lines with name
func (m *Manager) Get(name string) Logger {
	return &named{mgr: m, name: name}
}

func (m *Manager) emit(level Level, name, message string, args ...interface{}) {
	if level < m.min {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(name) > m.offset {
		m.offset = len(name)
	}
	padding := strings.Repeat(" ", m.offset-len(name))
	line := fmt.Sprintf("[%s] %s(%s) %s\n", name, padding, level, fmt.Sprintf(message, args...))
	level.Color().Fprint(m.out, line)
}

type named struct {
	mgr  *Manager
	name string
}

func (l *named) Emit(level Level, message string, args ...interface{}) {
	l.mgr.emit(level, l.name, message, args...)
}

func (l *named) Named(name string) Logger {
	return &named{mgr: l.mgr, name: l.name + "." + name}
}

type nop struct{}

func (nop) Emit(Level, string, ...interface{}) {}
func (n nop) Named(string) Logger { return n }

// NewNop returns a logger that discards everything
func NewNop() Logger { return nop{} }
