// Package notify delivers user-facing notices (the equivalent of toasts
// in the web client) to connected presentation clients.
package notify

import "time"

// Level classifies a notice for the presentation layer
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is a single user-facing notification
type Notice struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is what the engine and the registry talk to. Implementations
// must not block the caller.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Noop discards every notice. Used when no delivery channel is wired.
type Noop struct{}

func (Noop) Success(string) {}
func (Noop) Error(string)   {}
func (Noop) Info(string)    {}

// Multi fans a notice out to several notifiers
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (m Multi) Info(message string) {
	for _, n := range m {
		n.Info(message)
	}
}
