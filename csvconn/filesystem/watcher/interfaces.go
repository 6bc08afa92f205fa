package watcher

import (
	"time"

	internal "github.com/openstandia/connector-csv/csvconn"

	"github.com/rs/zerolog"
)

// EventType represents the type of file system event
type EventType int

const (
	// EventCreate represents file creation, including the target of a rename
	EventCreate EventType = iota
	// EventWrite represents file modification
	EventWrite
	// EventRemove represents file removal
	EventRemove
	// EventRename represents a file being renamed away
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a change of a watched file
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// Config holds configuration for the watcher
type Config struct {
	// DebounceDelay is the quiet period after the last event of a file
	DebounceDelay time.Duration

	// MaxDebounceDelay bounds how long a busy file can hold back its batch
	MaxDebounceDelay time.Duration

	// QueueCapacity is the size of the batch channel
	QueueCapacity int

	Logger *zerolog.Logger
}

// DefaultConfig returns a default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceDelay:    time.Duration(internal.DefaultWatchDebounceMillis) * time.Millisecond,
		MaxDebounceDelay: 5 * time.Second,
		QueueCapacity:    64,
	}
}
