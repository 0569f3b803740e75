// README: User-visible notification feed. Every notification is also logged.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo      Level = "info"
	LevelTransient Level = "transient"
	// LevelBlocking must be acknowledged before the user retries.
	LevelBlocking Level = "blocking"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(level Level, msg string)
}

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	max   int
	log   *logrus.Entry
	now   func() time.Time
}

func NewFeed(max int, log *logrus.Entry) *Feed {
	if max <= 0 {
		max = 50
	}
	return &Feed{max: max, log: log, now: time.Now}
}

func (f *Feed) Notify(level Level, msg string) {
	if f.log != nil {
		entry := f.log.WithField("level_ui", string(level))
		switch level {
		case LevelBlocking:
			entry.Warn(msg)
		default:
			entry.Info(msg)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, Notification{Level: level, Message: msg, At: f.now()})
	if len(f.items) > f.max {
		f.items = append([]Notification(nil), f.items[len(f.items)-f.max:]...)
	}
}

// List returns notifications oldest first.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Level, string) {}
