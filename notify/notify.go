// Package notify delivers user-facing error messages. Delivery is fire and
// forget: sinks never report failure back to the caller.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink displays an error message to the user.
type Sink interface {
	Error(msg string)
}

// LogSink writes notifications to the log.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink constructor
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log.WithField("component", "notify")}
}

// Error implements Sink.
func (s *LogSink) Error(msg string) {
	s.log.WithField("notification", msg).Warn("user notification")
}

// Multi fans a notification out to every sink.
type Multi []Sink

// Error implements Sink.
func (m Multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}

// Entry is one message kept by a Feed.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// DefaultFeedSize is the number of messages a Feed keeps when none is given.
const DefaultFeedSize = 50

// Feed keeps the most recent notifications so a UI can poll for toasts.
type Feed struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	next    uint64
	now     func() time.Time
}

// NewFeed returns a feed holding at most size entries.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size, next: 1, now: time.Now}
}

// Error implements Sink.
func (f *Feed) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, Entry{Seq: f.next, Message: msg, Time: f.now()})
	f.next++
	if over := len(f.entries) - f.size; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
	}
}

// Since returns the retained entries with a sequence number greater than seq,
// oldest first.
func (f *Feed) Since(seq uint64) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []Entry{}
	for _, e := range f.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
