package otel

// Goroutine safety:
// flush is the only goroutine that writes to out. gate serializes Close
// against in-flight Emit calls so nothing is sent on a closed queue.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// queueSize bounds events waiting to be written.
const queueSize = 4096

// pending is one encoded event. The Event travels with its line so the
// ring keeps Dur, which the JSON form rounds to dur_ms.
type pending struct {
	line []byte
	ev   Event
}

// Logger appends events to a JSONL sink off the caller's goroutine.
// Emit never blocks; when the queue is full the event is counted as
// dropped instead.
type Logger struct {
	session string
	out     io.Writer
	ring    atomic.Pointer[RingBuffer]
	dropped atomic.Uint64

	gate   sync.RWMutex
	closed bool
	queue  chan pending
	done   chan struct{}
}

// NewLogger starts a Logger writing to out. Close flushes it.
func NewLogger(out io.Writer) *Logger {
	l := &Logger{
		session: uuid.NewString(),
		out:     out,
		queue:   make(chan pending, queueSize),
		done:    make(chan struct{}),
	}
	go l.flush()
	return l
}

// NewNullLogger writes nowhere. An attached ring still receives events.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

func (l *Logger) flush() {
	defer close(l.done)
	for p := range l.queue {
		if _, err := l.out.Write(p.line); err != nil {
			l.dropped.Add(1)
		}
		if rb := l.ring.Load(); rb != nil {
			rb.Push(p.ev)
		}
	}
}

// Emit stamps e with the time and session and queues it. Calling Emit on
// a nil Logger does nothing, so card and coordinator run unobserved in
// tests.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.session

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}

	l.gate.RLock()
	defer l.gate.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- pending{line: append(line, '\n'), ev: e}:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) note(level Level, kind EventKind, comp, msg string) {
	l.Emit(Event{Level: level, Kind: kind, Comp: comp, Msg: msg})
}

// Info records kind at info level.
func (l *Logger) Info(kind EventKind, comp, msg string) { l.note(LevelInfo, kind, comp, msg) }

// Warn records kind at warn level.
func (l *Logger) Warn(kind EventKind, comp, msg string) { l.note(LevelWarn, kind, comp, msg) }

// Error records kind at error level with err as the event's error text.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SetRingBuffer mirrors every written event into rb.
func (l *Logger) SetRingBuffer(rb *RingBuffer) {
	l.ring.Store(rb)
}

// SessionID is stamped on every event and journal row of this run.
func (l *Logger) SessionID() string {
	return l.session
}

// Dropped counts events that never reached the sink.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close writes out the queue and stops the logger. Later events are
// dropped. Close may be called more than once.
func (l *Logger) Close() {
	l.gate.Lock()
	if l.closed {
		l.gate.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.gate.Unlock()

	<-l.done
	if n := l.dropped.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "verdant: session %s dropped %d events\n", l.session, n)
	}
}
