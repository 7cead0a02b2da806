package gpio

import (
	"errors"
	"sync"
)

var ErrLineClosed = errors.New("gpio line closed")

// MemoryLine keeps the level in memory, it is used when
// no gpio hardware is present.
type MemoryLine struct {
	name   string
	lock   sync.Mutex
	level  bool
	closed bool
	// every level written, in order.
	history []bool
}

func NewMemoryLine(name string) *MemoryLine {
	return &MemoryLine{name: name}
}

func (l *MemoryLine) Name() string {
	return l.name
}

func (l *MemoryLine) On() error {
	return l.set(true)
}

func (l *MemoryLine) Off() error {
	return l.set(false)
}

func (l *MemoryLine) set(level bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return ErrLineClosed
	}
	l.level = level
	l.history = append(l.history, level)
	return nil
}

func (l *MemoryLine) Close() error {
	l.lock.Lock()
	l.closed = true
	l.lock.Unlock()
	return nil
}

// Level return the current level.
func (l *MemoryLine) Level() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.level
}

// History return a copy of the written levels.
func (l *MemoryLine) History() []bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]bool(nil), l.history...)
}
