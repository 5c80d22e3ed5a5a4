package library

import (
	"sync"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

// Cursor tracks which book a session is on. Navigation wraps around.
type Cursor struct {
	lib *Library

	mu    sync.RWMutex
	index int
}

// NewCursor returns a cursor on the first book.
func (l *Library) NewCursor() *Cursor {
	return &Cursor{lib: l}
}

// Index returns the current position.
func (c *Cursor) Index() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Current returns the current book and its volume. The volume is nil when the
// book has no transcript.
func (c *Cursor) Current() (Book, *Volume) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at(c.index)
}

// Next moves to the following book, wrapping to the first.
func (c *Cursor) Next() (Book, *Volume) {
	return c.move(1)
}

// Previous moves to the preceding book, wrapping to the last.
func (c *Cursor) Previous() (Book, *Volume) {
	return c.move(-1)
}

func (c *Cursor) move(delta int) (Book, *Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lib.Len()
	c.index = ((c.index+delta)%n + n) % n
	return c.at(c.index)
}

// Select jumps to a book reported by the player. index wins when it is in range;
// otherwise the book is found by id.
func (c *Cursor) Select(index *int, id string) (Book, *Volume, error) {
	target := -1
	if index != nil {
		if _, ok := c.lib.Book(*index); ok {
			target = *index
		}
	}
	if target < 0 && id != "" {
		target = c.lib.IndexOf(id)
	}
	if target < 0 {
		if index != nil {
			return Book{}, nil, errors.NotFoundf("no audiobook at index %d", *index)
		}
		return Book{}, nil, errors.NotFoundf("unknown audiobook %q", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = target
	b, v := c.at(target)
	return b, v, nil
}

func (c *Cursor) at(i int) (Book, *Volume) {
	b, _ := c.lib.Book(i)
	v, _ := c.lib.Volume(b.ID)
	return b, v
}
