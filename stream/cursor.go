package stream

import (
	"github.com/moontrade/streams/store"
	"github.com/moontrade/streams/streamid"
)

// cursor is the read state of one stream.
type cursor struct {
	name string
	// last is the position of the newest buffered entry, or the start
	// position before anything was read.
	last store.Position
	// delivered is the position of the newest entry handed to the caller.
	delivered store.Position
	buffered  []store.Entry
	// saturated is set when the last read filled the whole page, so more
	// entries may already be waiting in the store.
	saturated bool
}

func newCursor(name string, start store.Position) *cursor {
	return &cursor{name: name, last: start, delivered: start}
}

// push appends a batch read after last and returns how many stale entries
// were dropped. Entries at or before last were already buffered once and
// are re-deliveries from the store.
func (c *cursor) push(batch []store.Entry, count int) (stale int) {
	c.saturated = count > 0 && len(batch) >= count
	for _, e := range batch {
		if !c.last.After(e.ID) {
			stale++
			continue
		}
		c.buffered = append(c.buffered, e)
		c.last = store.At(e.ID)
	}
	return stale
}

func (c *cursor) empty() bool {
	return len(c.buffered) == 0
}

func (c *cursor) head() (streamid.ID, bool) {
	if len(c.buffered) == 0 {
		return streamid.ID{}, false
	}
	return c.buffered[0].ID, true
}

func (c *cursor) pop() store.Entry {
	e := c.buffered[0]
	c.buffered[0] = store.Entry{}
	c.buffered = c.buffered[1:]
	if len(c.buffered) == 0 {
		c.buffered = nil
	}
	c.delivered = store.At(e.ID)
	return e
}
