// Package stream merges several append-only streams into one sequence ordered
// by entry ID.
//
// An Iterator keeps a cursor per stream. It reads pages of entries for all
// streams in one round trip, hands out the entry with the lowest ID across
// the buffered heads, and reads again only when every buffer is drained. A
// stream whose last page came back full is topped up on its own before it
// takes part in a comparison, so a bursty stream is never mistaken for one
// that has caught up.
//
// Within a stream entries are returned in strictly increasing ID order.
// Across streams the order follows the IDs of what is buffered, which matches
// global ID order as long as producers' clocks agree.
package stream

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/moontrade/streams/logger"
	"github.com/moontrade/streams/store"
	"github.com/moontrade/streams/streamid"
	"github.com/segmentio/ksuid"
)

// Iterator is a pull-based merge over a fixed set of streams. It is not safe
// for concurrent use.
type Iterator struct {
	id      ksuid.KSUID
	conf    Config
	client  store.Client
	cursors []*cursor // ordered by stream name
	done    bool
}

// New validates conf, pins FromNow positions to the current tail of their
// stream when client is a store.Tailer, and fills every buffer with one
// non-blocking read.
func New(client store.Client, conf Config) (*Iterator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", ErrInvalidArgument)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	conf.def()

	names := make([]string, 0, len(conf.Streams))
	for name := range conf.Streams {
		names = append(names, name)
	}
	sort.Strings(names)

	it := &Iterator{
		id:     ksuid.New(),
		conf:   conf,
		client: client,
	}
	for _, name := range names {
		it.cursors = append(it.cursors, newCursor(name, conf.Streams[name]))
	}
	if err := it.pinTails(); err != nil {
		return nil, err
	}
	if err := it.seed(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) pinTails() error {
	tailer, ok := it.client.(store.Tailer)
	if !ok {
		return nil
	}
	for _, c := range it.cursors {
		if !c.last.IsNow() {
			continue
		}
		id, err := tailer.Tail(c.name)
		if err != nil {
			return fmt.Errorf("stream: tail of %s: %w", c.name, err)
		}
		c.last = store.At(id)
		c.delivered = c.last
	}
	return nil
}

func (it *Iterator) seed() error {
	seedReads.Inc()
	batches, err := it.read(it.cursors, store.NoBlock)
	if errors.Is(err, store.ErrNoData) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stream: seed: %w", err)
	}
	it.absorb(it.cursors, batches)
	logger.Debug("iterator", it.ID(), "streams", len(it.cursors), "buffered", it.Buffered(), "seeded")
	return nil
}

// Next returns the next result of the merge, or ErrDone once the iteration
// has ended. It blocks for up to Config.Block when every buffer is empty.
//
// An unreachable store is returned as an error, or as a KindFailure result
// with Config.ReturnConnectionErrors. Either way the iterator stays usable
// and a later call retries from the same positions.
func (it *Iterator) Next() (Result, error) {
	if it.done {
		return Result{}, ErrDone
	}
	if it.empty() {
		batchReads.Inc()
		batches, err := it.read(it.cursors, it.conf.Block)
		if errors.Is(err, store.ErrNoData) {
			return it.timeout()
		}
		if err != nil {
			return it.fail(err)
		}
		it.absorb(it.cursors, batches)
		if it.empty() {
			return it.timeout()
		}
	}

	var pending []*cursor
	for _, c := range it.cursors {
		if c.saturated && c.empty() {
			pending = append(pending, c)
		}
	}
	if len(pending) > 0 {
		if err := it.refill(pending); err != nil {
			return it.fail(err)
		}
	}

	c := it.lowest()
	if c == nil {
		return Result{}, ErrDone
	}
	entriesReturned.Inc()
	return Result{Kind: KindEntry, Entry: c.pop()}, nil
}

// All yields results until the iteration ends. An error other than ErrDone
// is yielded once and ends the sequence.
func (it *Iterator) All() iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for {
			res, err := it.Next()
			if errors.Is(err, ErrDone) {
				return
			}
			if !yield(res, err) || err != nil {
				return
			}
		}
	}
}

func (it *Iterator) timeout() (Result, error) {
	switch {
	case it.conf.StopOnTimeout:
		timeouts.Inc()
		it.done = true
		logger.Debug("iterator", it.ID(), "stopped on timeout")
		return Result{}, ErrDone
	case it.conf.Block < 0:
		return Result{}, ErrDone
	}
	timeouts.Inc()
	logger.Trace("iterator", it.ID(), "block", it.conf.Block, "read timed out")
	return Result{Kind: KindTimeout, Timeout: it.conf.TimeoutResponse}, nil
}

// refill reads the next page of every saturated stream, one stream per read.
// Nothing is absorbed unless all reads succeed. An indefinite block is not
// applied here: the other streams already have entries waiting.
func (it *Iterator) refill(cursors []*cursor) error {
	block := it.conf.Block
	if block == store.Forever {
		block = store.NoBlock
	}
	pages := make(map[string][]store.Entry, len(cursors))
	for _, c := range cursors {
		refillReads.Inc()
		batches, err := it.read([]*cursor{c}, block)
		if errors.Is(err, store.ErrNoData) {
			continue
		}
		if err != nil {
			return err
		}
		pages[c.name] = batches[c.name]
	}
	// a stream without a page is no longer saturated
	it.absorb(cursors, pages)
	for _, c := range cursors {
		logger.Debug("iterator", it.ID(), "stream", c.name, "buffered", len(c.buffered), "refilled")
	}
	return nil
}

// absorb appends each cursor's batch and recomputes saturation. A cursor
// without a batch is no longer saturated.
func (it *Iterator) absorb(cursors []*cursor, batches map[string][]store.Entry) {
	for _, c := range cursors {
		if stale := c.push(batches[c.name], it.conf.Count); stale > 0 {
			staleEntries.Add(stale)
			logger.Debug("iterator", it.ID(), "stream", c.name, "stale", stale, "dropped re-delivered entries")
		}
	}
}

// lowest returns the cursor whose head has the smallest ID. Equal IDs go to
// the stream that sorts first by name.
func (it *Iterator) lowest() *cursor {
	var (
		best   *cursor
		bestID streamid.ID
	)
	for _, c := range it.cursors {
		id, ok := c.head()
		if !ok {
			continue
		}
		if best == nil || id.Less(bestID) {
			best, bestID = c, id
		}
	}
	return best
}

func (it *Iterator) empty() bool {
	for _, c := range it.cursors {
		if !c.empty() {
			return false
		}
	}
	return true
}

// ID identifies the iterator in logs.
func (it *Iterator) ID() string {
	return it.id.String()
}

// Streams returns the merged stream names in name order.
func (it *Iterator) Streams() []string {
	names := make([]string, len(it.cursors))
	for i, c := range it.cursors {
		names[i] = c.name
	}
	return names
}

// Buffered returns the number of entries read but not yet returned.
func (it *Iterator) Buffered() int {
	var n int
	for _, c := range it.cursors {
		n += len(c.buffered)
	}
	return n
}

// Positions returns, per stream, the position after the last returned
// entry. Passing it as Config.Streams to a new Iterator resumes the merge
// without losing buffered entries.
func (it *Iterator) Positions() map[string]store.Position {
	m := make(map[string]store.Position, len(it.cursors))
	for _, c := range it.cursors {
		m[c.name] = c.delivered
	}
	return m
}

// Done reports whether the iteration has ended for good.
func (it *Iterator) Done() bool {
	return it.done
}

// SetClient replaces the store client, for example after the caller has
// reconnected. Cursor state is kept.
func (it *Iterator) SetClient(client store.Client) {
	if client != nil {
		it.client = client
	}
}
