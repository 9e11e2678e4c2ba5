package stream

import (
	"errors"
	"sort"
	"time"

	"github.com/moontrade/streams/store"
	"github.com/moontrade/streams/streamid"
)

type readCall struct {
	streams []string
	count   int
	block   time.Duration
}

// fakeStore is an in-memory store.Client. IDs come from a clock shared by all
// streams so that the order of add calls is the global ID order.
type fakeStore struct {
	streams map[string][]store.Entry
	clock   uint64
	down    bool
	calls   []readCall
	// onBlock runs when a blocking read finds nothing, before giving up.
	onBlock func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{streams: make(map[string][]store.Entry)}
}

func (f *fakeStore) add(stream string, fields ...string) streamid.ID {
	f.clock++
	return f.addID(stream, streamid.New(f.clock, 0), fields...)
}

func (f *fakeStore) addID(stream string, id streamid.ID, fields ...string) streamid.ID {
	m := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		m[fields[i]] = fields[i+1]
	}
	f.streams[stream] = append(f.streams[stream], store.Entry{Stream: stream, ID: id, Fields: m})
	return id
}

func (f *fakeStore) tail(stream string) streamid.ID {
	entries := f.streams[stream]
	if len(entries) == 0 {
		return streamid.Min
	}
	return entries[len(entries)-1].ID
}

func (f *fakeStore) collect(positions map[string]store.Position, count int) map[string][]store.Entry {
	out := make(map[string][]store.Entry)
	for name, pos := range positions {
		if pos.IsNow() {
			pos = store.At(f.tail(name))
		}
		var batch []store.Entry
		for _, e := range f.streams[name] {
			if pos.After(e.ID) {
				batch = append(batch, e)
			}
			if count > 0 && len(batch) == count {
				break
			}
		}
		if len(batch) > 0 {
			out[name] = batch
		}
	}
	return out
}

func (f *fakeStore) Read(positions map[string]store.Position, count int, block time.Duration) (map[string][]store.Entry, error) {
	call := readCall{count: count, block: block}
	for name := range positions {
		call.streams = append(call.streams, name)
	}
	sort.Strings(call.streams)
	f.calls = append(f.calls, call)

	if f.down {
		return nil, &store.ConnectionError{Op: "xread", Err: errors.New("dial tcp: connection refused")}
	}
	out := f.collect(positions, count)
	if len(out) == 0 && block >= 0 && f.onBlock != nil {
		f.onBlock()
		out = f.collect(positions, count)
	}
	if len(out) == 0 {
		return nil, store.ErrNoData
	}
	return out, nil
}

// tailingStore also pins "from now" positions.
type tailingStore struct {
	*fakeStore
}

func (t tailingStore) Tail(stream string) (streamid.ID, error) {
	if t.down {
		return streamid.ID{}, &store.ConnectionError{Op: "xrevrange", Err: errors.New("connection refused")}
	}
	return t.tail(stream), nil
}

type clientFunc func(positions map[string]store.Position, count int, block time.Duration) (map[string][]store.Entry, error)

func (fn clientFunc) Read(positions map[string]store.Position, count int, block time.Duration) (map[string][]store.Entry, error) {
	return fn(positions, count, block)
}
