package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/moontrade/streams/streamid"
	"github.com/tidwall/match"
)

var errIDTooSmall = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")

var errIDZero = errors.New("ERR The ID specified in XADD must be greater than 0-0")

type entry struct {
	id     streamid.ID
	fields []string
}

// reply renders the entry as [id, [field, value, ...]].
func (e entry) reply() []interface{} {
	return []interface{}{e.id.String(), e.fields}
}

// streamLog is an append-only list of entries in ascending ID order.
type streamLog struct {
	entries []entry
}

func (l *streamLog) last() streamid.ID {
	if len(l.entries) == 0 {
		return streamid.Min
	}
	return l.entries[len(l.entries)-1].id
}

// after returns up to count entries with an ID greater than id. A count of
// zero or less means no limit.
func (l *streamLog) after(id streamid.ID, count int) []entry {
	i := sort.Search(len(l.entries), func(i int) bool {
		return id.Less(l.entries[i].id)
	})
	out := l.entries[i:]
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// span returns the entries within [start, end] inclusive.
func (l *streamLog) span(start, end streamid.ID) []entry {
	i := sort.Search(len(l.entries), func(i int) bool {
		return !l.entries[i].id.Less(start)
	})
	j := sort.Search(len(l.entries), func(j int) bool {
		return end.Less(l.entries[j].id)
	})
	if i >= j {
		return nil
	}
	return l.entries[i:j]
}

// trim drops the oldest entries so at most maxLen remain.
func (l *streamLog) trim(maxLen int) int {
	if maxLen < 0 || len(l.entries) <= maxLen {
		return 0
	}
	n := len(l.entries) - maxLen
	l.entries = append(l.entries[:0:0], l.entries[n:]...)
	return n
}

// db holds every stream of a server. Readers waiting for new entries hold
// the current notify channel, which is closed and replaced on every append.
type db struct {
	mu      sync.RWMutex
	streams map[string]*streamLog
	notify  chan struct{}
	now     func() time.Time
}

func newDB() *db {
	return &db{
		streams: make(map[string]*streamLog),
		notify:  make(chan struct{}),
		now:     time.Now,
	}
}

// add appends an entry. A nil id asks for an auto-generated one.
func (d *db) add(key string, id *streamid.ID, fields []string, maxLen int) (streamid.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.streams[key]
	if l == nil {
		l = &streamLog{}
	}
	last := l.last()
	var next streamid.ID
	if id == nil {
		ms := uint64(d.now().UnixMilli())
		if ms > last.Ms {
			next = streamid.New(ms, 0)
		} else {
			var ok bool
			if next, ok = last.Next(); !ok {
				return streamid.ID{}, errIDTooSmall
			}
		}
	} else {
		if id.IsZero() {
			return streamid.ID{}, errIDZero
		}
		if !last.Less(*id) {
			return streamid.ID{}, errIDTooSmall
		}
		next = *id
	}
	l.entries = append(l.entries, entry{id: next, fields: fields})
	l.trim(maxLen)
	d.streams[key] = l

	close(d.notify)
	d.notify = make(chan struct{})
	return next, nil
}

// tail returns the last ID of a stream, or 0-0 when it does not exist.
func (d *db) tail(key string) streamid.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if l := d.streams[key]; l != nil {
		return l.last()
	}
	return streamid.Min
}

// read returns the new entries per key, in key order, leaving out keys
// without entries. The returned channel is closed on the next append.
func (d *db) read(keys []string, ids []streamid.ID, count int) ([]interface{}, <-chan struct{}) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []interface{}
	for i, key := range keys {
		l := d.streams[key]
		if l == nil {
			continue
		}
		entries := l.after(ids[i], count)
		if len(entries) == 0 {
			continue
		}
		items := make([]interface{}, len(entries))
		for j, e := range entries {
			items[j] = e.reply()
		}
		out = append(out, []interface{}{key, items})
	}
	return out, d.notify
}

func (d *db) span(key string, start, end streamid.ID, count int, reverse bool) []interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := []interface{}{}
	l := d.streams[key]
	if l == nil {
		return items
	}
	entries := l.span(start, end)
	for i := range entries {
		if count > 0 && len(items) == count {
			break
		}
		e := entries[i]
		if reverse {
			e = entries[len(entries)-1-i]
		}
		items = append(items, e.reply())
	}
	return items
}

func (d *db) length(key string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if l := d.streams[key]; l != nil {
		return len(l.entries)
	}
	return 0
}

func (d *db) del(keys []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, key := range keys {
		if _, ok := d.streams[key]; ok {
			delete(d.streams, key)
			n++
		}
	}
	return n
}

func (d *db) keys(pattern string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := []string{}
	for key := range d.streams {
		if match.Match(key, pattern) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (d *db) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streams = make(map[string]*streamLog)
}
