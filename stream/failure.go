package stream

import (
	"errors"
	"time"

	"github.com/moontrade/streams/logger"
	"github.com/moontrade/streams/store"
)

// read issues one store read over cursors starting at their last positions.
// It never changes cursor state; callers absorb the batches on success. Any
// connectivity error comes back as a *store.ConnectionError.
func (it *Iterator) read(cursors []*cursor, block time.Duration) (map[string][]store.Entry, error) {
	positions := make(map[string]store.Position, len(cursors))
	for _, c := range cursors {
		positions[c.name] = c.last
	}
	batches, err := it.client.Read(positions, it.conf.Count, block)
	if err == nil || errors.Is(err, store.ErrNoData) {
		return batches, err
	}
	if store.IsConnectionFailure(err) {
		var ce *store.ConnectionError
		if !errors.As(err, &ce) {
			err = &store.ConnectionError{Op: "read", Err: err}
		}
		connFailures.Inc()
		logger.WarnErr(err, "iterator", it.ID(), "streams", len(cursors), "store unreachable")
	}
	return nil, err
}

// fail turns a failed read into the return values of Next. Connection
// failures become a KindFailure result when configured to; everything else
// is returned as an error.
func (it *Iterator) fail(err error) (Result, error) {
	if it.conf.ReturnConnectionErrors && store.IsConnectionFailure(err) {
		return Result{Kind: KindFailure, Err: err}, nil
	}
	return Result{}, err
}
