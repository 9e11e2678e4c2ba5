package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/moontrade/streams/logger"
	"github.com/moontrade/streams/store"
	"github.com/moontrade/streams/stream"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func openStore(ctx *cli.Context) *store.Redis {
	return store.Open(ctx.String("addr"), store.Options{Auth: ctx.String("auth")})
}

// parseBlock reads the --block flag.
func parseBlock(s string) (time.Duration, error) {
	switch strings.ToLower(s) {
	case "forever", "0":
		return store.Forever, nil
	case "none", "no", "-1":
		return store.NoBlock, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid block %q: %w", s, err)
	}
	if d <= 0 {
		return store.NoBlock, nil
	}
	return d, nil
}

// resolveStreams merges the named streams with the keys matching pattern.
func resolveStreams(r *store.Redis, names []string, pattern string) ([]string, error) {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	if pattern != "" {
		keys, err := r.Keys(pattern)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			logger.Warn("pattern", pattern, "no keys match")
		}
		for _, key := range keys {
			set[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func runTail(ctx *cli.Context) error {
	block, err := parseBlock(ctx.String("block"))
	if err != nil {
		return err
	}
	r := openStore(ctx)
	defer r.Close()

	names, err := resolveStreams(r, ctx.Args().Slice(), ctx.String("match"))
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("no streams to follow")
	}
	raw := make(map[string]string, len(names))
	for _, name := range names {
		raw[name] = ctx.String("from")
	}
	positions, err := stream.ParsePositions(raw)
	if err != nil {
		return err
	}

	it, err := stream.New(r, stream.Config{
		Streams:                positions,
		Count:                  ctx.Int("count"),
		Block:                  block,
		StopOnTimeout:          ctx.Bool("stop-on-timeout"),
		ReturnConnectionErrors: true,
	})
	if err != nil {
		return err
	}
	logger.Info("iterator", it.ID(), "streams", names, "from", ctx.String("from"), "following")

	sctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sctx)

	if addr := ctx.String("metrics-addr"); addr != "" {
		srv := metricsServer(addr)
		g.Go(func() error {
			logger.Info("addr", addr, "serving metrics")
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("metrics server stopped: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		defer stop()
		out := bufio.NewWriter(ctx.App.Writer)
		defer out.Flush()
		return follow(gctx, it, out, ctx.String("select"), ctx.Duration("retry"))
	})
	return g.Wait()
}

// follow prints entries until the iteration ends or ctx is cancelled. The
// output is flushed whenever the iterator has nothing buffered.
func follow(ctx context.Context, it *stream.Iterator, out *bufio.Writer, sel string, retry time.Duration) error {
	for ctx.Err() == nil {
		res, err := it.Next()
		if errors.Is(err, stream.ErrDone) {
			return nil
		}
		if err != nil {
			return err
		}
		switch res.Kind {
		case stream.KindEntry:
			line, err := format(res.Entry, sel)
			if err != nil {
				return err
			}
			if line != nil {
				out.Write(line)
				out.WriteByte('\n')
			}
			if it.Buffered() > 0 {
				continue
			}
		case stream.KindFailure:
			logger.WarnErr(res.Err, "retry", retry, "store unreachable")
			select {
			case <-ctx.Done():
			case <-time.After(retry):
			}
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          stdlog.New(logger.Writer(zerolog.WarnLevel, "metrics"), "", 0),
	}
}
