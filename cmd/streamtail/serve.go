package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/moontrade/streams/server"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func runServe(ctx *cli.Context) error {
	srv := server.New(server.Config{
		Addr: ctx.String("listen"),
		Auth: ctx.String("auth"),
	})

	sctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sctx)

	g.Go(func() error {
		defer stop()
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})
	return g.Wait()
}
