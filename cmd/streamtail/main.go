package main

import (
	"os"
	"time"

	"github.com/moontrade/streams/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "streamtail",
		Usage: "Follow several Redis streams as one sequence ordered by entry ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "127.0.0.1:6379",
				Usage:   "address of the Redis streams server",
				EnvVars: []string{"STREAMTAIL_ADDR"},
			},
			&cli.StringFlag{
				Name:    "auth",
				Usage:   "password sent with AUTH",
				EnvVars: []string{"STREAMTAIL_AUTH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "trace, debug, info, warn, error or silent",
				EnvVars: []string{"STREAMTAIL_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "log JSON lines instead of console output",
				EnvVars: []string{"STREAMTAIL_LOG_JSON"},
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("log-json") {
				logger.SetJSONWriter(os.Stderr)
			}
			return logger.SetLevel(ctx.String("log-level"))
		},
		Commands: []*cli.Command{{
			Name:      "tail",
			Usage:     "Print the entries of the given streams merged in ID order",
			ArgsUsage: "<stream> [stream ...]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "from",
					Value:   "$",
					Usage:   `start position of every stream: "$" for new entries only, "0" for all, or an entry ID`,
					EnvVars: []string{"STREAMTAIL_FROM"},
				},
				&cli.StringFlag{
					Name:    "match",
					Usage:   "also follow every key matching this glob pattern at startup",
					EnvVars: []string{"STREAMTAIL_MATCH"},
				},
				&cli.IntFlag{
					Name:    "count",
					Value:   100,
					Usage:   "entries fetched per stream per read",
					EnvVars: []string{"STREAMTAIL_COUNT"},
				},
				&cli.StringFlag{
					Name:    "block",
					Value:   "1s",
					Usage:   `wait for new entries: a duration, "forever" or "none"`,
					EnvVars: []string{"STREAMTAIL_BLOCK"},
				},
				&cli.BoolFlag{
					Name:    "stop-on-timeout",
					Usage:   "exit once a read times out",
					EnvVars: []string{"STREAMTAIL_STOP_ON_TIMEOUT"},
				},
				&cli.StringFlag{
					Name:    "select",
					Usage:   "print only this gjson path of every entry, e.g. fields.price",
					EnvVars: []string{"STREAMTAIL_SELECT"},
				},
				&cli.StringFlag{
					Name:    "metrics-addr",
					Usage:   "serve Prometheus metrics on this address",
					EnvVars: []string{"STREAMTAIL_METRICS_ADDR"},
				},
				&cli.DurationFlag{
					Name:  "retry",
					Value: time.Second,
					Usage: "pause before reading again after a connection failure",
				},
			},
			Action: runTail,
		}, {
			Name:      "add",
			Usage:     "Append one entry to a stream",
			ArgsUsage: "<stream> <field=value> [field=value ...]",
			Action:    runAdd,
		}, {
			Name:  "serve",
			Usage: "Run an in-memory Redis streams server for local development",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "listen",
					Value:   "127.0.0.1:6379",
					Usage:   "address to listen on",
					EnvVars: []string{"STREAMTAIL_LISTEN"},
				},
			},
			Action: runServe,
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err, "streamtail failed")
	}
}
