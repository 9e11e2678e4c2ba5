package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// parseFields turns "name=value" arguments into a flat name, value list.
func parseFields(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one field=value is required")
	}
	fields := make([]string, 0, len(args)*2)
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected name=value", arg)
		}
		fields = append(fields, name, value)
	}
	return fields, nil
}

func runAdd(ctx *cli.Context) error {
	stream := ctx.Args().First()
	if stream == "" {
		return errors.New("stream name is required")
	}
	fields, err := parseFields(ctx.Args().Tail())
	if err != nil {
		return err
	}
	r := openStore(ctx)
	defer r.Close()

	id, err := r.Append(stream, fields...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, id.String())
	return err
}
