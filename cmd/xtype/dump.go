package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/bitagoras/xtype/pkg/xtype"
)

func dumpCmd() *cli.Command {
	var (
		byteOrder string
		compact   bool
	)

	return &cli.Command{
		Name:      "dump",
		Usage:     "Decode a whole xtype file to JSON",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			orderFlag(&byteOrder),
			&cli.BoolFlag{Name: "compact", Usage: "single-line output", Destination: &compact},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return cli.Exit("usage: xtype dump FILE", 1)
			}
			order, err := parseOrder(byteOrder)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			f, err := xtype.Open(c.Args().First(), xtype.Options{Order: order})
			if err != nil {
				return cli.Exit(fmt.Sprintf("open: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			v, err := f.Nav().Read()
			if err != nil {
				return cli.Exit(fmt.Sprintf("decode: %v", err), 1)
			}
			return printJSON(v.Interface(), compact)
		},
	}
}

func printJSON(v any, compact bool) error {
	enc := json.NewEncoder(os.Stdout)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
