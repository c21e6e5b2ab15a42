package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bitagoras/xtype/pkg/xtype"
)

func inspectCmd() *cli.Command {
	var (
		byteOrder string
		indent    int
		maxLevel  int
		maxBytes  int
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the token-level structure of an xtype file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			orderFlag(&byteOrder),
			&cli.IntFlag{Name: "indent", Usage: "spaces per nesting level", Value: 2, Destination: &indent},
			&cli.IntFlag{Name: "max-level", Usage: "cap on indentation depth", Value: 10, Destination: &maxLevel},
			&cli.IntFlag{Name: "max-bytes", Usage: "payload bytes shown per value", Value: 15, Destination: &maxBytes},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return cli.Exit("usage: xtype inspect FILE", 1)
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

			opts := xtype.DebugOptions{
				IndentSize:     indent,
				MaxIndentLevel: maxLevel,
				MaxBinaryBytes: maxBytes,
			}
			for line, err := range f.Nav().Debug(opts) {
				if err != nil {
					return cli.Exit(fmt.Sprintf("inspect: %v", err), 1)
				}
				_, _ = fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}
}
