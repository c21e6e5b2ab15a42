package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/bitagoras/xtype/pkg/xtype"
)

func getCmd() *cli.Command {
	var (
		byteOrder string
		compact   bool
	)

	return &cli.Command{
		Name:      "get",
		Usage:     "Resolve a navigation expression and print the value as JSON",
		ArgsUsage: "FILE PATH",
		Description: `The path selects into the encoded structure without decoding
siblings: dict keys separated by dots, list and array indices and slices
in brackets. Examples:

   xtype get data.xt meta.name
   xtype get data.xt rows[-1]
   xtype get data.xt grid[0,1:3,::2]`,
		Flags: []cli.Flag{
			orderFlag(&byteOrder),
			&cli.BoolFlag{Name: "compact", Usage: "single-line output", Destination: &compact},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return cli.Exit("usage: xtype get FILE PATH", 1)
			}
			order, err := parseOrder(byteOrder)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			path, err := xtype.ParsePath(c.Args().Get(1))
			if err != nil {
				return cli.Exit(fmt.Sprintf("path: %v", err), 1)
			}
			f, err := xtype.Open(c.Args().First(), xtype.Options{Order: order})
			if err != nil {
				return cli.Exit(fmt.Sprintf("open: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			v, err := f.Nav().Get(path...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("get: %v", err), 1)
			}
			return printJSON(v.Interface(), compact)
		},
	}
}
