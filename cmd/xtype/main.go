package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "xtype",
		Usage: "Inspect and serve xtype binary container files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			dumpCmd(),
			getCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseOrder maps the byte-order option onto a binary.ByteOrder;
// "auto" (and "") selects the host order.
func parseOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "", "auto":
		return binary.NativeEndian, nil
	case "big":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q (want big, little or auto)", name)
	}
}

func orderFlag(dest *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "byte-order",
		Usage:       "file byte order: big, little or auto",
		Value:       "auto",
		Destination: dest,
	}
}
