package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/bitagoras/xtype/internal/logger"
	"github.com/bitagoras/xtype/internal/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		byteOrder   string
		logLevel    string
		logFormat   string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve registered xtype files over a REST API",
		Flags: []cli.Flag{
			orderFlag(&byteOrder),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8091",
				Destination: &addr,
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Destination: &logLevel},
			&cli.StringFlag{Name: "log-format", Usage: "text, json or pretty", Destination: &logFormat},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := loadConfig()
			cfg.apply(c, &addr, &byteOrder, &logLevel, &logFormat)

			order, err := parseOrder(byteOrder)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if logFormat == "" {
				logFormat = "text"
			}
			log := logger.New(os.Stderr, logFormat, logger.ParseLevel(logLevel))

			srv := server.New(log, order)
			defer func() { _ = srv.Close() }()

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			srv.Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(hs *http.Server) error {
					hs.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
