package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "swampbot",
		Usage: "RingCentral team chat bot that answers repeated questions from chat history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config file",
				Value: "configs/config.yml",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to an optional .env file",
				Value: ".env",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the webhook server (default)",
				Action: serveAction,
			},
			{
				Name:   "subscribe",
				Usage:  "create the webhook subscription with the saved bot token",
				Action: subscribeAction,
			},
			{
				Name:   "chats",
				Usage:  "list the chats the bot belongs to",
				Action: chatsAction,
			},
			{
				Name:  "admin-token",
				Usage: "print a signed token for the admin endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subject",
						Usage: "token subject",
						Value: "admin",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: adminTokenAction,
			},
			{
				Name:  "hash-password",
				Usage: "print an argon2id hash for admin.password_hash",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "password",
						Usage:    "admin password",
						Required: true,
					},
				},
				Action: hashPasswordAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
