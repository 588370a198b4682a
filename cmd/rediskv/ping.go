package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check that a node answers PING",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "node address", Value: "localhost:6379"},
			&cli.StringFlag{Name: "password", Usage: "AUTH password"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "overall timeout", Value: 5 * time.Second},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			client := redis.NewClient(&redis.Options{
				Addr:     cmd.String("addr"),
				Password: cmd.String("password"),
			})
			defer client.Close()

			start := time.Now()
			pong, err := client.Ping(ctx).Result()
			if err != nil {
				return fmt.Errorf("ping %s: %w", cmd.String("addr"), err)
			}

			fmt.Fprintf(cmd.Root().Writer, "%s from %s in %s\n", pong, cmd.String("addr"), time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
}
