package main

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// DatabaseStats represents the keyspace statistics for a single database
type DatabaseStats struct {
	Keys    int64
	Expires int64
	AvgTTL  int64 // in milliseconds, 0 if not reported
}

// KeyspaceInfo maps database numbers to their statistics
type KeyspaceInfo map[int]DatabaseStats

var dbLine = regexp.MustCompile(`^db(\d+):keys=(\d+),expires=(\d+)(?:,avg_ttl=(\d+))?`)

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "compare INFO keyspace of a reference Redis and a system under test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ref", Usage: "reference endpoint (host:port)", Required: true},
			&cli.StringFlag{Name: "sut", Usage: "system under test endpoint (host:port)", Required: true},
			&cli.StringFlag{Name: "password", Usage: "AUTH password for both endpoints"},
			&cli.IntSliceFlag{Name: "dbs", Usage: "only compare these database numbers"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: 5 * time.Second},
		},
		Action: runDiff,
	}
}

func runDiff(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	ref, err := getKeyspaceInfo(ctx, cmd.String("ref"), cmd.String("password"))
	if err != nil {
		return fmt.Errorf("reference %s: %w", cmd.String("ref"), err)
	}
	sut, err := getKeyspaceInfo(ctx, cmd.String("sut"), cmd.String("password"))
	if err != nil {
		return fmt.Errorf("system %s: %w", cmd.String("sut"), err)
	}

	var filter map[int]bool
	if dbs := cmd.IntSlice("dbs"); len(dbs) > 0 {
		filter = make(map[int]bool, len(dbs))
		for _, db := range dbs {
			filter[int(db)] = true
		}
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "Comparing keyspace information:\n  Reference: %s\n  System:    %s\n\n", cmd.String("ref"), cmd.String("sut"))

	if differences := compareKeyspaceInfo(out, ref, sut, filter); differences > 0 {
		fmt.Fprintf(out, "\nFAILURE: %d differences found\n", differences)
		return &exitError{code: 1}
	}
	fmt.Fprintln(out, "\nSUCCESS: no differences found")
	return nil
}

// getKeyspaceInfo runs INFO keyspace against addr
func getKeyspaceInfo(ctx context.Context, addr, password string) (KeyspaceInfo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	defer client.Close()

	info, err := client.Info(ctx, "keyspace").Result()
	if err != nil {
		return nil, err
	}
	return parseKeyspaceInfo(info), nil
}

// parseKeyspaceInfo extracts lines like db0:keys=2,expires=0,avg_ttl=0
func parseKeyspaceInfo(info string) KeyspaceInfo {
	keyspace := make(KeyspaceInfo)

	for _, line := range strings.Split(info, "\n") {
		matches := dbLine.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		db, _ := strconv.Atoi(matches[1])
		keys, _ := strconv.ParseInt(matches[2], 10, 64)
		expires, _ := strconv.ParseInt(matches[3], 10, 64)

		var avgTTL int64
		if matches[4] != "" {
			avgTTL, _ = strconv.ParseInt(matches[4], 10, 64)
		}

		keyspace[db] = DatabaseStats{Keys: keys, Expires: expires, AvgTTL: avgTTL}
	}

	return keyspace
}

// compareKeyspaceInfo writes a per-database report and returns the number of
// differences. AvgTTL is reported but never counted.
func compareKeyspaceInfo(w io.Writer, ref, sut KeyspaceInfo, filter map[int]bool) int {
	seen := make(map[int]bool)
	var dbs []int
	for _, info := range []KeyspaceInfo{ref, sut} {
		for db := range info {
			if (filter == nil || filter[db]) && !seen[db] {
				seen[db] = true
				dbs = append(dbs, db)
			}
		}
	}
	sort.Ints(dbs)

	differences := 0
	for _, db := range dbs {
		refStats, inRef := ref[db]
		sutStats, inSut := sut[db]

		fmt.Fprintf(w, "db%d:\n", db)
		switch {
		case !inRef:
			fmt.Fprintf(w, "  missing in reference, system has keys=%d,expires=%d\n", sutStats.Keys, sutStats.Expires)
			differences++
		case !inSut:
			fmt.Fprintf(w, "  missing in system, reference has keys=%d,expires=%d\n", refStats.Keys, refStats.Expires)
			differences++
		default:
			match := true
			if refStats.Keys != sutStats.Keys {
				fmt.Fprintf(w, "  keys differ: ref=%d sut=%d\n", refStats.Keys, sutStats.Keys)
				differences++
				match = false
			}
			if refStats.Expires != sutStats.Expires {
				fmt.Fprintf(w, "  expires differ: ref=%d sut=%d\n", refStats.Expires, sutStats.Expires)
				differences++
				match = false
			}
			if refStats.AvgTTL != sutStats.AvgTTL {
				fmt.Fprintf(w, "  avg_ttl differs: ref=%d sut=%d (not counted)\n", refStats.AvgTTL, sutStats.AvgTTL)
			}
			if match {
				fmt.Fprintf(w, "  match: keys=%d,expires=%d\n", refStats.Keys, refStats.Expires)
			}
		}
	}
	return differences
}
