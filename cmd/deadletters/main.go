// deadletters prints the commands the workers gave up on, as stored by DEAD_LETTER_SINK=postgres.
// Run via go run ./cmd/deadletters -topic user-commands [-limit 50]. Records from the retry companion
// are included. Output is one JSON object per line, newest first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"chat-cqrs/internal/config"
	"chat-cqrs/internal/db"
	"chat-cqrs/internal/deadletter"
	deadletterrepo "chat-cqrs/internal/deadletter/repository"
)

func main() {
	topic := flag.String("topic", "", "Command topic (or its retry companion) to list")
	limit := flag.Int("limit", 50, "Maximum number of records")
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "deadletters: -topic is required")
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "postgres:", err)
		os.Exit(1)
	}
	defer conn.Close()

	records, err := deadletter.List(ctx, deadletterrepo.NewPostgresRepository(conn), *topic, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deadletters:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintln(os.Stderr, "deadletters:", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "%d record(s)\n", len(records))
}
