package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rolodex.dev/internal/migrate"
	"rolodex.dev/internal/obs"
)

func main() {
	var (
		dsn   = flag.String("dsn", os.Getenv("ROLODEX_PG_DSN"), "PostgreSQL DSN")
		table = flag.String("table", "", "migrations bookkeeping table")
	)
	flag.Parse()
	log := obs.Logger()

	if *dsn == "" {
		log.Fatal().Msg("missing DSN: provide via -dsn or ROLODEX_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal().Msg("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrate.WithMigrationsTable(*table))

	switch cmd := flag.Arg(0); cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, path := range applied {
			log.Info().Str("migration", path).Msg("applied")
		}
	case "down":
		var path string
		path, err = mgr.Down(ctx)
		if err == nil {
			log.Info().Str("migration", path).Msg("rolled back")
		}
	case "status":
		var lines []string
		lines, err = mgr.Status(ctx)
		for _, line := range lines {
			fmt.Println(line)
		}
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migrate failed")
	}
}
