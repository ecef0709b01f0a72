package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sessionlab/billing/internal/config"
	"github.com/sessionlab/billing/internal/logger"
)

// Applies the SQL files under migrations/ in lexical order. Each file runs in
// its own transaction; already-applied files are skipped via the
// schema_migrations table.
func main() {
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		log.Fatalf("ensure schema_migrations: %v", err)
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		name := filepath.Base(file)

		var applied bool
		if err := db.Get(&applied,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name); err != nil {
			log.Fatalf("check %s: %v", name, err)
		}
		if applied {
			log.Debugw("skipping applied migration", "name", name)
			continue
		}

		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("read %s: %v", name, err)
		}

		tx, err := db.Beginx()
		if err != nil {
			log.Fatalf("begin %s: %v", name, err)
		}
		if _, err := tx.Exec(string(contents)); err != nil {
			_ = tx.Rollback()
			log.Fatalf("apply %s: %v", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			log.Fatalf("record %s: %v", name, err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("commit %s: %v", name, err)
		}

		log.Infow("applied migration", "name", name)
	}
}
