// Package main is the PostgreSQL schema migration tool for the
// certificate access server. Migrations are embedded in the binary and
// applied in lexical order; each applied file is recorded in the
// schema_migrations table.
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "version":
		fmt.Printf("culture-migrate %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)

	case "up":
		if err := withConn(*configPath, migrateUp); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := withConn(*configPath, printStatus); err != nil {
			fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
			os.Exit(1)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: culture-migrate [-config FILE] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up       apply pending migrations")
	fmt.Println("  status   show applied and pending migrations")
	fmt.Println("  version  print version information")
}

func withConn(configPath string, fn func(context.Context, *pgx.Conn) error) error {
	dbCfg, err := config.LoadDatabase(configPath)
	if err != nil {
		return err
	}
	if dbCfg.IsEmbedded() {
		return fmt.Errorf("sqlite databases migrate automatically on startup")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	return fn(ctx, conn)
}

func ensureMigrationTable(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func appliedSet(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func migrateUp(ctx context.Context, conn *pgx.Conn) error {
	if err := ensureMigrationTable(ctx, conn); err != nil {
		return err
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}
	applied, err := appliedSet(ctx, conn)
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}

		sql, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}

		fmt.Printf("applied %s\n", name)
	}

	return nil
}

func printStatus(ctx context.Context, conn *pgx.Conn) error {
	if err := ensureMigrationTable(ctx, conn); err != nil {
		return err
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}
	applied, err := appliedSet(ctx, conn)
	if err != nil {
		return err
	}

	for _, name := range names {
		state := "pending"
		if applied[name] {
			state = "applied"
		}
		fmt.Printf("%-50s %s\n", name, state)
	}
	return nil
}
