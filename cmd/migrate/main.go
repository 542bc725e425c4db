// CLI tool to apply pending schema migrations from db/.
// Each file runs in its own transaction together with its migrations row.
// Usage: go run ./cmd/migrate [-dir db]
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var migrationPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{3}-`)

func main() {
	dir := flag.String("dir", "db", "directory holding *.sql migrations")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file, using process environment", zap.Error(err))
	}
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer conn.Close(ctx)

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil || len(files) == 0 {
		log.Fatal("no migration files found", zap.String("dir", *dir))
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		log.Fatal("read migrations table", zap.Error(err))
	}

	pending := pendingMigrations(files, applied)
	for _, f := range pending {
		name := filepath.Base(f)
		if err := apply(ctx, conn, f); err != nil {
			log.Fatal("migration failed", zap.String("file", name), zap.Error(err))
		}
		log.Info("applied", zap.String("file", name))
	}
	log.Info("migrations complete", zap.Int("applied", len(pending)), zap.Int("skipped", len(files)-len(pending)))
}

// appliedMigrations returns the recorded migration filenames. A missing
// migrations table means nothing has run yet.
func appliedMigrations(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	applied := make(map[string]bool)
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT to_regclass('migrations') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return applied, nil
	}
	rows, err := conn.Query(ctx, `SELECT migration FROM migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

// pendingMigrations returns files not yet applied, in filename order.
func pendingMigrations(files []string, applied map[string]bool) []string {
	var out []string
	for _, f := range files {
		if !applied[filepath.Base(f)] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return filepath.Base(out[i]) < filepath.Base(out[j]) })
	return out
}

func apply(ctx context.Context, conn *pgx.Conn, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO migrations (migration, description) VALUES ($1, $2)`,
			name, describe(name))
		return err
	})
}

// describe strips the YYYY-MM-DD-NNN- prefix and .sql suffix.
func describe(filename string) string {
	name := migrationPrefix.ReplaceAllString(strings.TrimSuffix(filename, ".sql"), "")
	return strings.ReplaceAll(name, "-", " ")
}
