package postgres

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate runs every goose migration in fsys (typically an
// //go:embed migrations/*.sql directory) against url, using a throwaway
// database/sql handle since goose drives migrations independently of the
// pgxpool used for regular traffic.
func Migrate(url string, fsys embed.FS, dir string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("postgres - Migrate - sql.Open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres - Migrate - goose.SetDialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("postgres - Migrate - goose.Up: %w", err)
	}

	return nil
}
