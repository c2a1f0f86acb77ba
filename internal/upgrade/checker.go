// Package upgrade checks that the Postgres schema matches this binary.
package upgrade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RequiredSchemaVersion is the newest migration in migrations/.
const RequiredSchemaVersion uint = 1

// SchemaStatus is the result of a schema compatibility check.
type SchemaStatus struct {
	CurrentVersion  uint
	RequiredVersion uint
	Dirty           bool
	Compatible      bool
	NeedsMigration  bool
}

// CheckSchema reads golang-migrate's schema_migrations table. A missing table
// or row means a fresh database that needs migrating.
func CheckSchema(ctx context.Context, db *sql.DB) (*SchemaStatus, error) {
	var version uint
	var dirty bool

	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return &SchemaStatus{RequiredVersion: RequiredSchemaVersion, NeedsMigration: true}, nil
		}
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	return evaluate(version, dirty), nil
}

func evaluate(version uint, dirty bool) *SchemaStatus {
	s := &SchemaStatus{
		CurrentVersion:  version,
		RequiredVersion: RequiredSchemaVersion,
		Dirty:           dirty,
	}
	if dirty {
		return s
	}
	switch {
	case version == RequiredSchemaVersion:
		s.Compatible = true
	case version < RequiredSchemaVersion:
		s.NeedsMigration = true
	}
	return s
}

// isUndefinedTable matches Postgres SQLSTATE 42P01 as reported by pgx.
func isUndefinedTable(err error) bool {
	var coded interface{ SQLState() string }
	return errors.As(err, &coded) && coded.SQLState() == "42P01"
}

// FormatError explains an incompatible status and how to fix it.
func FormatError(s *SchemaStatus) string {
	if s.Dirty {
		prev := s.CurrentVersion
		if prev > 0 {
			prev--
		}
		return fmt.Sprintf(
			"Database schema is in a dirty state (version %d).\n"+
				"A migration failed partway.\n\n"+
				"  Fix:  gitchat migrate force %d\n"+
				"  Then: gitchat migrate up\n",
			s.CurrentVersion, prev,
		)
	}
	if s.CurrentVersion > s.RequiredVersion {
		return fmt.Sprintf(
			"Database schema (v%d) is newer than this binary (requires v%d).\n"+
				"  Fix: upgrade the gitchat binary.\n",
			s.CurrentVersion, s.RequiredVersion,
		)
	}
	return fmt.Sprintf(
		"Database schema is outdated: current v%d, required v%d.\n\n"+
			"  Run: gitchat migrate up\n",
		s.CurrentVersion, s.RequiredVersion,
	)
}
