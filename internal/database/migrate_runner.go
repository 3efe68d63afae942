package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey is the pg_advisory_xact_lock key taken while migrations run, so two
// instances booting together apply each script once.
const migrationLockKey = 0x1a7e11

// MigrationLog is one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// ledger reads and writes migration_logs through whatever handle it wraps, so it works the
// same inside and outside a transaction.
type ledger struct {
	db *gorm.DB
}

func (l ledger) applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := l.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return versions, nil
}

func (l ledger) record(ctx context.Context, m Migration) error {
	if err := l.db.WithContext(ctx).Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error; err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return nil
}

func (l ledger) forget(ctx context.Context, version int) error {
	if err := l.db.WithContext(ctx).Where("version = ?", version).Delete(&MigrationLog{}).Error; err != nil {
		return fmt.Errorf("failed to remove migration record %d: %w", version, err)
	}
	return nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// lock serializes migration runs across instances. SQLite needs no lock: its single
// connection already serializes writers.
func lock(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	return nil
}

// RunMigrations applies every pending embedded migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrationSet(ctx, db, migrations)
}

// runMigrationSet applies each pending migration in its own transaction together with its
// log row, so a failing script leaves neither schema changes nor a record behind.
func runMigrationSet(ctx context.Context, db *gorm.DB, set []Migration) error {
	if err := db.WithContext(ctx).Exec(ensureMigrationLogTableSQL).Error; err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	applied, err := ledger{db}.applied(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, set); err != nil {
		return err
	}

	for _, m := range pendingMigrations(applied, set) {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lock(tx); err != nil {
				return err
			}
			// Another instance may have applied it while we waited for the lock.
			done, err := ledger{tx}.applied(ctx)
			if err != nil {
				return err
			}
			if slices.Contains(done, m.Version) {
				return nil
			}

			middleware.Logger.Info("Applying migration", slog.String("migration", m.String()))
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.String(), err)
			}
			return ledger{tx}.record(ctx, m)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// pendingMigrations returns the members of set missing from applied, in version order.
func pendingMigrations(applied []int, set []Migration) []Migration {
	var out []Migration
	for _, m := range set {
		if !slices.Contains(applied, m.Version) {
			out = append(out, m)
		}
	}
	return out
}

// validateAppliedVersions refuses to run when the database has versions the binary does
// not know, which means an older binary is pointed at a newer schema.
func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, version := range slices.Sorted(slices.Values(applied)) {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == version }) {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs contains unknown versions not present in code: %s", strings.Join(unknown, ", "))
}

// RollbackMigration runs the down script of an applied migration and drops its log row in
// one transaction.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lock(tx); err != nil {
			return err
		}
		applied, err := ledger{tx}.applied(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(applied, version) {
			return fmt.Errorf("migration %d has not been applied", version)
		}

		middleware.Logger.Info("Rolling back migration", slog.String("migration", m.String()))
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("failed to run rollback SQL for migration %s: %w", m.String(), err)
		}
		return ledger{tx}.forget(ctx, version)
	})
}
