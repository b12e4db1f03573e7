// Package ledger is the authoritative local persistence layer for bots,
// orders, trades, positions and derived metrics. It is the single
// singleton every other component receives a handle to; everything else
// is constructed around it rather than reaching for package-level state.
package ledger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gridbot/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Ledger is the durable store of bots, orders, trades and positions.
// Writes are serialized through mu; reads may run concurrently and will
// observe the last committed snapshot (GORM/sqlite WAL guarantees this
// without extra bookkeeping on our side).
type Ledger struct {
	db *gorm.DB
	mu sync.Mutex

	dbPath string // empty for non-sqlite backends; used by Backup
}

// Config selects the backing database.
type Config struct {
	Driver string // "sqlite" (default) or "postgres"
	DSN    string // sqlite file path, or a postgres connection string
}

// ConfigFromEnv builds a Config from DB_DRIVER/DB_DSN, defaulting to a
// local sqlite file, matching the teacher's DB_TYPE/DB_PATH convention.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver: os.Getenv("DB_DRIVER"),
		DSN:    os.Getenv("DB_DSN"),
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.DSN == "" {
		cfg.DSN = "data/gridbot.db"
	}
	return cfg
}

// Open creates (or reopens) a Ledger, running migrations.
func Open(cfg Config) (*Ledger, error) {
	var dialector gorm.Dialector
	var dbPath string

	switch cfg.Driver {
	case "", "sqlite":
		dbPath = cfg.DSN
		if dir := dirOf(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dialector = sqlite.Open(dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("ledger opened (driver=%s)", cfg.Driver)
	return l, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func (l *Ledger) migrate() error {
	return l.db.AutoMigrate(
		&Bot{},
		&Order{},
		&Trade{},
		&Position{},
		&Metrics{},
		&EquityPoint{},
	)
}

// DB exposes the underlying *gorm.DB so a caller that needs its own tables
// on the same database file (the Backtest Engine's run history) can share
// this connection instead of opening a second one.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// Backup snapshots the sqlite database to a timestamped file under dir,
// using VACUUM INTO so the copy is internally consistent even with
// concurrent readers. No-op for non-sqlite backends.
func (l *Ledger) Backup(dir string) (string, error) {
	if l.dbPath == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	dest := fmt.Sprintf("%s/ledger-%s.db", dir, time.Now().UTC().Format("20060102T150405Z"))

	l.mu.Lock()
	defer l.mu.Unlock()
	sqlDB, err := l.db.DB()
	if err != nil {
		return "", err
	}
	if _, err := sqlDB.Exec("VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}
	return dest, nil
}

// HealthCheck runs PRAGMA integrity_check; a non-"ok" result indicates
// corruption that should trigger a restore from the last backup.
func (l *Ledger) HealthCheck() error {
	if l.dbPath == "" {
		return nil // integrity_check is sqlite-specific
	}
	var result string
	if err := l.db.Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("ledger: database corruption detected: %s", result)
	}
	return nil
}

// Close releases the underlying connection.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
