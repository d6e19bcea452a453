// Package store implements domain.AttendanceStore over database/sql.
// Production deployments point it at the school's MySQL database; the
// sqlite driver backs local development, demos and tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

// SQLStore implements domain.AttendanceStore.
type SQLStore struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
}

var _ domain.AttendanceStore = (*SQLStore)(nil)

// Open connects to the database described by cfg. MySQL connections are
// lazy; sqlite databases are created and migrated on open.
func Open(cfg config.DatabaseConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "mysql":
		return openMySQL(cfg)
	case "sqlite":
		return OpenSQLite(cfg.Path, cfg.QueryTimeout)
	default:
		return nil, domain.NewDomainError("store.Open", domain.ErrInvalidInput, "driver "+cfg.Driver)
	}
}

// MySQLDSN builds a DSN for cfg. Dates are scanned as text so the same
// row scanners serve both drivers.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = false
	mc.Timeout = 10 * time.Second
	mc.ReadTimeout = 30 * time.Second
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func openMySQL(cfg config.DatabaseConfig) (*SQLStore, error) {
	db, err := sql.Open("mysql", MySQLDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &SQLStore{db: db, driver: "mysql", queryTimeout: cfg.QueryTimeout}, nil
}

// OpenSQLite opens (or creates) a sqlite database at path and runs the
// schema migration.
func OpenSQLite(path string, queryTimeout time.Duration) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; WAL keeps readers concurrent.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLStore{db: db, driver: "sqlite", queryTimeout: queryTimeout}, nil
}

// Driver returns "mysql" or "sqlite".
func (s *SQLStore) Driver() string { return s.driver }

// Close closes the underlying database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewSubSystemError("store", "store.Ping", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kelas (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		nama       TEXT NOT NULL,
		tingkat    INTEGER,
		jurusan    TEXT,
		wali_kelas TEXT,
		deleted_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS siswa (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		nama           TEXT NOT NULL,
		nis            TEXT,
		status         TEXT NOT NULL DEFAULT 'aktif',
		nama_orang_tua TEXT,
		deleted_at     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS penempatan_kelas (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		siswa_id INTEGER NOT NULL REFERENCES siswa(id),
		kelas_id INTEGER NOT NULL REFERENCES kelas(id),
		status   TEXT NOT NULL DEFAULT 'aktif'
	)`,
	`CREATE TABLE IF NOT EXISTS absensi (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		siswa_id    INTEGER NOT NULL REFERENCES siswa(id),
		kelas_id    INTEGER REFERENCES kelas(id),
		tanggal     TEXT NOT NULL,
		status      TEXT NOT NULL,
		waktu_absen TEXT,
		metode      TEXT,
		latitude    REAL,
		longitude   REAL,
		jarak_meter REAL,
		keterangan  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_absensi_tanggal ON absensi(tanggal)`,
	`CREATE INDEX IF NOT EXISTS idx_absensi_siswa ON absensi(siswa_id, tanggal)`,
	`CREATE INDEX IF NOT EXISTS idx_penempatan_kelas ON penempatan_kelas(kelas_id, status)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
