// Package datastore opens the relational store backing alert configurations,
// alert instances, metric samples and anomaly model metadata.
package datastore

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

const (
	slowQueryThreshold = 500 * time.Millisecond
	maxOpenConns       = 10
	connMaxLifetime    = 30 * time.Minute
)

// Manager owns the GORM connection.
type Manager struct {
	db  *gorm.DB
	log logger.Logger
}

// Open connects to the configured database. It does not migrate.
func Open(settings conf.DatabaseSettings, log logger.Logger) (*Manager, error) {
	var dialector gorm.Dialector
	switch settings.Type {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(settings.SQLite.Path))
	case "mysql":
		dialector = mysql.Open(MySQLDSN(settings.MySQL))
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfig).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.New(gormWriter{log: log}, gorm_logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gorm_logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("type", settings.Type).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if settings.Type == "sqlite" {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	log.Info("database opened", logger.String("type", settings.Type))
	return &Manager{db: db, log: log}, nil
}

// NewManager wraps an existing connection, for tests.
func NewManager(db *gorm.DB, log logger.Logger) *Manager {
	return &Manager{db: db, log: log}
}

// DB returns the underlying GORM handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Migrate creates or updates every table.
func (m *Manager) Migrate() error {
	if err := m.db.AutoMigrate(entities.AllModels()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}
	return nil
}

// Close closes the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=ON&_busy_timeout=5000&_journal_mode=WAL"
}

// MySQLDSN builds a DSN with parseTime enabled so DATETIME columns scan into
// time.Time.
func MySQLDSN(s conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// gormWriter forwards GORM's warnings into the service logger.
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...), logger.String("component", "gorm"))
}
