package db

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	_ "github.com/go-sql-driver/mysql" // mysql driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // sqlite driver
)

type Config struct {
	User     string `mapstructure:"user"`
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
	Password string `mapstructure:"password"`
}

func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=True", c.User, c.Password, c.Host, c.Database)
}

// Backend journals committed staking events into SQL tables.
type Backend struct {
	driver  *entsql.Driver
	dialect string
	log     zerolog.Logger
}

// CreateBackend connects to mysql and creates the journal tables.
func CreateBackend(ctx context.Context, config Config, logger zerolog.Logger) (*Backend, error) {
	drv, err := entsql.Open(dialect.MySQL, config.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	return newBackend(ctx, drv, dialect.MySQL, logger)
}

// OpenSQLite opens (or creates) a file-backed sqlite journal.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*Backend, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	db.SetMaxOpenConns(1)
	return newBackend(ctx, entsql.OpenDB(dialect.SQLite, db), dialect.SQLite, logger)
}

func newBackend(ctx context.Context, drv *entsql.Driver, name string, logger zerolog.Logger) (*Backend, error) {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		drv.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	if err := m.Create(ctx, Tables...); err != nil {
		drv.Close()
		return nil, errors.Wrap(err, "create tables")
	}
	return &Backend{
		driver:  drv,
		dialect: name,
		log:     logger,
	}, nil
}

func (c *Backend) Close() error {
	return c.driver.Close()
}

func (c *Backend) builder() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}
