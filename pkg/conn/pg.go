package conn

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for PostgreSQL.
type PostgresOption struct {
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	User       string            `yaml:"user"`
	Password   string            `yaml:"password"`
	Database   string            `yaml:"database"`
	SSLMode    string            `yaml:"ssl_mode"`
	Params     map[string]string `yaml:"params"`
	ConnString string            `yaml:"conn_string"`
	Config     *gorm.Config      `yaml:"-"`
}

// Postgres wraps a PostgreSQL connection pool.
type Postgres struct {
	opt PostgresOption
	db  *gorm.DB
}

// NewPostgres creates a PostgreSQL client from the provided options.
func NewPostgres(option PostgresOption) (*Postgres, error) {
	connString := option.DSN()

	config := option.Config
	if config == nil {
		config = &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres").With("host", option.Host)
	}

	return &Postgres{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Postgres) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Migrate creates or updates the tables of the models.
func (c *Postgres) Migrate(models ...any) error {
	if err := c.db.AutoMigrate(models...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// Ping checks the connection.
func (c *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping postgres")
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Postgres) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DSN renders the connection string, ConnString wins when set.
func (opt PostgresOption) DSN() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
