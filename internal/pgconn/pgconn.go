// Package pgconn resolves the Postgres target shared by the importer and the
// read API, and opens pgx pools against it.
package pgconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPort           = "5432"
	defaultConnectTimeout = "10"
)

// Params describes a store target either as a single URL or as discrete fields.
type Params struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// FromEnv reads DATABASE_PUBLIC_URL / DATABASE_URL, falling back to the PG* variables.
func FromEnv(getenv func(string) string) Params {
	p := Params{
		URL:      strings.TrimSpace(getenv("DATABASE_PUBLIC_URL")),
		Host:     strings.TrimSpace(getenv("PGHOST")),
		Port:     strings.TrimSpace(getenv("PGPORT")),
		Database: strings.TrimSpace(getenv("PGDATABASE")),
		User:     strings.TrimSpace(getenv("PGUSER")),
		Password: getenv("PGPASSWORD"),
		SSLMode:  strings.TrimSpace(getenv("PGSSLMODE")),
	}
	if p.URL == "" {
		p.URL = strings.TrimSpace(getenv("DATABASE_URL"))
	}
	return p
}

// Merge returns p with every empty field filled from fallback.
func (p Params) Merge(fallback Params) Params {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Params{
		URL:      pick(p.URL, fallback.URL),
		Host:     pick(p.Host, fallback.Host),
		Port:     pick(p.Port, fallback.Port),
		Database: pick(p.Database, fallback.Database),
		User:     pick(p.User, fallback.User),
		Password: pick(p.Password, fallback.Password),
		SSLMode:  pick(p.SSLMode, fallback.SSLMode),
	}
}

// DSN returns a connection string. A URL takes precedence over discrete fields.
func (p Params) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.Database == "" {
		return "", errors.New("DATABASE_URL or PGHOST/PGDATABASE is required")
	}

	port := p.Port
	if port == "" {
		port = defaultPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, port),
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}

	q := url.Values{}
	q.Set("connect_timeout", defaultConnectTimeout)
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open builds a pool for dsn and verifies connectivity.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
