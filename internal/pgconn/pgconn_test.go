package pgconn

import (
	"net/url"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvPrefersPublicURL(t *testing.T) {
	p := FromEnv(envMap(map[string]string{
		"DATABASE_PUBLIC_URL": "postgres://public/db",
		"DATABASE_URL":        "postgres://private/db",
	}))
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != "postgres://public/db" {
		t.Fatalf("expected public url, got %s", dsn)
	}
}

func TestDSNFromDiscreteFields(t *testing.T) {
	p := FromEnv(envMap(map[string]string{
		"PGHOST":     "db.internal",
		"PGDATABASE": "carburants",
		"PGUSER":     "loader",
		"PGPASSWORD": "p@ss word",
		"PGSSLMODE":  "require",
	}))
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn %q: %v", dsn, err)
	}
	if u.Host != "db.internal:5432" {
		t.Fatalf("expected default port, got %s", u.Host)
	}
	if u.Path != "/carburants" {
		t.Fatalf("unexpected database path %s", u.Path)
	}
	if pw, _ := u.User.Password(); pw != "p@ss word" {
		t.Fatalf("password not preserved: %q", pw)
	}
	if u.Query().Get("sslmode") != "require" {
		t.Fatalf("expected sslmode=require, got %q", u.Query().Get("sslmode"))
	}
	if u.Query().Get("connect_timeout") != "10" {
		t.Fatalf("expected connect_timeout=10")
	}
}

func TestDSNRequiresTarget(t *testing.T) {
	if _, err := (Params{Host: "only-host"}).DSN(); err == nil {
		t.Fatalf("expected error without database name")
	}
}

func TestMergeKeepsExplicitValues(t *testing.T) {
	merged := Params{Host: "a"}.Merge(Params{Host: "b", Database: "x"})
	if merged.Host != "a" || merged.Database != "x" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}
