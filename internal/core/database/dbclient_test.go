package db

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other pg error", &pgconn.PgError{Code: "23502"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	const base = "postgres://user:pw@localhost:5432/scanlens"

	dsn, err := buildDSN(base, "")
	if err != nil || dsn != base {
		t.Fatalf("buildDSN without cert = %q, %v", dsn, err)
	}

	if _, err := buildDSN(base, filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("expected error for missing cert")
	}

	cert := filepath.Join(t.TempDir(), "root.pem")
	if err := os.WriteFile(cert, []byte("cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	dsn, err = buildDSN(base, cert)
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Query().Get("sslmode"); got != "verify-ca" {
		t.Errorf("sslmode = %q", got)
	}
	if got := u.Query().Get("sslrootcert"); got != cert {
		t.Errorf("sslrootcert = %q", got)
	}
}
