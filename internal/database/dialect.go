package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"blobbench/internal/config"
)

// dialect captures the handful of places where the supported databases
// disagree on SQL syntax.
type dialect struct {
	name string

	// numbered reports whether placeholders are $1, $2, ... instead of ?.
	numbered bool

	// returning reports whether inserts must use RETURNING id because the
	// driver does not implement LastInsertId.
	returning bool

	// likeContains builds a "name contains ?" predicate.
	likeContains string

	// octetLength is the function returning a blob's size in bytes.
	octetLength string
}

var dialects = map[string]dialect{
	config.RelationalDriverSQLite: {
		name:         config.RelationalDriverSQLite,
		likeContains: "name LIKE '%' || ? || '%'",
		octetLength:  "length",
	},
	config.RelationalDriverPostgres: {
		name:         config.RelationalDriverPostgres,
		numbered:     true,
		returning:    true,
		likeContains: "name LIKE '%' || CAST(? AS TEXT) || '%'",
		octetLength:  "octet_length",
	},
	config.RelationalDriverMySQL: {
		name:         config.RelationalDriverMySQL,
		likeContains: "name LIKE CONCAT('%', ?, '%')",
		octetLength:  "OCTET_LENGTH",
	},
}

// rebind rewrites ? placeholders into the dialect's native form.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// openDB opens a pool for cfg, injecting creds into the DSN where the driver
// supports it.
func openDB(cfg config.RelationalConfig, creds config.Credentials) (*sql.DB, error) {
	switch cfg.Driver {
	case config.RelationalDriverSQLite:
		return openSQLite(cfg.Instance)
	case config.RelationalDriverPostgres:
		connCfg, err := pgx.ParseConfig(cfg.Instance)
		if err != nil {
			return nil, fmt.Errorf("parse postgres instance: %w", err)
		}
		if creds.DBUser != "" {
			connCfg.User = creds.DBUser
		}
		if creds.DBPassword != "" {
			connCfg.Password = creds.DBPassword
		}
		return stdlib.OpenDB(*connCfg), nil
	case config.RelationalDriverMySQL:
		myCfg, err := mysql.ParseDSN(cfg.Instance)
		if err != nil {
			return nil, fmt.Errorf("parse mysql instance: %w", err)
		}
		if creds.DBUser != "" {
			myCfg.User = creds.DBUser
		}
		if creds.DBPassword != "" {
			myCfg.Passwd = creds.DBPassword
		}
		connector, err := mysql.NewConnector(myCfg)
		if err != nil {
			return nil, fmt.Errorf("create mysql connector: %w", err)
		}
		return sql.OpenDB(connector), nil
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", cfg.Driver)
	}
}

func isMemoryInstance(instance string) bool {
	return instance == ":memory:" || strings.Contains(instance, "mode=memory")
}

func openSQLite(instance string) (*sql.DB, error) {
	if !isMemoryInstance(instance) && !strings.HasPrefix(instance, "file:") {
		if err := os.MkdirAll(filepath.Dir(instance), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := instance
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return db, nil
}
