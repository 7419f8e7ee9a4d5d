package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"blobbench/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

const tableToken = "{{table}}"

// Record describes one stored row without its payload.
type Record struct {
	ID   int64
	Name string
	Size int64
}

// BlobTable stores named binary payloads in a single relational table. Names
// are not unique: every Insert appends a row.
type BlobTable struct {
	db           *sql.DB
	dialect      dialect
	table        string
	maxBlobBytes int64

	schemaMu    sync.Mutex
	schemaReady bool
}

// Open connects to the database described by cfg and verifies the
// connection. The table itself is created lazily on first use.
func Open(ctx context.Context, cfg config.RelationalConfig, creds config.Credentials) (*BlobTable, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported relational driver %q", cfg.Driver)
	}

	table := cfg.Table
	if table == "" {
		table = config.DefaultTable
	}

	db, err := openDB(cfg, creds)
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if d.name == config.RelationalDriverSQLite && isMemoryInstance(cfg.Instance) {
		// Each connection to :memory: is a separate database.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 && !isMemoryInstance(cfg.Instance) {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	return &BlobTable{
		db:           db,
		dialect:      d,
		table:        table,
		maxBlobBytes: cfg.MaxBlobBytes,
	}, nil
}

// Close releases the connection pool.
func (t *BlobTable) Close() error {
	return t.db.Close()
}

// Driver returns the name of the SQL driver backing the table.
func (t *BlobTable) Driver() string {
	return t.dialect.name
}

// Ping verifies that a connection can still be established.
func (t *BlobTable) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// ensureSchema applies the embedded migrations for the dialect in
// lexicographical order. A failed attempt is retried on the next call.
func (t *BlobTable) ensureSchema(ctx context.Context) error {
	t.schemaMu.Lock()
	defer t.schemaMu.Unlock()

	if t.schemaReady {
		return nil
	}

	dir := path.Join("migrations", t.dialect.name)
	err := fs.WalkDir(migrationsFS, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(p)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Debug("Running migration", "path", p, "table", t.table)
		query := strings.ReplaceAll(string(content), tableToken, t.table)
		if _, execError := t.db.ExecContext(ctx, query); execError != nil {
			return fmt.Errorf("migration %s: %w", p, execError)
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.schemaReady = true
	return nil
}

func (t *BlobTable) query(format string) string {
	return t.dialect.rebind(fmt.Sprintf(format, t.table))
}

// Insert appends a row holding data under name and returns its id.
func (t *BlobTable) Insert(ctx context.Context, name string, data []byte) (int64, error) {
	if t.maxBlobBytes > 0 && int64(len(data)) > t.maxBlobBytes {
		return 0, fmt.Errorf("%w: %d bytes exceeds the configured limit of %d", ErrPayloadTooLarge, len(data), t.maxBlobBytes)
	}
	if data == nil {
		// A nil slice binds as NULL.
		data = []byte{}
	}

	if err := t.ensureSchema(ctx); err != nil {
		return 0, err
	}

	var id int64
	err := WithTransaction(ctx, t.db, func(tx *sql.Tx) error {
		if t.dialect.returning {
			q := t.query(`INSERT INTO %s (name, data) VALUES (?, ?) RETURNING id`)
			return tx.QueryRowContext(ctx, q, name, data).Scan(&id)
		}

		res, err := tx.ExecContext(ctx, t.query(`INSERT INTO %s (name, data) VALUES (?, ?)`), name, data)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, mapDriverError(err)
	}

	return id, nil
}

// Fetch returns the payload of the newest row named name.
func (t *BlobTable) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := t.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var data []byte
	q := t.query(`SELECT data FROM %s WHERE name = ? ORDER BY id DESC LIMIT 1`)
	if err := t.db.QueryRowContext(ctx, q, name).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, mapDriverError(err)
	}

	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// DeleteByName removes every row named name and reports how many were
// removed.
func (t *BlobTable) DeleteByName(ctx context.Context, name string) (int64, error) {
	if err := t.ensureSchema(ctx); err != nil {
		return 0, err
	}

	var removed int64
	err := WithTransaction(ctx, t.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, t.query(`DELETE FROM %s WHERE name = ?`), name)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// Names returns the distinct names in the table, sorted.
func (t *BlobTable) Names(ctx context.Context) ([]string, error) {
	if err := t.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, t.query(`SELECT DISTINCT name FROM %s ORDER BY name`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Search returns the rows whose name contains substr, ordered by id. Pattern
// semantics, including case sensitivity, are those of the database's LIKE.
// An empty substr matches every row.
func (t *BlobTable) Search(ctx context.Context, substr string) ([]Record, error) {
	if err := t.ensureSchema(ctx); err != nil {
		return nil, err
	}

	q := t.dialect.rebind(fmt.Sprintf(
		`SELECT id, name, %s(data) FROM %s WHERE %s ORDER BY id`,
		t.dialect.octetLength, t.table, t.dialect.likeContains,
	))

	rows, err := t.db.QueryContext(ctx, q, substr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Size); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
