package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when no row matches the requested name.
	ErrNotFound = errors.New("no row found")

	// ErrPayloadTooLarge is returned when a blob exceeds either the configured
	// max_blob_bytes or the limit enforced by the database server.
	ErrPayloadTooLarge = errors.New("payload exceeds the relational store's maximum blob size")
)

const (
	mysqlErrNetPacketTooLarge = 1153
	pgProgramLimitExceeded    = "54000"
)

// mapDriverError folds driver-specific "too big" failures into
// ErrPayloadTooLarge, keeping the driver error in the chain.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mysql.ErrPktTooLarge) {
		return errors.Join(ErrPayloadTooLarge, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrNetPacketTooLarge {
		return errors.Join(ErrPayloadTooLarge, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgProgramLimitExceeded {
		return errors.Join(ErrPayloadTooLarge, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrTooBig {
		return errors.Join(ErrPayloadTooLarge, err)
	}

	return err
}
