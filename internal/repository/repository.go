package repository

import (
	"database/sql"
	"fmt"

	"github.com/go-jet/jet/v2/qrm"
)

type dbConn interface {
	qrm.Queryable
	qrm.Executable
}

func conn(db *sql.DB, tx *sql.Tx) dbConn {
	if tx != nil {
		return tx
	}
	return db
}

// inTx runs fn inside tx, or inside a new transaction when tx is nil.
func inTx(db *sql.DB, tx *sql.Tx, fn func(tx *sql.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	newTx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer newTx.Rollback()

	if err := fn(newTx); err != nil {
		return err
	}
	return newTx.Commit()
}
