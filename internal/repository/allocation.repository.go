package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"factortrader/internal/db/models/postgres/public/model"
	"factortrader/internal/db/models/postgres/public/table"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/shopspring/decimal"
)

type AllocationRepository interface {
	// WithLock runs fn in a transaction holding a table lock that
	// serializes every read-modify-write of the allocation set
	WithLock(fn func(tx *sql.Tx) error) error
	Get(tx *sql.Tx, factorID string) (*model.Allocation, error)
	List(tx *sql.Tx) ([]model.Allocation, error)
	Upsert(tx *sql.Tx, factorID string, percentage decimal.Decimal) (*model.Allocation, error)
	Delete(tx *sql.Tx, factorID string) error
}

type allocationRepositoryHandler struct {
	Db *sql.DB
}

func NewAllocationRepository(db *sql.DB) AllocationRepository {
	return allocationRepositoryHandler{Db: db}
}

func (h allocationRepositoryHandler) WithLock(fn func(tx *sql.Tx) error) error {
	return inTx(h.Db, nil, func(tx *sql.Tx) error {
		_, err := table.Allocation.
			LOCK().
			IN(postgres.LOCK_SHARE_ROW_EXCLUSIVE).
			Exec(tx)
		if err != nil {
			return fmt.Errorf("failed to lock allocation table: %w", err)
		}
		return fn(tx)
	})
}

// Get returns nil without error when the factor is unallocated.
func (h allocationRepositoryHandler) Get(tx *sql.Tx, factorID string) (*model.Allocation, error) {
	query := table.Allocation.
		SELECT(table.Allocation.AllColumns).
		WHERE(table.Allocation.FactorID.EQ(postgres.String(factorID)))

	out := model.Allocation{}
	err := query.Query(conn(h.Db, tx), &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation for %s: %w", factorID, err)
	}

	return &out, nil
}

func (h allocationRepositoryHandler) List(tx *sql.Tx) ([]model.Allocation, error) {
	query := table.Allocation.
		SELECT(table.Allocation.AllColumns).
		ORDER_BY(table.Allocation.AllocatedAt.ASC())

	out := []model.Allocation{}
	err := query.Query(conn(h.Db, tx), &out)
	if err != nil && !errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}

	return out, nil
}

func (h allocationRepositoryHandler) Upsert(tx *sql.Tx, factorID string, percentage decimal.Decimal) (*model.Allocation, error) {
	now := time.Now().UTC()
	query := table.Allocation.
		INSERT(table.Allocation.MutableColumns).
		MODEL(model.Allocation{
			FactorID:    factorID,
			Percentage:  percentage,
			AllocatedAt: now,
			UpdatedAt:   now,
		}).
		ON_CONFLICT(table.Allocation.FactorID).
		DO_UPDATE(
			postgres.SET(
				table.Allocation.Percentage.SET(table.Allocation.EXCLUDED.Percentage),
				table.Allocation.UpdatedAt.SET(table.Allocation.EXCLUDED.UpdatedAt),
			),
		).
		RETURNING(table.Allocation.AllColumns)

	out := model.Allocation{}
	err := query.Query(conn(h.Db, tx), &out)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert allocation for %s: %w", factorID, err)
	}

	return &out, nil
}

func (h allocationRepositoryHandler) Delete(tx *sql.Tx, factorID string) error {
	_, err := table.Allocation.
		DELETE().
		WHERE(table.Allocation.FactorID.EQ(postgres.String(factorID))).
		Exec(conn(h.Db, tx))
	if err != nil {
		return fmt.Errorf("failed to delete allocation for %s: %w", factorID, err)
	}
	return nil
}
