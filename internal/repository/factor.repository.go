package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"factortrader/internal/db/models/postgres/public/model"
	"factortrader/internal/db/models/postgres/public/table"
	"factortrader/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
)

type FactorRepository interface {
	Add(tx *sql.Tx, f domain.Factor) (*domain.Factor, error)
	Update(tx *sql.Tx, f domain.Factor) (*domain.Factor, error)
	Get(tx *sql.Tx, factorID string) (*domain.Factor, error)
	List(tx *sql.Tx) ([]domain.Factor, error)
	Delete(tx *sql.Tx, factorID string) error
}

type factorRepositoryHandler struct {
	Db *sql.DB
}

func NewFactorRepository(db *sql.DB) FactorRepository {
	return factorRepositoryHandler{Db: db}
}

type factorWithAssets struct {
	model.Factor
	Assets []model.FactorAsset
}

func (f factorWithAssets) toDomain() domain.Factor {
	out := domain.Factor{
		ID:          f.FactorID,
		Name:        f.Name,
		Description: f.Description,
		Color:       f.Color,
		Assets:      []domain.FactorAsset{},
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, a := range f.Assets {
		asset := domain.FactorAsset{
			Symbol: a.Symbol,
			Weight: a.Weight,
		}
		if a.AssetType != nil {
			asset.Type = domain.AssetType(*a.AssetType)
		}
		out.Assets = append(out.Assets, asset)
	}
	return out
}

func assetModels(factorID string, assets []domain.FactorAsset) []model.FactorAsset {
	out := []model.FactorAsset{}
	for i, a := range assets {
		var assetType *string
		if a.Type != domain.AssetTypeUnspecified {
			t := string(a.Type)
			assetType = &t
		}
		out = append(out, model.FactorAsset{
			FactorID:  factorID,
			Symbol:    a.Symbol,
			Weight:    a.Weight,
			AssetType: assetType,
			Position:  int32(i),
		})
	}
	return out
}

func (h factorRepositoryHandler) insertAssets(tx *sql.Tx, factorID string, assets []domain.FactorAsset) error {
	if len(assets) == 0 {
		return nil
	}
	_, err := table.FactorAsset.
		INSERT(table.FactorAsset.MutableColumns).
		MODELS(assetModels(factorID, assets)).
		Exec(tx)
	if err != nil {
		return fmt.Errorf("failed to insert assets for factor %s: %w", factorID, err)
	}
	return nil
}

func (h factorRepositoryHandler) Add(tx *sql.Tx, f domain.Factor) (*domain.Factor, error) {
	now := time.Now().UTC()
	var out *domain.Factor
	err := inTx(h.Db, tx, func(tx *sql.Tx) error {
		_, err := table.Factor.
			INSERT(table.Factor.AllColumns).
			MODEL(model.Factor{
				FactorID:    f.ID,
				Name:        f.Name,
				Description: f.Description,
				Color:       f.Color,
				CreatedAt:   now,
				UpdatedAt:   now,
			}).
			Exec(tx)
		if err != nil {
			return fmt.Errorf("failed to insert factor: %w", err)
		}

		if err := h.insertAssets(tx, f.ID, f.Assets); err != nil {
			return err
		}

		out, err = h.Get(tx, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (h factorRepositoryHandler) Update(tx *sql.Tx, f domain.Factor) (*domain.Factor, error) {
	var out *domain.Factor
	err := inTx(h.Db, tx, func(tx *sql.Tx) error {
		result, err := table.Factor.
			UPDATE(
				table.Factor.Name,
				table.Factor.Description,
				table.Factor.Color,
				table.Factor.UpdatedAt,
			).
			MODEL(model.Factor{
				Name:        f.Name,
				Description: f.Description,
				Color:       f.Color,
				UpdatedAt:   time.Now().UTC(),
			}).
			WHERE(table.Factor.FactorID.EQ(postgres.String(f.ID))).
			Exec(tx)
		if err != nil {
			return fmt.Errorf("failed to update factor %s: %w", f.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return domain.NotFoundError{Kind: "factor", Key: f.ID}
		}

		_, err = table.FactorAsset.
			DELETE().
			WHERE(table.FactorAsset.FactorID.EQ(postgres.String(f.ID))).
			Exec(tx)
		if err != nil {
			return fmt.Errorf("failed to clear assets for factor %s: %w", f.ID, err)
		}
		if err := h.insertAssets(tx, f.ID, f.Assets); err != nil {
			return err
		}

		out, err = h.Get(tx, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (h factorRepositoryHandler) selectFactors() postgres.SelectStatement {
	return postgres.SELECT(
		table.Factor.AllColumns,
		table.FactorAsset.AllColumns,
	).FROM(
		table.Factor.LEFT_JOIN(
			table.FactorAsset,
			table.FactorAsset.FactorID.EQ(table.Factor.FactorID),
		),
	)
}

func (h factorRepositoryHandler) Get(tx *sql.Tx, factorID string) (*domain.Factor, error) {
	query := h.selectFactors().
		WHERE(table.Factor.FactorID.EQ(postgres.String(factorID))).
		ORDER_BY(table.FactorAsset.Position.ASC())

	result := factorWithAssets{}
	err := query.Query(conn(h.Db, tx), &result)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, domain.NotFoundError{Kind: "factor", Key: factorID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factor %s: %w", factorID, err)
	}

	out := result.toDomain()
	return &out, nil
}

func (h factorRepositoryHandler) List(tx *sql.Tx) ([]domain.Factor, error) {
	query := h.selectFactors().
		ORDER_BY(
			table.Factor.CreatedAt.ASC(),
			table.Factor.FactorID.ASC(),
			table.FactorAsset.Position.ASC(),
		)

	result := []factorWithAssets{}
	err := query.Query(conn(h.Db, tx), &result)
	if err != nil && !errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}

	out := []domain.Factor{}
	for _, r := range result {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (h factorRepositoryHandler) Delete(tx *sql.Tx, factorID string) error {
	result, err := table.Factor.
		DELETE().
		WHERE(table.Factor.FactorID.EQ(postgres.String(factorID))).
		Exec(conn(h.Db, tx))
	if err != nil {
		return fmt.Errorf("failed to delete factor %s: %w", factorID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.NotFoundError{Kind: "factor", Key: factorID}
	}
	return nil
}
