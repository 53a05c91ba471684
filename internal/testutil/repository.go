// Package testutil holds in-memory stand-ins for the postgres repositories.
// They keep state across calls, which gomock expectations do not.
package testutil

import (
	"database/sql"
	"sort"
	"sync"
	"time"

	"factortrader/internal/db/models/postgres/public/model"
	"factortrader/internal/domain"
	"factortrader/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InMemoryFactorRepository struct {
	mu      sync.Mutex
	factors map[string]domain.Factor
	seq     int
}

var _ repository.FactorRepository = (*InMemoryFactorRepository)(nil)

func NewInMemoryFactorRepository(factors ...domain.Factor) *InMemoryFactorRepository {
	r := &InMemoryFactorRepository{factors: map[string]domain.Factor{}}
	for _, f := range factors {
		_, _ = r.Add(nil, f)
	}
	return r
}

func copyFactor(f domain.Factor) domain.Factor {
	f.Assets = append([]domain.FactorAsset{}, f.Assets...)
	return f
}

func (r *InMemoryFactorRepository) Add(tx *sql.Tx, f domain.Factor) (*domain.Factor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := time.Now().UTC()
	// keep list order stable even when timestamps collide
	f.CreatedAt = now.Add(time.Duration(r.seq) * time.Microsecond)
	f.UpdatedAt = f.CreatedAt
	if f.Assets == nil {
		f.Assets = []domain.FactorAsset{}
	}
	r.factors[f.ID] = copyFactor(f)

	out := copyFactor(f)
	return &out, nil
}

func (r *InMemoryFactorRepository) Update(tx *sql.Tx, f domain.Factor) (*domain.Factor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.factors[f.ID]
	if !ok {
		return nil, domain.NotFoundError{Kind: "factor", Key: f.ID}
	}
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	r.factors[f.ID] = copyFactor(f)

	out := copyFactor(f)
	return &out, nil
}

func (r *InMemoryFactorRepository) Get(tx *sql.Tx, factorID string) (*domain.Factor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factors[factorID]
	if !ok {
		return nil, domain.NotFoundError{Kind: "factor", Key: factorID}
	}
	out := copyFactor(f)
	return &out, nil
}

func (r *InMemoryFactorRepository) List(tx *sql.Tx) ([]domain.Factor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Factor{}
	for _, f := range r.factors {
		out = append(out, copyFactor(f))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryFactorRepository) Delete(tx *sql.Tx, factorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factors[factorID]; !ok {
		return domain.NotFoundError{Kind: "factor", Key: factorID}
	}
	delete(r.factors, factorID)
	return nil
}

type InMemoryAllocationRepository struct {
	mu          sync.Mutex
	allocations map[string]model.Allocation
}

var _ repository.AllocationRepository = (*InMemoryAllocationRepository)(nil)

func NewInMemoryAllocationRepository() *InMemoryAllocationRepository {
	return &InMemoryAllocationRepository{allocations: map[string]model.Allocation{}}
}

// WithLock does not lock; callers are expected to serialize.
func (r *InMemoryAllocationRepository) WithLock(fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (r *InMemoryAllocationRepository) Get(tx *sql.Tx, factorID string) (*model.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.allocations[factorID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *InMemoryAllocationRepository) List(tx *sql.Tx) ([]model.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []model.Allocation{}
	for _, a := range r.allocations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FactorID < out[j].FactorID
	})
	return out, nil
}

func (r *InMemoryAllocationRepository) Upsert(tx *sql.Tx, factorID string, percentage decimal.Decimal) (*model.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	a, ok := r.allocations[factorID]
	if !ok {
		a = model.Allocation{
			AllocationID: uuid.New(),
			FactorID:     factorID,
			AllocatedAt:  now,
		}
	}
	a.Percentage = percentage
	a.UpdatedAt = now
	r.allocations[factorID] = a

	return &a, nil
}

func (r *InMemoryAllocationRepository) Delete(tx *sql.Tx, factorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.allocations, factorID)
	return nil
}

// Total is the sum of every stored percentage.
func (r *InMemoryAllocationRepository) Total() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := decimal.Zero
	for _, a := range r.allocations {
		total = total.Add(a.Percentage)
	}
	return total
}
