package l1_service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"factortrader/internal/db/models/postgres/public/model"
	"factortrader/internal/domain"
	"factortrader/internal/logger"
	"factortrader/internal/repository"

	"github.com/shopspring/decimal"
)

// FactorService is the factor store. It owns both persisted collections
// (factors and allocations) and every invariant between them.
type FactorService interface {
	Create(ctx context.Context, input CreateFactorInput) (*domain.Factor, error)
	Update(ctx context.Context, factorID string, input UpdateFactorInput) (*domain.Factor, error)
	Delete(ctx context.Context, factorID string) error
	Get(ctx context.Context, factorID string) (*domain.Factor, error)
	List(ctx context.Context) ([]domain.Factor, error)
	ResolveFactor(ctx context.Context, query string) (*domain.Factor, error)

	GetAllocation(ctx context.Context, factorID string) (*domain.Allocation, error)
	ListAllocations(ctx context.Context) ([]domain.Allocation, error)
	CheckAllocationCapacity(ctx context.Context, factorID string, percentage decimal.Decimal) error
	UpsertAllocation(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.Allocation, error)
	RemoveAllocation(ctx context.Context, factorID string) error
}

type factorServiceHandler struct {
	FactorRepository     repository.FactorRepository
	AllocationRepository repository.AllocationRepository

	// guards name/slug uniqueness and the allocation cap
	mu sync.Mutex
}

func NewFactorService(factorRepository repository.FactorRepository, allocationRepository repository.AllocationRepository) FactorService {
	return &factorServiceHandler{
		FactorRepository:     factorRepository,
		AllocationRepository: allocationRepository,
	}
}

type CreateFactorInput struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Color       string               `json:"color"`
	Assets      []domain.FactorAsset `json:"assets"`
}

// UpdateFactorInput is a partial update; nil fields are left untouched.
type UpdateFactorInput struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Color       *string              `json:"color"`
	Assets      []domain.FactorAsset `json:"assets"`
}

const defaultColor = "#6366f1"

func normalizeAssets(assets []domain.FactorAsset) []domain.FactorAsset {
	out := make([]domain.FactorAsset, 0, len(assets))
	for _, a := range assets {
		out = append(out, domain.FactorAsset{
			Symbol: strings.ToUpper(strings.TrimSpace(a.Symbol)),
			Weight: a.Weight,
			Type:   domain.AssetType(strings.ToLower(string(a.Type))),
		})
	}
	return out
}

func validateAssets(assets []domain.FactorAsset) error {
	if len(assets) == 0 {
		return domain.NewValidationError("A factor needs at least one asset")
	}

	one := decimal.NewFromInt(1)
	for _, a := range assets {
		if a.Symbol == "" {
			return domain.NewValidationError("Asset symbol is required")
		}
		if a.Weight.IsNegative() || a.Weight.GreaterThan(one) {
			return domain.NewValidationError("Weight for %s must be between 0 and 1 (got %s)", a.Symbol, a.Weight.String())
		}
	}

	total := domain.Factor{Assets: assets}.TotalWeight()
	if total.Sub(one).Abs().GreaterThan(domain.WeightEpsilon) {
		return domain.NewValidationError(
			"Asset weights must sum to 100%% (currently %s%%)",
			total.Mul(decimal.NewFromInt(100)).StringFixed(2),
		)
	}
	return nil
}

func nameTaken(factors []domain.Factor, name string, exceptID string) *domain.Factor {
	for i, f := range factors {
		if f.ID != exceptID && strings.EqualFold(f.Name, name) {
			return &factors[i]
		}
	}
	return nil
}

// uniqueSlug derives the id from the name and suffixes it until it does
// not collide with an existing id.
func uniqueSlug(factors []domain.Factor, name string) string {
	base := domain.Slugify(name)
	if base == "" {
		base = "factor"
	}
	taken := map[string]bool{}
	for _, f := range factors {
		taken[f.ID] = true
	}
	slug := base
	for i := 2; taken[slug]; i++ {
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return slug
}

func (h *factorServiceHandler) Create(ctx context.Context, input CreateFactorInput) (*domain.Factor, error) {
	log := logger.FromContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("Factor name is required")
	}
	assets := normalizeAssets(input.Assets)
	if err := validateAssets(assets); err != nil {
		log.Warnf("rejected factor %q: %v", name, err)
		return nil, err
	}
	color := input.Color
	if color == "" {
		color = defaultColor
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.FactorRepository.List(nil)
	if err != nil {
		return nil, err
	}
	if dup := nameTaken(existing, name, ""); dup != nil {
		return nil, domain.NewValidationError("A factor named \"%s\" already exists", dup.Name)
	}

	factor, err := h.FactorRepository.Add(nil, domain.Factor{
		ID:          uniqueSlug(existing, name),
		Name:        name,
		Description: input.Description,
		Color:       color,
		Assets:      assets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create factor: %w", err)
	}

	log.Infof("created factor %s (%d assets)", factor.ID, len(factor.Assets))
	return factor, nil
}

func (h *factorServiceHandler) Update(ctx context.Context, factorID string, input UpdateFactorInput) (*domain.Factor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	factor, err := h.FactorRepository.Get(nil, factorID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("Factor name is required")
		}
		if !strings.EqualFold(name, factor.Name) {
			existing, err := h.FactorRepository.List(nil)
			if err != nil {
				return nil, err
			}
			if dup := nameTaken(existing, name, factor.ID); dup != nil {
				return nil, domain.NewValidationError("A factor named \"%s\" already exists", dup.Name)
			}
		}
		factor.Name = name
	}
	if input.Assets != nil {
		assets := normalizeAssets(input.Assets)
		if err := validateAssets(assets); err != nil {
			logger.FromContext(ctx).Warnf("rejected update of factor %s: %v", factorID, err)
			return nil, err
		}
		factor.Assets = assets
	}
	if input.Description != nil {
		factor.Description = input.Description
	}
	if input.Color != nil {
		factor.Color = *input.Color
	}

	updated, err := h.FactorRepository.Update(nil, *factor)
	if err != nil {
		return nil, fmt.Errorf("failed to update factor: %w", err)
	}
	return updated, nil
}

// Delete removes the factor and then its allocation as a second write.
func (h *factorServiceHandler) Delete(ctx context.Context, factorID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.FactorRepository.Delete(nil, factorID); err != nil {
		return err
	}
	if err := h.AllocationRepository.Delete(nil, factorID); err != nil {
		return fmt.Errorf("factor %s deleted but its allocation was not: %w", factorID, err)
	}

	logger.FromContext(ctx).Infof("deleted factor %s", factorID)
	return nil
}

func (h *factorServiceHandler) Get(ctx context.Context, factorID string) (*domain.Factor, error) {
	return h.FactorRepository.Get(nil, factorID)
}

func (h *factorServiceHandler) List(ctx context.Context) ([]domain.Factor, error) {
	return h.FactorRepository.List(nil)
}

// ResolveFactor finds a factor by a free-text name: an exact
// case-insensitive match wins, otherwise the query must be a substring of
// exactly one factor name.
func (h *factorServiceHandler) ResolveFactor(ctx context.Context, query string) (*domain.Factor, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, domain.NewValidationError("Factor name is required")
	}

	factors, err := h.FactorRepository.List(nil)
	if err != nil {
		return nil, err
	}

	matches := []domain.Factor{}
	for _, f := range factors {
		name := strings.ToLower(f.Name)
		if name == q {
			out := f
			return &out, nil
		}
		if strings.Contains(name, q) {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 0:
		return nil, domain.NotFoundError{Kind: "factor", Key: strings.TrimSpace(query)}
	case 1:
		return &matches[0], nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return nil, domain.NewValidationError(
		"Ambiguous factor name \"%s\" matches: %s",
		strings.TrimSpace(query),
		strings.Join(names, ", "),
	)
}

func allocationToDomain(a model.Allocation) domain.Allocation {
	return domain.Allocation{
		FactorID:    a.FactorID,
		Percentage:  a.Percentage,
		AllocatedAt: a.AllocatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// GetAllocation returns nil when the factor is unallocated.
func (h *factorServiceHandler) GetAllocation(ctx context.Context, factorID string) (*domain.Allocation, error) {
	a, err := h.AllocationRepository.Get(nil, factorID)
	if err != nil || a == nil {
		return nil, err
	}
	out := allocationToDomain(*a)
	return &out, nil
}

func (h *factorServiceHandler) ListAllocations(ctx context.Context) ([]domain.Allocation, error) {
	allocations, err := h.AllocationRepository.List(nil)
	if err != nil {
		return nil, err
	}
	out := []domain.Allocation{}
	for _, a := range allocations {
		out = append(out, allocationToDomain(a))
	}
	return out, nil
}

func validatePercentage(percentage decimal.Decimal) error {
	if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(domain.AllocationCap) {
		return domain.NewValidationError("Percentage must be greater than 0 and at most 100 (got %s)", percentage.String())
	}
	return nil
}

func checkCapacity(allocations []model.Allocation, factorID string, percentage decimal.Decimal) error {
	others := decimal.Zero
	for _, a := range allocations {
		if a.FactorID != factorID {
			others = others.Add(a.Percentage)
		}
	}
	if others.Add(percentage).GreaterThan(domain.AllocationCap) {
		remaining := domain.AllocationCap.Sub(others)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return domain.NewValidationError(
			"Cannot allocate %s%%: only %s%% of capacity remains",
			percentage.String(),
			remaining.StringFixed(2),
		)
	}
	return nil
}

// CheckAllocationCapacity reports whether percentage would fit for
// factorID without writing anything.
func (h *factorServiceHandler) CheckAllocationCapacity(ctx context.Context, factorID string, percentage decimal.Decimal) error {
	if err := validatePercentage(percentage); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	allocations, err := h.AllocationRepository.List(nil)
	if err != nil {
		return err
	}
	return checkCapacity(allocations, factorID, percentage)
}

// UpsertAllocation checks the cap and writes in one locked transaction so
// concurrent upserts cannot push the total over 100.
func (h *factorServiceHandler) UpsertAllocation(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.Allocation, error) {
	if err := validatePercentage(percentage); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.FactorRepository.Get(nil, factorID); err != nil {
		return nil, err
	}

	var out *model.Allocation
	err := h.AllocationRepository.WithLock(func(tx *sql.Tx) error {
		allocations, err := h.AllocationRepository.List(tx)
		if err != nil {
			return err
		}
		if err := checkCapacity(allocations, factorID, percentage); err != nil {
			return err
		}
		out, err = h.AllocationRepository.Upsert(tx, factorID, percentage)
		return err
	})
	if err != nil {
		logger.FromContext(ctx).Warnf("allocation of %s%% to %s rejected: %v", percentage.String(), factorID, err)
		return nil, err
	}

	allocation := allocationToDomain(*out)
	return &allocation, nil
}

// RemoveAllocation is idempotent.
func (h *factorServiceHandler) RemoveAllocation(ctx context.Context, factorID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.AllocationRepository.Delete(nil, factorID)
}
