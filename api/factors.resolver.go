package api

import (
	"fmt"

	"factortrader/internal/domain"
	l1_service "factortrader/internal/service/l1"

	"github.com/gin-gonic/gin"
)

type factorResponse struct {
	domain.Factor
	Allocation *domain.Allocation `json:"allocation"`
}

func (m ApiHandler) withAllocation(c *gin.Context, factor domain.Factor) (*factorResponse, error) {
	allocation, err := m.FactorService.GetAllocation(c.Request.Context(), factor.ID)
	if err != nil {
		return nil, err
	}
	return &factorResponse{Factor: factor, Allocation: allocation}, nil
}

func (m ApiHandler) listFactors(c *gin.Context) {
	ctx := c.Request.Context()

	factors, err := m.FactorService.List(ctx)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to list factors: %w", err), c)
		return
	}
	allocations, err := m.FactorService.ListAllocations(ctx)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to list allocations: %w", err), c)
		return
	}

	byFactor := map[string]domain.Allocation{}
	for _, a := range allocations {
		byFactor[a.FactorID] = a
	}

	out := []factorResponse{}
	for _, f := range factors {
		resp := factorResponse{Factor: f}
		if a, ok := byFactor[f.ID]; ok {
			resp.Allocation = &a
		}
		out = append(out, resp)
	}

	c.JSON(200, out)
}

func (m ApiHandler) createFactor(c *gin.Context) {
	var requestBody l1_service.CreateFactorInput
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	factor, err := m.FactorService.Create(c.Request.Context(), requestBody)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, factorResponse{Factor: *factor})
}

func (m ApiHandler) getFactor(c *gin.Context) {
	factor, err := m.FactorService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out, err := m.withAllocation(c, *factor)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, out)
}

func (m ApiHandler) updateFactor(c *gin.Context) {
	var requestBody l1_service.UpdateFactorInput
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	factor, err := m.FactorService.Update(c.Request.Context(), c.Param("id"), requestBody)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out, err := m.withAllocation(c, *factor)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, out)
}

// deleteFactor also removes the factor's allocation record. Positions are
// left untouched; deallocate first to close them.
func (m ApiHandler) deleteFactor(c *gin.Context) {
	if err := m.FactorService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, map[string]string{"message": "ok"})
}
