package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/entitlement/internal/entitlement/domain"
)

type entitlementRequest struct {
	AccountID  snowflake.ID `json:"account_id"`
	ModuleID   string       `json:"module_id"`
	FeatureKey string       `json:"feature_key"`
	Amount     int64        `json:"amount"`
}

func (r entitlementRequest) query() entitlementdomain.Query {
	return entitlementdomain.Query{
		AccountID:  r.AccountID,
		ModuleID:   strings.TrimSpace(r.ModuleID),
		FeatureKey: strings.TrimSpace(r.FeatureKey),
	}
}

// amount defaults to one unit.
func (r entitlementRequest) amount() int64 {
	if r.Amount == 0 {
		return 1
	}
	return r.Amount
}

func (s *Server) CheckEntitlement(c *gin.Context) {
	s.resolveEntitlement(c, func(ctx context.Context, req entitlementRequest) (*entitlementdomain.Entitlement, error) {
		return s.entitlementSvc.Check(ctx, req.query())
	})
}

func (s *Server) PeekEntitlement(c *gin.Context) {
	s.resolveEntitlement(c, func(ctx context.Context, req entitlementRequest) (*entitlementdomain.Entitlement, error) {
		return s.entitlementSvc.Peek(ctx, req.query())
	})
}

func (s *Server) ConsumeEntitlement(c *gin.Context) {
	s.resolveEntitlement(c, func(ctx context.Context, req entitlementRequest) (*entitlementdomain.Entitlement, error) {
		return s.entitlementSvc.Consume(ctx, req.query(), req.amount())
	})
}

func (s *Server) ReleaseEntitlement(c *gin.Context) {
	s.resolveEntitlement(c, func(ctx context.Context, req entitlementRequest) (*entitlementdomain.Entitlement, error) {
		return s.entitlementSvc.Release(ctx, req.query(), req.amount())
	})
}

func (s *Server) resolveEntitlement(c *gin.Context, fn func(context.Context, entitlementRequest) (*entitlementdomain.Entitlement, error)) {
	var req entitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := fn(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
