package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
)

type registerAccountRequest struct {
	ID          snowflake.ID `json:"id"`
	AccountType string       `json:"account_type"`
}

func (s *Server) RegisterAccount(c *gin.Context) {
	var req registerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountSvc.Register(c.Request.Context(), accountdomain.RegisterRequest{
		ID:   req.ID,
		Type: accountdomain.AccountType(req.AccountType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toAccountResponse(resp)})
}

func (s *Server) GetAccount(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.accountSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toAccountResponse(resp)})
}

func (s *Server) ListModules(c *gin.Context) {
	modules, err := s.moduleSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]moduleResponse, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, toModuleResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetModule(c *gin.Context) {
	module, err := s.moduleSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("module_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toModuleResponse(*module)})
}

func (s *Server) ListTiers(c *gin.Context) {
	tiers, err := s.tierSvc.ListTiers(c.Request.Context(), strings.TrimSpace(c.Param("module_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]tierResponse, 0, len(tiers))
	for i := range tiers {
		resp = append(resp, toTierResponse(&tiers[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTierFeatures(c *gin.Context) {
	defs, err := s.featureSvc.ListFeatures(c.Request.Context(),
		strings.TrimSpace(c.Param("module_id")),
		strings.TrimSpace(c.Param("tier_key")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]featureResponse, 0, len(defs))
	for _, d := range defs {
		resp = append(resp, toFeatureResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
