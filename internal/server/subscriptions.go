package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
)

type activateSubscriptionRequest struct {
	AccountID    snowflake.ID `json:"account_id"`
	ModuleID     string       `json:"module_id"`
	TierID       snowflake.ID `json:"tier_id"`
	TierKey      string       `json:"tier_key"`
	BillingCycle string       `json:"billing_cycle"`
	TrialDays    int          `json:"trial_days"`
}

type subscriptionEventRequest struct {
	AccountID    snowflake.ID `json:"account_id"`
	ModuleID     string       `json:"module_id"`
	TierKey      string       `json:"tier_key"`
	Status       string       `json:"status"`
	PeriodEnd    *time.Time   `json:"period_end"`
	BillingCycle string       `json:"billing_cycle"`
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	var req activateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	moduleID := strings.TrimSpace(req.ModuleID)
	tierID := req.TierID
	if tierID == 0 && strings.TrimSpace(req.TierKey) != "" {
		tier, err := s.tierSvc.FindTier(ctx, moduleID, strings.TrimSpace(req.TierKey))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		tierID = tier.ID
	}

	resp, err := s.subscriptionSvc.Activate(ctx, subscriptiondomain.ActivateRequest{
		AccountID:    req.AccountID,
		ModuleID:     moduleID,
		TierID:       tierID,
		BillingCycle: subscriptiondomain.BillingCycle(strings.ToLower(strings.TrimSpace(req.BillingCycle))),
		TrialDays:    req.TrialDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(resp)})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(resp)})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(resp)})
}

func (s *Server) GetCurrentTier(c *gin.Context) {
	accountID, err := parseSnowflakeParam(c, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tier, err := s.subscriptionSvc.CurrentTier(c.Request.Context(), accountID, c.Param("module_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toTierResponse(tier)})
}

func (s *Server) GetLiveSubscription(c *gin.Context) {
	accountID, err := parseSnowflakeParam(c, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.GetLive(c.Request.Context(), accountID, c.Param("module_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(resp)})
}

func (s *Server) ListSubscriptionHistory(c *gin.Context) {
	accountID, err := parseSnowflakeParam(c, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.subscriptionSvc.History(c.Request.Context(), accountID, c.Param("module_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]*subscriptionResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toSubscriptionResponse(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// HandleSubscriptionEvent applies a billing provider's status report. A
// terminal status for a pair without a live subscription is accepted and
// ignored.
func (s *Server) HandleSubscriptionEvent(c *gin.Context) {
	var req subscriptionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ev := subscriptiondomain.ProviderEvent{
		AccountID:    req.AccountID,
		ModuleID:     strings.TrimSpace(req.ModuleID),
		TierKey:      strings.TrimSpace(req.TierKey),
		Status:       subscriptiondomain.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		BillingCycle: subscriptiondomain.BillingCycle(strings.ToLower(strings.TrimSpace(req.BillingCycle))),
	}
	if req.PeriodEnd != nil {
		ev.PeriodEnd = req.PeriodEnd.UTC()
	}

	resp, err := s.subscriptionSvc.ApplyProviderEvent(c.Request.Context(), ev)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if resp == nil {
		c.JSON(http.StatusAccepted, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(resp)})
}
