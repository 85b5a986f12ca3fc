package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/internal/services"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/metrics"
	"github.com/techvara/crm/pkg/response"
)

// ProposalPublicHandler serves the unauthenticated decision links that
// proposal emails carry. The token in the path is the only credential.
type ProposalPublicHandler struct {
	proposals *services.ProposalService
}

func NewProposalPublicHandler(proposals *services.ProposalService) *ProposalPublicHandler {
	return &ProposalPublicHandler{proposals: proposals}
}

// View shows the proposal behind a token without changing it.
func (h *ProposalPublicHandler) View(c *gin.Context) {
	proposal, err := h.proposals.FindByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondDecisionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, proposal)
}

// Accept records an accept decision for the token's proposal.
func (h *ProposalPublicHandler) Accept(c *gin.Context) {
	h.decide(c, models.DecisionAccept, "accepted")
}

// Reject records a reject decision for the token's proposal.
func (h *ProposalPublicHandler) Reject(c *gin.Context) {
	h.decide(c, models.DecisionReject, "rejected")
}

func (h *ProposalPublicHandler) decide(c *gin.Context, decision models.ProposalDecision, outcome string) {
	proposal, err := h.proposals.Decide(c.Request.Context(), c.Param("token"), decision)
	if err != nil {
		h.respondDecisionError(c, err)
		return
	}

	metrics.ProposalDecisions.WithLabelValues(outcome).Inc()
	response.Success(c, http.StatusOK, gin.H{
		"status":   proposal.Status,
		"accepted": proposal.Accepted(),
		"message":  "Thank you, your response has been recorded.",
	})
}

// respondDecisionError keeps unknown tokens indistinguishable from each
// other while letting real persistence failures surface as 500s.
func (h *ProposalPublicHandler) respondDecisionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		metrics.ProposalDecisions.WithLabelValues("not_found").Inc()
	} else {
		metrics.ProposalDecisions.WithLabelValues("error").Inc()
	}
	response.Error(c, err)
}
