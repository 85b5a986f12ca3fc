package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/middleware"
	"github.com/techvara/crm/internal/services"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/metrics"
	"github.com/techvara/crm/pkg/response"
)

type createProposalRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid"`
}

// ProposalHandler exposes the authenticated proposal endpoints. The public
// tokenized endpoints live in ProposalPublicHandler.
type ProposalHandler struct {
	proposals *services.ProposalService
}

func NewProposalHandler(proposals *services.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

func (h *ProposalHandler) List(c *gin.Context) {
	proposals, err := h.proposals.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, proposals)
}

func (h *ProposalHandler) Get(c *gin.Context) {
	proposal, err := h.proposals.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, proposal)
}

// Create drafts an unsent proposal for a lead. No token exists until the
// first send.
func (h *ProposalHandler) Create(c *gin.Context) {
	var req createProposalRequest
	if !bindAndValidate(c, &req) {
		return
	}

	proposal, err := h.proposals.Create(c.Request.Context(), req.LeadID, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, proposal)
}

// Send issues or re-sends the proposal for a lead. A dispatch failure still
// returns the persisted proposal so the caller can see the sent state and
// retry delivery.
func (h *ProposalHandler) Send(c *gin.Context) {
	proposal, err := h.proposals.Send(c.Request.Context(), c.Param("leadId"), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, apperrors.ErrDispatchFailed) {
			metrics.ProposalSends.WithLabelValues("dispatch_failed").Inc()
			c.JSON(apperrors.ErrDispatchFailed.StatusCode, response.Response{
				Success: false,
				Data:    proposal,
				Error: &response.ErrorInfo{
					Code:    apperrors.ErrDispatchFailed.Code,
					Message: apperrors.ErrDispatchFailed.Message,
				},
			})
			return
		}
		metrics.ProposalSends.WithLabelValues("invalid").Inc()
		response.Error(c, err)
		return
	}

	metrics.ProposalSends.WithLabelValues("sent").Inc()
	response.Success(c, http.StatusOK, proposal)
}

func (h *ProposalHandler) Delete(c *gin.Context) {
	if err := h.proposals.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
