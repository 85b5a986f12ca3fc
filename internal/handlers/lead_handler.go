package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/response"
)

// LeadHandler exposes lead and follow-up endpoints. Visibility scoping
// happens in the service, keyed off the viewer.
type LeadHandler struct {
	leads *services.LeadService
}

func NewLeadHandler(leads *services.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

func (h *LeadHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	leads, total, err := h.leads.List(c.Request.Context(), viewerFrom(c), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Mirror the service's clamping so the meta reflects the page served.
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	response.SuccessWithMeta(c, http.StatusOK, leads, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

func (h *LeadHandler) Get(c *gin.Context) {
	lead, err := h.leads.GetByID(c.Request.Context(), viewerFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, lead)
}

func (h *LeadHandler) Create(c *gin.Context) {
	var input services.CreateLeadInput
	if !bindAndValidate(c, &input) {
		return
	}

	lead, err := h.leads.Create(c.Request.Context(), viewerFrom(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, lead)
}

func (h *LeadHandler) Update(c *gin.Context) {
	var input services.UpdateLeadInput
	if !bindAndValidate(c, &input) {
		return
	}

	lead, err := h.leads.Update(c.Request.Context(), viewerFrom(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, lead)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	if err := h.leads.Delete(c.Request.Context(), viewerFrom(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *LeadHandler) AddFollowup(c *gin.Context) {
	var input services.CreateFollowupInput
	if !bindAndValidate(c, &input) {
		return
	}

	followup, err := h.leads.AddFollowup(c.Request.Context(), viewerFrom(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, followup)
}

func (h *LeadHandler) ListFollowups(c *gin.Context) {
	followups, err := h.leads.ListFollowups(c.Request.Context(), viewerFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, followups)
}
