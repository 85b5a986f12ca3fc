package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/middleware"
	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/response"
)

// AgreementHandler exposes agreement endpoints.
type AgreementHandler struct {
	agreements *services.AgreementService
}

func NewAgreementHandler(agreements *services.AgreementService) *AgreementHandler {
	return &AgreementHandler{agreements: agreements}
}

func (h *AgreementHandler) List(c *gin.Context) {
	agreements, err := h.agreements.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agreements)
}

func (h *AgreementHandler) Get(c *gin.Context) {
	agreement, err := h.agreements.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agreement)
}

func (h *AgreementHandler) Create(c *gin.Context) {
	var input services.CreateAgreementInput
	if !bindAndValidate(c, &input) {
		return
	}

	agreement, err := h.agreements.Create(c.Request.Context(), middleware.CurrentUserID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, agreement)
}

func (h *AgreementHandler) Update(c *gin.Context) {
	var input services.UpdateAgreementInput
	if !bindAndValidate(c, &input) {
		return
	}

	agreement, err := h.agreements.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agreement)
}

func (h *AgreementHandler) Delete(c *gin.Context) {
	if err := h.agreements.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
