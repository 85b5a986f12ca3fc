package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/response"
)

// ProjectHandler exposes project and payment endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var input services.CreateProjectInput
	if !bindAndValidate(c, &input) {
		return
	}

	project, err := h.projects.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var input services.UpdateProjectInput
	if !bindAndValidate(c, &input) {
		return
	}

	project, err := h.projects.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// RecordPayment appends an installment to a project.
func (h *ProjectHandler) RecordPayment(c *gin.Context) {
	var input services.RecordPaymentInput
	if !bindAndValidate(c, &input) {
		return
	}

	project, err := h.projects.RecordPayment(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}
