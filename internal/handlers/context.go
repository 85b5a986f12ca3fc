package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/techvara/crm/internal/middleware"
	"github.com/techvara/crm/internal/services"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/response"
	"github.com/techvara/crm/pkg/validator"
)

// bindAndValidate decodes the JSON body into input and runs struct
// validation, writing the error response itself on failure.
func bindAndValidate(c *gin.Context, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return false
	}
	if err := validator.ValidateStruct(input); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return false
	}
	return true
}

func viewerFrom(c *gin.Context) services.Viewer {
	return services.Viewer{
		UserID: middleware.CurrentUserID(c),
		Role:   middleware.CurrentRole(c),
	}
}
