package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/internal/interfaces/http/response"
	"lightning-paywall.backend/internal/usecases"
)

// AuthHandler handles the admin login endpoint
type AuthHandler struct {
	authUsecase *usecases.AuthUsecase
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authUsecase *usecases.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.InvalidRequest(err.Error()))
		return
	}

	pair, err := h.authUsecase.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}
