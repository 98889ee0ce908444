package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auth "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/auth"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
)

// AuthController handles login requests
type AuthController struct {
	authService *auth.AuthService
	logger      *logger.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(authService *auth.AuthService, logger *logger.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth routes with Gin
func (c *AuthController) RegisterRoutes(router *gin.Engine) {
	router.POST("/auth/login", c.Login)
}

// Login verifies credentials and returns a bearer token. The response for
// an unknown email and a wrong password is identical.
func (c *AuthController) Login(ctx *gin.Context) {
	var req api_models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	token, err := c.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, tlmmodels.ErrUnauthorized) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.logger.ErrorWithError(err, "login failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, api_models.LoginResponse{Token: token})
}
