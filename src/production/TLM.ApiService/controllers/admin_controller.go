package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auth "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/auth"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/devicesecret"
	jwt "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

// AdminController handles administrative requests: user upserts, device
// provisioning, ownership assignment and secret rotation. Every route is
// gated by the static admin token.
type AdminController struct {
	telemetryRepo interfaces.TelemetryRepository
	userRepo      interfaces.UserRepository
	authService   *auth.AuthService
	jwtService    *jwt.Service
	logger        *logger.Logger
	adminToken    string
}

// NewAdminController creates a new admin controller
func NewAdminController(
	telemetryRepo interfaces.TelemetryRepository,
	userRepo interfaces.UserRepository,
	authService *auth.AuthService,
	jwtService *jwt.Service,
	logger *logger.Logger,
	adminToken string,
) *AdminController {
	return &AdminController{
		telemetryRepo: telemetryRepo,
		userRepo:      userRepo,
		authService:   authService,
		jwtService:    jwtService,
		logger:        logger,
		adminToken:    adminToken,
	}
}

// RegisterRoutes registers the admin routes with Gin
func (c *AdminController) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/admin", middleware.AdminAuthMiddleware(c.adminToken))
	{
		admin.GET("/check", c.Check)
		admin.GET("/verify", c.Verify)
		admin.POST("/users", c.UpsertUser)
		admin.POST("/devices", c.CreateDevice)
		admin.POST("/devices/assign", c.AssignDevice)
		admin.POST("/devices/secret", c.SetDeviceSecret)
	}
}

// Check confirms the admin token; the middleware has already done the work.
func (c *AdminController) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// Verify checks that the bearer token in the Authorization header is valid
// and carries the admin role.
func (c *AdminController) Verify(ctx *gin.Context) {
	header := ctx.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	claims, err := c.jwtService.Verify(header[len(prefix):])
	if err != nil || claims.Role != tlmmodels.RoleAdmin {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true, "email": claims.Email})
}

func (c *AdminController) UpsertUser(ctx *gin.Context) {
	var req api_models.UpsertUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := c.authService.UpsertUser(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		c.logger.ErrorWithError(err, "failed to upsert user")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": api_models.UpsertUserResponse{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	}})
}

func (c *AdminController) CreateDevice(ctx *gin.Context) {
	var req api_models.CreateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}

	if err := c.telemetryRepo.CreateDevice(ctx, req.DeviceID, req.Name, req.Lat, req.Lon); err != nil {
		c.logger.ErrorWithError(err, "failed to create device")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "device_id": req.DeviceID})
}

// AssignDevice makes a user the device's primary owner and records the
// viewer mapping; both grants are equivalent for reads.
func (c *AdminController) AssignDevice(ctx *gin.Context) {
	var req api_models.AssignDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "email and device_id required"})
		return
	}

	user, err := c.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, tlmmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.logger.ErrorWithError(err, "failed to look up user")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if err := c.telemetryRepo.SetOwner(ctx, req.DeviceID, user.UserID); err != nil {
		if errors.Is(err, tlmmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "failed to set owner")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if err := c.telemetryRepo.AddViewer(ctx, user.UserID, req.DeviceID); err != nil {
		c.logger.ErrorWithError(err, "failed to add viewer")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// SetDeviceSecret provisions or rotates a device secret. The plaintext is
// returned here once; only the keyed hash is stored, and the previous
// secret stops working immediately.
func (c *AdminController) SetDeviceSecret(ctx *gin.Context) {
	var req api_models.SetDeviceSecretRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}

	plain := req.Secret
	if plain == "" {
		generated, err := devicesecret.Generate()
		if err != nil {
			c.logger.ErrorWithError(err, "failed to generate secret")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		plain = generated
	}

	if err := c.telemetryRepo.SetSecretHash(ctx, req.DeviceID, devicesecret.Hash(plain, req.DeviceID)); err != nil {
		if errors.Is(err, tlmmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "failed to set device secret")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, api_models.SetDeviceSecretResponse{
		DeviceID: req.DeviceID,
		Secret:   plain,
	})
}
