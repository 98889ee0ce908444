package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/deviceauth"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/scope"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

// TelemetryController handles telemetry ingest and read requests
type TelemetryController struct {
	telemetryRepo  interfaces.TelemetryRepository
	deviceAuth     *deviceauth.Service
	scopeService   *scope.Service
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewTelemetryController creates a new telemetry controller
func NewTelemetryController(
	telemetryRepo interfaces.TelemetryRepository,
	deviceAuth *deviceauth.Service,
	scopeService *scope.Service,
	logger *logger.Logger,
	authMiddleware *middleware.AuthMiddleware,
) *TelemetryController {
	return &TelemetryController{
		telemetryRepo:  telemetryRepo,
		deviceAuth:     deviceAuth,
		scopeService:   scopeService,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the telemetry routes with Gin
func (c *TelemetryController) RegisterRoutes(router *gin.Engine) {
	router.POST("/ingest", c.Ingest)
	router.GET("/latest", c.authMiddleware.Optional(), c.Latest)
}

// Ingest accepts a device report. Machine identity comes from the
// X-Device-Token header; the report's device id keys the upsert.
func (c *TelemetryController) Ingest(ctx *gin.Context) {
	var report tlmmodels.Report
	if err := ctx.ShouldBindJSON(&report); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if report.DeviceID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := c.deviceAuth.Authorize(ctx, report.DeviceID, ctx.GetHeader("X-Device-Token")); err != nil {
		if errors.Is(err, tlmmodels.ErrUnauthorized) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	normalizeReportTS(&report)

	if err := c.telemetryRepo.UpsertReport(ctx, report); err != nil {
		c.logger.ErrorWithError(err, "failed to upsert report")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// Latest returns the most recent state per device, most recently updated
// first, narrowed by the caller's identity when a bearer token is present.
func (c *TelemetryController) Latest(ctx *gin.Context) {
	claims, _ := middleware.GetClaimsFromGinContext(ctx)

	devices, err := c.telemetryRepo.ListDevices(ctx, c.scopeService.Scope(claims))
	if err != nil {
		c.logger.ErrorWithError(err, "failed to list devices")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, devices)
}

// normalizeReportTS fills a missing report timestamp with the current time
// and converts millisecond values to seconds. Seconds are the wire
// contract; some firmware still sends Date.now() milliseconds.
func normalizeReportTS(report *tlmmodels.Report) {
	if report.TS == nil {
		now := time.Now().Unix()
		report.TS = &now
		return
	}
	if *report.TS > 1_000_000_000_000 {
		sec := *report.TS / 1000
		report.TS = &sec
	}
}
