package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keyshelf/keyshelf/middleware"
	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/utils"
)

// VisitorController implements the device-binding access protocol: a shared
// private key plus a device identifier, capped by a per-key device quota.
type VisitorController struct {
	db *gorm.DB
}

// NewVisitorController creates a new VisitorController instance.
func NewVisitorController(db *gorm.DB) *VisitorController {
	return &VisitorController{db: db}
}

// Verify is the only mutating path of the protocol: it recognizes an already
// registered device or registers a new one under the quota. Re-verification
// from a known device always succeeds and never changes state.
func (v *VisitorController) Verify(ctx *gin.Context) {
	var req struct {
		PrivateKey string `json:"privateKey"`
		DeviceID   string `json:"deviceId"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "privateKey and deviceId are required")
		return
	}

	key := strings.TrimSpace(req.PrivateKey)
	deviceID := strings.TrimSpace(req.DeviceID)
	if key == "" || deviceID == "" {
		utils.Fail(ctx, http.StatusBadRequest, "privateKey and deviceId are required")
		return
	}

	decision, visitor, err := models.RegisterDevice(v.db, key, deviceID)
	if err != nil {
		if errors.Is(err, models.ErrVisitorNotFound) {
			utils.Fail(ctx, http.StatusNotFound, "invalid private key, access denied")
			return
		}
		utils.Fail(ctx, http.StatusInternalServerError, "failed to verify device")
		return
	}

	if decision == models.DeviceRejected {
		utils.Fail(ctx, http.StatusForbidden, "device limit reached, you cannot add this device")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"visitor": visitor.View()})
}

// Me checks whether the calling device is registered for the supplied key.
// It is a pure read used on every page load and never touches the roster.
func (v *VisitorController) Me(ctx *gin.Context) {
	key := strings.TrimSpace(ctx.GetHeader(middleware.HeaderVisitorKey))
	deviceID := strings.TrimSpace(ctx.GetHeader(middleware.HeaderDeviceID))
	if key == "" || deviceID == "" {
		utils.Fail(ctx, http.StatusUnauthorized, "missing X-Visitor-Key or X-Device-ID")
		return
	}

	visitor, err := models.FindVisitorByKey(v.db, key)
	if err != nil {
		if errors.Is(err, models.ErrVisitorNotFound) {
			utils.Fail(ctx, http.StatusUnauthorized, "invalid private key")
			return
		}
		utils.Fail(ctx, http.StatusInternalServerError, "failed to check session")
		return
	}

	if !visitor.HasDevice(deviceID) {
		utils.Fail(ctx, http.StatusUnauthorized, "device not registered, please verify again")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"visitor": visitor.View()})
}
