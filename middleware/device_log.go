package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/utils"
)

// Visitor credential headers shared by the session check and the passive
// registration side channel.
const (
	HeaderVisitorKey = "X-Visitor-Key"
	HeaderDeviceID   = "X-Device-ID"
)

// StoreAdminDevice records the first sighting of an admin device after the
// request finishes. The write is fire-and-forget: its outcome is only ever
// observed in the logs, never by the client.
func StoreAdminDevice(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		deviceID := trimmedHeader(c, HeaderDeviceID)
		if deviceID == "" {
			return
		}

		go func() {
			err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "device_id"}},
				DoNothing: true,
			}).Create(&models.AdminDeviceLog{DeviceID: deviceID, FirstSeenAt: time.Now()}).Error
			if err != nil && utils.Sugar != nil {
				utils.Sugar.Debugf("admin device log write failed device=%s err=%v", deviceID, err)
			}
		}()
	}
}

// StoreVisitorDevice passively registers the calling device under the
// visitor's quota for requests that bypass the verify endpoint. It applies
// the same already-present / at-quota guard as Verify and swallows every
// error; the primary request is never affected.
func StoreVisitorDevice(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		privateKey := trimmedHeader(c, HeaderVisitorKey)
		deviceID := trimmedHeader(c, HeaderDeviceID)
		if privateKey == "" || deviceID == "" {
			return
		}

		go func() {
			if _, _, err := models.RegisterDevice(db, privateKey, deviceID); err != nil && utils.Sugar != nil {
				utils.Sugar.Debugf("passive device registration failed err=%v", err)
			}
		}()
	}
}

func trimmedHeader(c *gin.Context, name string) string {
	return strings.TrimSpace(c.GetHeader(name))
}
