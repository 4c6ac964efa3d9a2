package models

import "time"

// AdminDeviceLog is an append-only audit trail of devices that have used the
// admin surface. Writes are best-effort and never block the request they
// annotate.
type AdminDeviceLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    string    `gorm:"size:128;not null;uniqueIndex" json:"deviceId"`
	FirstSeenAt time.Time `gorm:"not null" json:"firstSeenAt"`
	CreatedAt   time.Time `json:"created_at"`
}
