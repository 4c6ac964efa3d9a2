package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrVisitorNotFound is returned when no visitor owns the supplied private key.
var ErrVisitorNotFound = errors.New("visitor not found")

// ErrRosterBusy is returned when the roster swap kept losing to concurrent writers.
var ErrRosterBusy = errors.New("device roster busy")

// Visitor is an account identified by a shared private key. Access is bound
// to at most NoOfDevice distinct devices; DeviceID stores the roster as a
// JSON array of device identifier strings in first-seen order.
type Visitor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PrivateKey string    `gorm:"size:255;not null;uniqueIndex" json:"privateKey"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Role       string    `gorm:"size:64;not null" json:"role"`
	DeviceID   string    `gorm:"type:text" json:"-"` // JSON array of device ids
	NoOfDevice int       `gorm:"not null;default:1" json:"noOfDevice"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeSave keeps the stored roster a valid JSON array.
func (v *Visitor) BeforeSave(tx *gorm.DB) error {
	if v.DeviceID == "" {
		v.DeviceID = "[]"
	}
	if v.NoOfDevice < 1 {
		v.NoOfDevice = 1
	}
	return nil
}

// Devices decodes the roster. A missing or corrupt column reads as empty.
func (v *Visitor) Devices() []string {
	if v.DeviceID == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(v.DeviceID), &ids); err != nil {
		return []string{}
	}
	return ids
}

// SetDevices encodes the roster back into the stored column.
func (v *Visitor) SetDevices(ids []string) {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	v.DeviceID = string(b)
}

// HasDevice reports whether deviceID is already in the roster.
func (v *Visitor) HasDevice(deviceID string) bool {
	for _, id := range v.Devices() {
		if id == deviceID {
			return true
		}
	}
	return false
}

// DeviceLimit returns the quota, treating unset as the default of one device.
func (v *Visitor) DeviceLimit() int {
	if v.NoOfDevice < 1 {
		return 1
	}
	return v.NoOfDevice
}

// MarshalJSON inlines the decoded roster as deviceID.
func (v Visitor) MarshalJSON() ([]byte, error) {
	type alias Visitor
	return json.Marshal(struct {
		alias
		Devices []string `json:"deviceID"`
	}{alias(v), v.Devices()})
}

// VisitorView is the projection returned to visitors themselves. It exposes
// nothing beyond what the client already supplied or needs for display.
type VisitorView struct {
	ID         uint     `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	PrivateKey string   `json:"privateKey"`
	NoOfDevice int      `json:"noOfDevice"`
	DeviceID   []string `json:"deviceID"`
}

// View builds the visitor-facing projection.
func (v *Visitor) View() VisitorView {
	return VisitorView{
		ID:         v.ID,
		Name:       v.Name,
		Role:       v.Role,
		PrivateKey: v.PrivateKey,
		NoOfDevice: v.NoOfDevice,
		DeviceID:   v.Devices(),
	}
}

// DeviceDecision is the outcome of a roster registration attempt.
type DeviceDecision int

const (
	// DeviceAdmitted means the device was appended to the roster.
	DeviceAdmitted DeviceDecision = iota
	// DeviceKnown means the device was already registered; nothing changed.
	DeviceKnown
	// DeviceRejected means the quota is full; nothing changed.
	DeviceRejected
)

const rosterSwapRetries = 5

// RegisterDevice admits deviceID into the roster of the visitor owning
// privateKey, enforcing the device quota. The append is a compare-and-swap
// on the serialized roster column: the update only lands when the roster is
// still the one the decision was made against, so two concurrent calls near
// the quota can never both append. On contention the decision is retried
// against fresh state.
func RegisterDevice(db *gorm.DB, privateKey, deviceID string) (DeviceDecision, *Visitor, error) {
	for attempt := 0; attempt < rosterSwapRetries; attempt++ {
		var visitor Visitor
		if err := db.Where("private_key = ?", privateKey).First(&visitor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return DeviceRejected, nil, ErrVisitorNotFound
			}
			return DeviceRejected, nil, err
		}

		if visitor.HasDevice(deviceID) {
			return DeviceKnown, &visitor, nil
		}
		if len(visitor.Devices()) >= visitor.DeviceLimit() {
			return DeviceRejected, &visitor, nil
		}

		updated := visitor
		updated.SetDevices(append(visitor.Devices(), deviceID))
		res := db.Model(&Visitor{}).
			Where("id = ? AND device_id = ?", visitor.ID, visitor.DeviceID).
			Updates(map[string]interface{}{"device_id": updated.DeviceID, "updated_at": time.Now()})
		if res.Error != nil {
			return DeviceRejected, nil, res.Error
		}
		if res.RowsAffected == 1 {
			return DeviceAdmitted, &updated, nil
		}
		// Lost the swap to a concurrent writer; re-read and decide again.
	}
	return DeviceRejected, nil, ErrRosterBusy
}

// FindVisitorByKey looks a visitor up by exact private key match.
func FindVisitorByKey(db *gorm.DB, privateKey string) (*Visitor, error) {
	var visitor Visitor
	if err := db.Where("private_key = ?", privateKey).First(&visitor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitorNotFound
		}
		return nil, err
	}
	return &visitor, nil
}
