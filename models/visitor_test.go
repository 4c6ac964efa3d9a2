package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// A single connection keeps :memory: visible to every goroutine.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Visitor{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedVisitor(t *testing.T, db *gorm.DB, key string, quota int, devices []string) *Visitor {
	t.Helper()
	v := Visitor{PrivateKey: key, Name: "Family", Role: "member", NoOfDevice: quota}
	v.SetDevices(devices)
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("failed to seed visitor: %v", err)
	}
	return &v
}

func TestRegisterDeviceUnknownKey(t *testing.T) {
	db := newTestDB(t)

	_, _, err := RegisterDevice(db, "no-such-key", "device-a")
	assert.ErrorIs(t, err, ErrVisitorNotFound)
}

func TestRegisterDeviceAdmitsUnderQuota(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 2, nil)

	decision, visitor, err := RegisterDevice(db, "shared-key", "device-a")
	assert.NoError(t, err)
	assert.Equal(t, DeviceAdmitted, decision)
	assert.Equal(t, []string{"device-a"}, visitor.Devices())

	var stored Visitor
	assert.NoError(t, db.Where("private_key = ?", "shared-key").First(&stored).Error)
	assert.Equal(t, []string{"device-a"}, stored.Devices())
}

func TestRegisterDeviceIdempotentForKnownDevice(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 1, []string{"device-a"})

	decision, visitor, err := RegisterDevice(db, "shared-key", "device-a")
	assert.NoError(t, err)
	assert.Equal(t, DeviceKnown, decision)
	assert.Equal(t, []string{"device-a"}, visitor.Devices())
}

func TestRegisterDeviceRejectsAtQuota(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 1, []string{"device-a"})

	decision, _, err := RegisterDevice(db, "shared-key", "device-b")
	assert.NoError(t, err)
	assert.Equal(t, DeviceRejected, decision)

	var stored Visitor
	assert.NoError(t, db.Where("private_key = ?", "shared-key").First(&stored).Error)
	assert.Equal(t, []string{"device-a"}, stored.Devices())
}

// A quota of two with the request sequence A, A, B, C must end with exactly
// [A, B] in first-seen order: the repeat A is a no-op and C is over quota.
func TestRegisterDeviceSequencePreservesOrder(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 2, nil)

	sequence := []struct {
		device string
		want   DeviceDecision
	}{
		{"device-a", DeviceAdmitted},
		{"device-a", DeviceKnown},
		{"device-b", DeviceAdmitted},
		{"device-c", DeviceRejected},
	}
	for _, step := range sequence {
		decision, _, err := RegisterDevice(db, "shared-key", step.device)
		assert.NoError(t, err)
		assert.Equal(t, step.want, decision, "device %s", step.device)
	}

	var stored Visitor
	assert.NoError(t, db.Where("private_key = ?", "shared-key").First(&stored).Error)
	assert.Equal(t, []string{"device-a", "device-b"}, stored.Devices())
}

// Concurrent registrations racing for the last roster slot must not both win.
func TestRegisterDeviceConcurrentQuota(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 1, nil)

	devices := []string{"device-a", "device-b", "device-c", "device-d"}
	var wg sync.WaitGroup
	admitted := make([]bool, len(devices))
	for i, device := range devices {
		wg.Add(1)
		go func(i int, device string) {
			defer wg.Done()
			decision, _, err := RegisterDevice(db, "shared-key", device)
			assert.NoError(t, err)
			admitted[i] = decision == DeviceAdmitted
		}(i, device)
	}
	wg.Wait()

	admittedCount := 0
	for _, ok := range admitted {
		if ok {
			admittedCount++
		}
	}
	assert.Equal(t, 1, admittedCount)

	var stored Visitor
	assert.NoError(t, db.Where("private_key = ?", "shared-key").First(&stored).Error)
	assert.Len(t, stored.Devices(), 1)
}

// When every swap attempt loses, the retries run out and the caller gets
// ErrRosterBusy instead of looping forever. Staleness is simulated by
// rewriting each freshly read roster so the guarded update never matches.
func TestRegisterDeviceBusyAfterExhaustedRetries(t *testing.T) {
	db := newTestDB(t)
	seedVisitor(t, db, "shared-key", 10, nil)

	err := db.Callback().Query().After("gorm:query").Register("stale_roster", func(tx *gorm.DB) {
		if v, ok := tx.Statement.Dest.(*Visitor); ok {
			v.DeviceID = `["ghost"]`
		}
	})
	assert.NoError(t, err)

	_, _, err = RegisterDevice(db, "shared-key", "device-a")
	assert.ErrorIs(t, err, ErrRosterBusy)

	assert.NoError(t, db.Callback().Query().Remove("stale_roster"))
	var stored Visitor
	assert.NoError(t, db.Where("private_key = ?", "shared-key").First(&stored).Error)
	assert.Empty(t, stored.Devices())
}

func TestVisitorViewRoundTrip(t *testing.T) {
	v := Visitor{ID: 7, PrivateKey: "shared-key", Name: "Family", Role: "member", NoOfDevice: 3}
	v.SetDevices([]string{"device-a", "device-b"})

	view := v.View()
	assert.Equal(t, uint(7), view.ID)
	assert.Equal(t, "shared-key", view.PrivateKey)
	assert.Equal(t, 3, view.NoOfDevice)
	assert.Equal(t, []string{"device-a", "device-b"}, view.DeviceID)
}

func TestDevicesToleratesCorruptRoster(t *testing.T) {
	v := Visitor{DeviceID: "{not json"}
	assert.Empty(t, v.Devices())
	assert.False(t, v.HasDevice("device-a"))
}
