package controllers

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keyshelf/keyshelf/models"
)

func TestMain(m *testing.M) {
	// Point the cache at a closed port so every read hits the database.
	os.Setenv("REDIS_PORT", "6390")
	os.Exit(m.Run())
}

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
	if err := db.AutoMigrate(&models.Visitor{}, &models.Category{}, &models.Link{}, &models.AdminDeviceLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func seedVisitor(t *testing.T, db *gorm.DB, key string, quota int, devices []string) *models.Visitor {
	t.Helper()
	v := models.Visitor{PrivateKey: key, Name: "Family", Role: "member", NoOfDevice: quota}
	v.SetDevices(devices)
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("failed to seed visitor: %v", err)
	}
	return &v
}

func seedCategory(t *testing.T, db *gorm.DB, name string, order int) *models.Category {
	t.Helper()
	c := models.Category{Name: name, Order: order}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	return &c
}

func seedLink(t *testing.T, db *gorm.DB, categoryID uint, url, label string) *models.Link {
	t.Helper()
	l := models.Link{URL: url, Label: label, CategoryID: categoryID}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("failed to seed link: %v", err)
	}
	return &l
}
