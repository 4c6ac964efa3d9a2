package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keyshelf/keyshelf/models"
)

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "keyshelf-routes")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", filepath.Join(tmp, "gin.log"))
	os.Setenv("ADMIN_API_KEY", "super-secret-admin-key")
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
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Visitor{}, &models.Category{}, &models.Link{}, &models.AdminDeviceLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func serve(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// The public content surface lives under /api/visitor next to verify and me.
func TestRouterMountsContentUnderVisitor(t *testing.T) {
	db := newTestDB(t)
	cat := models.Category{Name: "Reading"}
	assert.NoError(t, db.Create(&cat).Error)
	link := models.Link{URL: "https://example.com/a", Label: "A", CategoryID: cat.ID}
	assert.NoError(t, db.Create(&link).Error)

	r := SetupRouter(db)

	w := serve(t, r, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, r, http.MethodGet, "/api/visitor/categories")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Reading")

	w = serve(t, r, http.MethodGet, fmt.Sprintf("/api/visitor/categories/%d", cat.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, r, http.MethodGet, fmt.Sprintf("/api/visitor/links/category/%d", cat.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, r, http.MethodPost, fmt.Sprintf("/api/visitor/links/%d/view", link.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, r, http.MethodGet, "/api/visitor/preview?url=notaurl")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The content endpoints answer nowhere else.
	for _, path := range []string{"/api/categories", "/api/links/category/1", "/api/preview"} {
		w = serve(t, r, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "route not found")
	}
}

func TestRouterAdminRequiresKey(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	w := serve(t, r, http.MethodGet, "/api/admin/categories")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
