package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newCategoryRouter(db *gorm.DB) *gin.Engine {
	r := newTestEngine()
	cc := NewCategoryController(db)
	r.GET("/api/categories", cc.GetCategories)
	r.GET("/api/categories/:id", cc.GetCategoryByID)
	return r
}

func TestGetCategoriesOrderedWithCounts(t *testing.T) {
	db := newTestDB(t)
	second := seedCategory(t, db, "Video", 2)
	first := seedCategory(t, db, "Reading", 1)
	seedLink(t, db, first.ID, "https://example.com/a", "A")
	seedLink(t, db, first.ID, "https://example.com/b", "B")

	r := newCategoryRouter(db)
	req, _ := http.NewRequest(http.MethodGet, "/api/categories", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Order int    `json:"order"`
		Count int64  `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, int64(2), got[0].Count)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, int64(0), got[1].Count)
}

func TestGetCategoryByIDWithLinks(t *testing.T) {
	db := newTestDB(t)
	cat := seedCategory(t, db, "Reading", 0)
	link := seedLink(t, db, cat.ID, "https://example.com/a", "A")

	r := newCategoryRouter(db)
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/categories/%d", cat.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Links []struct {
			ID  uint   `json:"id"`
			URL string `json:"url"`
		} `json:"links"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, cat.ID, got.ID)
	assert.Len(t, got.Links, 1)
	assert.Equal(t, link.ID, got.Links[0].ID)
}

func TestGetCategoryByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	r := newCategoryRouter(db)

	for _, path := range []string{"/api/categories/999", "/api/categories/abc"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "category not found")
	}
}

// Deleting a category does not cascade; its links survive as orphans and
// still answer direct category listing by their old id.
func TestCategoryDeletionOrphansLinks(t *testing.T) {
	db := newTestDB(t)
	cat := seedCategory(t, db, "Reading", 0)
	link := seedLink(t, db, cat.ID, "https://example.com/a", "A")

	assert.NoError(t, db.Delete(cat).Error)

	r := newCategoryRouter(db)
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/categories/%d", cat.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	links, err := loadLinksByCategory(db, fmt.Sprintf("%d", cat.ID))
	assert.NoError(t, err)
	assert.Len(t, links, 1)
	assert.Equal(t, link.ID, links[0].ID)
}
