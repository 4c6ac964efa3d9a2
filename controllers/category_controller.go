package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/utils"
)

// CategoryController serves the public, read-only category endpoints.
type CategoryController struct {
	db *gorm.DB
}

// NewCategoryController creates a new CategoryController instance.
func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{db: db}
}

type categoryWithCount struct {
	models.Category
	Count int64 `json:"count"`
}

type categoryWithLinks struct {
	models.Category
	Links []models.Link `json:"links"`
}

// GetCategories returns all categories in display order, each with its link count.
func (c *CategoryController) GetCategories(ctx *gin.Context) {
	const cacheKey = "cache:categories:list"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	payload, err := loadCategoriesWithCounts(c.db)
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load categories")
		return
	}

	utils.CacheSetJSON(cacheKey, payload, time.Hour)
	ctx.JSON(http.StatusOK, payload)
}

// GetCategoryByID returns one category together with its links.
func (c *CategoryController) GetCategoryByID(ctx *gin.Context) {
	id := ctx.Param("id")
	cacheKey := "cache:categories:detail:" + id
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	payload, found, err := loadCategoryWithLinks(c.db, id)
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load category")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "category not found")
		return
	}

	utils.CacheSetJSON(cacheKey, payload, time.Hour)
	ctx.JSON(http.StatusOK, payload)
}

// loadCategoriesWithCounts is shared by the public and admin listings.
func loadCategoriesWithCounts(db *gorm.DB) ([]categoryWithCount, error) {
	var categories []models.Category
	if err := db.Order("sort_order ASC, id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}

	out := make([]categoryWithCount, 0, len(categories))
	for _, cat := range categories {
		var count int64
		if err := db.Model(&models.Link{}).Where("category_id = ?", cat.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		out = append(out, categoryWithCount{Category: cat, Count: count})
	}
	return out, nil
}

// loadCategoryWithLinks is shared by the public and admin detail endpoints.
// An unparseable id reads as not found, matching a nonexistent record.
func loadCategoryWithLinks(db *gorm.DB, rawID string) (*categoryWithLinks, bool, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, false, nil
	}

	var category models.Category
	if err := db.First(&category, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var links []models.Link
	if err := db.Where("category_id = ?", category.ID).Order("created_at ASC, id ASC").Find(&links).Error; err != nil {
		return nil, false, err
	}

	return &categoryWithLinks{Category: category, Links: links}, true, nil
}
