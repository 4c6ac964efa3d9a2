package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/utils"
)

// LinkController serves the public link endpoints: per-category listing and
// the view/like/reply counters.
type LinkController struct {
	db *gorm.DB
}

// NewLinkController creates a new LinkController instance.
func NewLinkController(db *gorm.DB) *LinkController {
	return &LinkController{db: db}
}

// GetLinksByCategory lists links for one category in creation order.
func (l *LinkController) GetLinksByCategory(ctx *gin.Context) {
	links, err := loadLinksByCategory(l.db, ctx.Param("categoryId"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load links")
		return
	}
	ctx.JSON(http.StatusOK, links)
}

// IncrementView bumps the view counter and returns the updated link.
func (l *LinkController) IncrementView(ctx *gin.Context) {
	l.increment(ctx, "views")
}

// IncrementLike bumps the like counter and returns the updated link.
func (l *LinkController) IncrementLike(ctx *gin.Context) {
	l.increment(ctx, "likes")
}

// IncrementReply bumps the reply counter and returns the updated link.
func (l *LinkController) IncrementReply(ctx *gin.Context) {
	l.increment(ctx, "replies")
}

// increment runs a single-statement counter update so concurrent calls can
// never lose a write, then re-reads the row for the response. There is no
// double-increment prevention; every call counts.
func (l *LinkController) increment(ctx *gin.Context, column string) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	res := l.db.Model(&models.Link{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to update link")
		return
	}
	if res.RowsAffected == 0 {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	var link models.Link
	if err := l.db.First(&link, id).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load link")
		return
	}
	ctx.JSON(http.StatusOK, link)
}

// loadLinksByCategory is shared by the public and admin listings. An
// unparseable category id yields an empty list, like a nonexistent category.
func loadLinksByCategory(db *gorm.DB, rawCategoryID string) ([]models.Link, error) {
	links := []models.Link{}
	categoryID, err := strconv.ParseUint(rawCategoryID, 10, 64)
	if err != nil {
		return links, nil
	}
	if err := db.Where("category_id = ?", categoryID).Order("created_at ASC, id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
