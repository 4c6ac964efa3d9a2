package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/utils"
)

const categoryCachePrefix = "cache:categories:"

// AdminController implements the admin-only CRUD surface for categories,
// links and visitors. Every handler here sits behind the admin key check.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ---- categories ----

// GetCategories mirrors the public listing but always reads the database.
func (a *AdminController) GetCategories(ctx *gin.Context) {
	payload, err := loadCategoriesWithCounts(a.db)
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load categories")
		return
	}
	ctx.JSON(http.StatusOK, payload)
}

// GetCategoryByID returns one category with its links.
func (a *AdminController) GetCategoryByID(ctx *gin.Context) {
	payload, found, err := loadCategoryWithLinks(a.db, ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load category")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "category not found")
		return
	}
	ctx.JSON(http.StatusOK, payload)
}

// CreateCategory adds a category. Name is required; order defaults to zero.
func (a *AdminController) CreateCategory(ctx *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Order int    `json:"order"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "category requires a name")
		return
	}

	name := utils.SanitizeText(req.Name)
	if name == "" {
		utils.Fail(ctx, http.StatusBadRequest, "category requires a name")
		return
	}

	category := models.Category{Name: name, Order: req.Order}
	if err := a.db.Create(&category).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to create category")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusCreated, category)
}

// UpdateCategory applies a partial update; absent fields stay untouched.
func (a *AdminController) UpdateCategory(ctx *gin.Context) {
	var req struct {
		Name  *string `json:"name"`
		Order *int    `json:"order"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "invalid request body")
		return
	}

	category, found, err := a.findCategory(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load category")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "category not found")
		return
	}

	if req.Name != nil {
		name := utils.SanitizeText(*req.Name)
		if name == "" {
			utils.Fail(ctx, http.StatusBadRequest, "category requires a name")
			return
		}
		category.Name = name
	}
	if req.Order != nil {
		category.Order = *req.Order
	}

	if err := a.db.Save(category).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to update category")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category. Its links are left in place and simply
// stop appearing in category listings.
func (a *AdminController) DeleteCategory(ctx *gin.Context) {
	category, found, err := a.findCategory(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load category")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "category not found")
		return
	}

	if err := a.db.Delete(category).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to delete category")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

func (a *AdminController) findCategory(rawID string) (*models.Category, bool, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, false, nil
	}
	var category models.Category
	if err := a.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &category, true, nil
}

// ---- links ----

// categoryRef accepts the category reference in any of the shapes clients
// send: a bare number, a numeric string, or an object carrying an id.
type categoryRef struct {
	id  uint
	set bool
}

var errBadCategoryRef = fmt.Errorf("category must be a numeric id")

func (r *categoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		r.id, r.set = uint(n), true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return errBadCategoryRef
		}
		r.id, r.set = uint(v), true
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range []string{"id", "_id"} {
			if raw, ok := obj[key]; ok {
				var nested categoryRef
				if err := nested.UnmarshalJSON(raw); err != nil {
					return err
				}
				if nested.set {
					*r = nested
					return nil
				}
			}
		}
	}
	return errBadCategoryRef
}

// GetLinks lists every link, newest last.
func (a *AdminController) GetLinks(ctx *gin.Context) {
	links := []models.Link{}
	if err := a.db.Order("created_at ASC, id ASC").Find(&links).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load links")
		return
	}
	ctx.JSON(http.StatusOK, links)
}

// GetLinksByCategory lists the links of one category.
func (a *AdminController) GetLinksByCategory(ctx *gin.Context) {
	links, err := loadLinksByCategory(a.db, ctx.Param("categoryId"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load links")
		return
	}
	ctx.JSON(http.StatusOK, links)
}

// GetLinkByID returns one link with its category inlined.
func (a *AdminController) GetLinkByID(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	var link models.Link
	if err := a.db.Preload("Category").First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, http.StatusNotFound, "link not found")
			return
		}
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load link")
		return
	}
	ctx.JSON(http.StatusOK, link)
}

// CreateLink adds a link. URL and category are required; the category is
// accepted as a number, a numeric string, or an object with an id.
func (a *AdminController) CreateLink(ctx *gin.Context) {
	var req struct {
		URL      string      `json:"url"`
		Label    string      `json:"label"`
		Category categoryRef `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "link requires url and category, send { url, label?, category }")
		return
	}

	linkURL := strings.TrimSpace(req.URL)
	if linkURL == "" || !req.Category.set {
		utils.Fail(ctx, http.StatusBadRequest, "link requires url and category, send { url, label?, category }")
		return
	}

	label := utils.SanitizeText(req.Label)
	if label == "" {
		label = linkURL
	}
	link := models.Link{
		URL:        linkURL,
		Label:      label,
		CategoryID: req.Category.id,
	}
	if err := a.db.Create(&link).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to create link")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusCreated, link)
}

// UpdateLink applies a partial update to url, label or category.
func (a *AdminController) UpdateLink(ctx *gin.Context) {
	var req struct {
		URL      *string     `json:"url"`
		Label    *string     `json:"label"`
		Category categoryRef `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "send at least one of: url, label, category")
		return
	}
	if req.URL == nil && req.Label == nil && !req.Category.set {
		utils.Fail(ctx, http.StatusBadRequest, "send at least one of: url, label, category")
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	var link models.Link
	if err := a.db.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, http.StatusNotFound, "link not found")
			return
		}
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load link")
		return
	}

	if req.URL != nil {
		linkURL := strings.TrimSpace(*req.URL)
		if linkURL == "" {
			utils.Fail(ctx, http.StatusBadRequest, "send at least one of: url, label, category")
			return
		}
		link.URL = linkURL
	}
	if req.Label != nil {
		link.Label = utils.SanitizeText(*req.Label)
	}
	if req.Category.set {
		link.CategoryID = req.Category.id
	}
	if link.Label == "" {
		link.Label = link.URL
	}

	if err := a.db.Save(&link).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to update link")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusOK, link)
}

// DeleteLink removes a link.
func (a *AdminController) DeleteLink(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	res := a.db.Delete(&models.Link{}, id)
	if res.Error != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to delete link")
		return
	}
	if res.RowsAffected == 0 {
		utils.Fail(ctx, http.StatusNotFound, "link not found")
		return
	}

	utils.InvalidateByPrefix(categoryCachePrefix)
	ctx.JSON(http.StatusOK, gin.H{"message": "link deleted"})
}

// ---- visitors ----

// GetVisitors lists every visitor account including rosters.
func (a *AdminController) GetVisitors(ctx *gin.Context) {
	visitors := []models.Visitor{}
	if err := a.db.Order("id ASC").Find(&visitors).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load visitors")
		return
	}
	ctx.JSON(http.StatusOK, visitors)
}

// GetVisitorByID returns one visitor account.
func (a *AdminController) GetVisitorByID(ctx *gin.Context) {
	visitor, found, err := a.findVisitor(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load visitor")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "visitor not found")
		return
	}
	ctx.JSON(http.StatusOK, visitor)
}

// CreateVisitor provisions an account. The quota defaults to the size of the
// preloaded roster, or one for an empty roster.
func (a *AdminController) CreateVisitor(ctx *gin.Context) {
	var req struct {
		PrivateKey string   `json:"privateKey"`
		Name       string   `json:"name"`
		Role       string   `json:"role"`
		DeviceID   []string `json:"deviceID"`
		NoOfDevice *int     `json:"noOfDevice"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "visitor requires privateKey, name and role")
		return
	}

	key := strings.TrimSpace(req.PrivateKey)
	name := utils.SanitizeText(req.Name)
	role := utils.SanitizeText(req.Role)
	if key == "" || name == "" || role == "" {
		utils.Fail(ctx, http.StatusBadRequest, "visitor requires privateKey, name and role")
		return
	}

	visitor := models.Visitor{PrivateKey: key, Name: name, Role: role}
	visitor.SetDevices(req.DeviceID)
	if req.NoOfDevice != nil && *req.NoOfDevice > 0 {
		visitor.NoOfDevice = *req.NoOfDevice
	} else if n := len(req.DeviceID); n > 0 {
		visitor.NoOfDevice = n
	} else {
		visitor.NoOfDevice = 1
	}

	// Uniqueness is enforced by the index, not a pre-check: two concurrent
	// creates with the same key both reach the insert and the loser gets the
	// constraint violation.
	if err := a.db.Create(&visitor).Error; err != nil {
		if isDuplicateKeyError(err) {
			utils.Fail(ctx, http.StatusConflict, "private key already in use")
			return
		}
		utils.Fail(ctx, http.StatusInternalServerError, "failed to create visitor")
		return
	}
	ctx.JSON(http.StatusCreated, visitor)
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// UpdateVisitor overwrites the supplied fields, roster included. This is the
// administrative escape hatch: it bypasses the device quota entirely, so an
// admin can evict devices or rewrite the roster wholesale.
func (a *AdminController) UpdateVisitor(ctx *gin.Context) {
	var req struct {
		PrivateKey *string   `json:"privateKey"`
		Name       *string   `json:"name"`
		Role       *string   `json:"role"`
		DeviceID   *[]string `json:"deviceID"`
		NoOfDevice *int      `json:"noOfDevice"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, "invalid request body")
		return
	}

	visitor, found, err := a.findVisitor(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load visitor")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "visitor not found")
		return
	}

	if req.PrivateKey != nil {
		key := strings.TrimSpace(*req.PrivateKey)
		if key == "" {
			utils.Fail(ctx, http.StatusBadRequest, "privateKey cannot be empty")
			return
		}
		visitor.PrivateKey = key
	}
	if req.Name != nil {
		visitor.Name = utils.SanitizeText(*req.Name)
	}
	if req.Role != nil {
		visitor.Role = utils.SanitizeText(*req.Role)
	}
	if req.DeviceID != nil {
		visitor.SetDevices(*req.DeviceID)
	}
	if req.NoOfDevice != nil {
		visitor.NoOfDevice = *req.NoOfDevice
	}

	if err := a.db.Save(visitor).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to update visitor")
		return
	}
	ctx.JSON(http.StatusOK, visitor)
}

// DeleteVisitor revokes an account; the key stops working immediately.
func (a *AdminController) DeleteVisitor(ctx *gin.Context) {
	visitor, found, err := a.findVisitor(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to load visitor")
		return
	}
	if !found {
		utils.Fail(ctx, http.StatusNotFound, "visitor not found")
		return
	}

	if err := a.db.Delete(visitor).Error; err != nil {
		utils.Fail(ctx, http.StatusInternalServerError, "failed to delete visitor")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "visitor deleted"})
}

func (a *AdminController) findVisitor(rawID string) (*models.Visitor, bool, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, false, nil
	}
	var visitor models.Visitor
	if err := a.db.First(&visitor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &visitor, true, nil
}
