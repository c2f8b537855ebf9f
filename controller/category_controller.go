// controller/category_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/util"
)

type CategoryController struct {
	categoryService service.ICategoryService
}

func NewCategoryController(categoryService service.ICategoryService) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
	}
}

// RegisterRoutes registers the API routes
func (cc *CategoryController) RegisterRoutes(r *gin.RouterGroup) {
	categories := r.Group("/categories")
	{
		categories.POST("", cc.CreateCategory)
		categories.GET("", cc.ListCategories)
		categories.GET("/:key", cc.GetCategory)
	}
}

// CreateCategory endpoint
func (cc *CategoryController) CreateCategory(c *gin.Context) {
	var category model.DataCategory
	if err := c.ShouldBindJSON(&category); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid category data", veil_errors.ErrInvalidParams.WithReason("%v", err))
		return
	}

	created, err := cc.categoryService.CreateCategory(c, category)
	if err != nil {
		switch {
		case errors.Is(err, veil_errors.ErrInvalidParams):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid category data", err)
		case errors.Is(err, veil_errors.ErrCategoryConflict):
			util.RespondWithError(c, http.StatusConflict, "Category already exists", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create category", veil_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetCategory endpoint
func (cc *CategoryController) GetCategory(c *gin.Context) {
	key := c.Param("key")
	category, err := cc.categoryService.GetCategory(c, key)
	if err != nil {
		if errors.Is(err, veil_errors.ErrCategoryNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Category not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve category", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, category)
}

// ListCategories endpoint
func (cc *CategoryController) ListCategories(c *gin.Context) {
	categories, err := cc.categoryService.ListCategories(c)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list categories", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, categories)
}
