package v1

import (
	"net/http"
	"strconv"

	"agribid-backend/internal/delivery/http/middleware"
	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	productUC domain.ProductUsecase
}

// NewProductHandler registers the catalog routes. optional carries
// OptionalAuth so product detail can tell owners apart.
func NewProductHandler(public, optional, protected *gin.RouterGroup, productUC domain.ProductUsecase) {
	handler := &ProductHandler{productUC: productUC}

	public.GET("/products", handler.ListProducts)
	public.GET("/products/filters", handler.GetFilterOptions)
	optional.GET("/products/:id", handler.GetProduct)
	protected.POST("/products", handler.CreateListing)
}

type ProductListResponse = response.Page[domain.Product]

type CreateListingRequest struct {
	CropType     string   `json:"cropType" binding:"required"`
	Quantity     float64  `json:"quantity" binding:"gt=0"`
	PricePerUnit float64  `json:"pricePerUnit" binding:"gt=0"`
	Description  string   `json:"description" binding:"max=2000"`
	Images       []string `json:"images" binding:"required,min=1,dive,url"`
}

// ListProducts godoc
// @Summary      Browse products
// @Description  Searches crop type, farmer name and farmer location. Newest listings first.
// @Tags         products
// @Produce      json
// @Param        q              query     string  false  "Search text"
// @Param        crop_type      query     string  false  "Crop type"  Enums(Coffee, Teff, Spices, Grains)
// @Param        quality_grade  query     string  false  "Quality grade"  Enums(A, B, C, D)
// @Param        location       query     string  false  "Farmer location"
// @Param        min_price      query     number  false  "Minimum price per unit"
// @Param        max_price      query     number  false  "Maximum price per unit"
// @Param        status         query     string  false  "Status"  Enums(available, reserved, sold)
// @Param        page           query     int     false  "Page"  default(1)
// @Param        page_size      query     int     false  "Page size"  default(20)
// @Success      200            {object}  response.Response{data=ProductListResponse}
// @Failure      400            {object}  response.Response
// @Router       /products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var filter domain.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(apperror.BadRequest("Invalid filter parameters"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	products, total, err := h.productUC.ListProducts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}
	page, pageSize = normalizePage(page, pageSize)
	response.Paginated(c, "Products retrieved", products, total, page, pageSize)
}

// GetFilterOptions godoc
// @Summary      Catalog filter options
// @Tags         products
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.FilterOptions}
// @Router       /products/filters [get]
func (h *ProductHandler) GetFilterOptions(c *gin.Context) {
	response.Success(c, http.StatusOK, "Filter options retrieved", h.productUC.FilterOptions())
}

// GetProduct godoc
// @Summary      Product detail
// @Description  isOwn is true when the authenticated caller is the listing's farmer.
// @Tags         products
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=domain.ProductDetail}
// @Failure      404  {object}  response.Response
// @Router       /products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	viewerID := ""
	if user, ok := middleware.CurrentUser(c); ok {
		viewerID = user.ID
	}
	detail, err := h.productUC.GetProduct(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Product retrieved", detail)
}

// CreateListing godoc
// @Summary      Create a listing
// @Description  Farmers only. The listing is graded by the quality assessment.
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        listing  body      CreateListingRequest  true  "Listing"
// @Success      201      {object}  response.Response{data=domain.Product}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /products [post]
func (h *ProductHandler) CreateListing(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}
	if user.UserType != domain.UserTypeFarmer {
		c.Error(apperror.Forbidden("Only farmers can create listings"))
		return
	}

	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Please fill in all required fields and add at least one image", validation.FormatValidationErrors(err))
		return
	}

	product, err := h.productUC.CreateListing(c.Request.Context(), user, domain.CreateListingInput{
		CropType:     req.CropType,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		Description:  req.Description,
		Images:       req.Images,
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Listing created", product)
}

// normalizePage mirrors the bounds applied by ListProducts.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
