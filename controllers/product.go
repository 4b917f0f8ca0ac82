package controllers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/store"
	"go-storefront/utils"
)

// ProductController handles product-related requests
type ProductController struct {
	Products store.ProductStore
	Logger   *zap.Logger
}

// NewProductController creates a new ProductController
func NewProductController(products store.ProductStore, logger *zap.Logger) *ProductController {
	return &ProductController{Products: products, Logger: logger}
}

// productError maps a store failure onto an API error
func productError(err error, action string) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.NotFoundError("Product not found")
	}
	return utils.PersistenceError("Error "+action+" product", err)
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	product.Name = strings.TrimSpace(product.Name)
	if err := utils.Validate(product); err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.CreateProduct(ctx, &product); err != nil {
		utils.WriteError(w, pc.Logger, productError(err, "creating"))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, product)
}

// GetProducts lists the catalog, optionally narrowed by category and price
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	minPrice, err := optionalFloat(r, "minPrice")
	if err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	maxPrice, err := optionalFloat(r, "maxPrice")
	if err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	filter := models.ProductFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := pc.Products.ListProducts(ctx, filter)
	if err != nil {
		utils.WriteError(w, pc.Logger, productError(err, "fetching"))
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

// GetProductByID retrieves a product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	product, err := pc.Products.GetProduct(ctx, id)
	if err != nil {
		utils.WriteError(w, pc.Logger, productError(err, "fetching"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// UpdateProduct replaces a product's fields (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	product.Name = strings.TrimSpace(product.Name)
	if err := utils.Validate(product); err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	updated, err := pc.Products.UpdateProduct(ctx, id, product)
	if err != nil {
		utils.WriteError(w, pc.Logger, productError(err, "updating"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DeleteProduct removes a product (Admin only). Carts still holding it show
// the line as unavailable.
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, pc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := pc.Products.DeleteProduct(ctx, id); err != nil {
		utils.WriteError(w, pc.Logger, productError(err, "deleting"))
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Product deleted successfully")
}
