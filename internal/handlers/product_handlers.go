package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elbourki/paymentkit/internal/services"
)

// ProductHandler proxies the merchant's catalog to the gateway product store.
type ProductHandler struct {
	products *services.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products *services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts returns the merchant's own products.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	products, err := h.products.List(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to fetch products")
	}
	return c.JSON(http.StatusOK, products)
}

type productRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Image    string  `json:"image"`
}

// CreateProduct stores a product and its SKU at the gateway.
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.Name == "" || req.Currency == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Name and currency are required")
	}

	if err := h.products.Create(c.Request().Context(), account.ID, req.Name, req.Price, req.Currency, req.Image); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to create product")
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

// UpdateProduct renames a product and updates its SKU.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	err = h.products.Update(c.Request().Context(), account.ID, c.Param("id"), req.Name, req.Price, req.Currency)
	if err != nil {
		if errors.Is(err, services.ErrProductHasNoSKU) {
			return echo.NewHTTPError(http.StatusBadRequest, "This product cannot be updated")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to update product")
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

// DeleteProduct removes a product from the gateway catalog.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	if err := h.products.Delete(c.Request().Context(), account.ID, c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to delete product")
	}
	return c.JSON(http.StatusOK, map[string]string{})
}
