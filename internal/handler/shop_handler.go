package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/model"
	"flashsale/internal/service/shop"
	"flashsale/pkg/utils"
)

// ShopHandler shop handler
type ShopHandler struct {
	shopService shop.ShopService
}

// NewShopHandler creates a shop handler
func NewShopHandler(shopService shop.ShopService) *ShopHandler {
	return &ShopHandler{
		shopService: shopService,
	}
}

// GetShop gets a shop by ID
func (h *ShopHandler) GetShop(c *gin.Context) {
	shopID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid shop ID")
		return
	}

	s, err := h.shopService.GetShopByID(c.Request.Context(), shopID)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrShopNotFound):
			utils.ErrorResponse(c, http.StatusNotFound, "Shop not found")
		case errors.Is(err, shop.ErrCacheBusy):
			utils.ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
		default:
			utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, s)
}

// UpdateShop updates a shop and invalidates its cache entry
func (h *ShopHandler) UpdateShop(c *gin.Context) {
	var s model.Shop
	if err := c.ShouldBindJSON(&s); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid parameters: "+err.Error())
		return
	}

	if err := h.shopService.UpdateShop(c.Request.Context(), &s); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Shop updated successfully"})
}
