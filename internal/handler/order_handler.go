package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/repository"
	"flashsale/internal/service/order"
	"flashsale/pkg/utils"
)

// OrderHandler order handler
type OrderHandler struct {
	orderService order.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orderService order.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// GetOrder gets an order by ID. Users can only read their own orders.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	o, err := h.orderService.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Order not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if o.UserID != userID {
		utils.ErrorResponse(c, http.StatusNotFound, "Order not found")
		return
	}

	utils.SuccessResponse(c, o)
}

// ListOrders lists the authenticated user's orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SuccessPageResponse(c, orders, total, page, pageSize)
}
