package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flashsale/internal/monitor"
	"flashsale/internal/repository"
	"flashsale/internal/service/seckill"
	"flashsale/pkg/idgen"
	"flashsale/pkg/utils"
)

// SeckillHandler seckill handler
type SeckillHandler struct {
	seckillService seckill.SeckillService
	tracer         *monitor.Tracer
}

// NewSeckillHandler creates a seckill handler
func NewSeckillHandler(seckillService seckill.SeckillService, tracer *monitor.Tracer) *SeckillHandler {
	return &SeckillHandler{
		seckillService: seckillService,
		tracer:         tracer,
	}
}

// SeckillVoucher attempts to buy one unit of a flash-sale voucher
func (h *SeckillHandler) SeckillVoucher(c *gin.Context) {
	voucherID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid voucher ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, span := h.tracer.StartAdmissionSpan(c.Request.Context(), voucherID, userID)
	defer span.End()

	orderID, err := h.seckillService.SeckillVoucher(ctx, voucherID, userID)
	if err != nil {
		h.tracer.RecordError(span, err)
		switch {
		case errors.Is(err, repository.ErrVoucherNotFound):
			utils.ErrorResponse(c, http.StatusNotFound, "Voucher not found")
		case errors.Is(err, seckill.ErrSeckillNotStarted),
			errors.Is(err, seckill.ErrSeckillEnded):
			utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, seckill.ErrAlreadyPurchased):
			utils.ErrorResponse(c, http.StatusConflict, err.Error())
		case errors.Is(err, seckill.ErrInsufficientStock):
			utils.ErrorResponse(c, http.StatusConflict, err.Error())
		case errors.Is(err, seckill.ErrSystemOverloaded),
			errors.Is(err, seckill.ErrServiceDegraded),
			errors.Is(err, idgen.ErrGeneratorUnavailable):
			utils.ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
		default:
			utils.ErrorResponse(c, http.StatusInternalServerError, "Seckill failed")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"order_id": strconv.FormatUint(orderID, 10),
	})
}

// PrewarmVoucher seeds Redis admission state for a voucher
func (h *SeckillHandler) PrewarmVoucher(c *gin.Context) {
	voucherID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid voucher ID")
		return
	}

	if err := h.seckillService.PrewarmVoucher(c.Request.Context(), voucherID); err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Voucher not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Prewarm failed: "+err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Voucher prewarmed successfully"})
}

// degradeRequest degrade request body
type degradeRequest struct {
	Message string `json:"message"`
	TTL     int64  `json:"ttl"` // seconds, 0 keeps the switch until restore
}

// DegradeVoucher switches admissions off for a voucher
func (h *SeckillHandler) DegradeVoucher(c *gin.Context) {
	voucherID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid voucher ID")
		return
	}

	var req degradeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ttl := time.Duration(req.TTL) * time.Second
	if err := h.seckillService.DegradeVoucher(c.Request.Context(), voucherID, req.Message, ttl); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Degrade failed: "+err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Voucher degraded"})
}

// RestoreVoucher switches admissions back on for a voucher
func (h *SeckillHandler) RestoreVoucher(c *gin.Context) {
	voucherID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid voucher ID")
		return
	}

	if err := h.seckillService.RestoreVoucher(c.Request.Context(), voucherID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Restore failed: "+err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Voucher restored"})
}

// currentUserID reads the authenticated user from the gin context
func currentUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	userID, ok := v.(uint64)
	return userID, ok
}
