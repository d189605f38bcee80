package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"blinkbattle/internal/gateway"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/repository"
)

type PaymentHandler struct {
	Payments *payment.Service
	Repo     repository.Repository
}

func (h *PaymentHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/payments")
	group.POST("", h.initiate)
	group.GET("/:reference", h.get)
	group.POST("/:reference/confirm", h.confirm)

	deposits := r.Group("/api/v1/deposits")
	deposits.GET("/orphaned", h.listOrphaned)
}

type paymentView struct {
	Reference       string `json:"reference"`
	AmountWei       string `json:"amount_wei"`
	Status          string `json:"status"`
	RawStatus       string `json:"raw_status,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	RefundStatus    string `json:"refund_status"`
	MatchID         string `json:"match_id,omitempty"`
}

func toPaymentView(p *models.PaymentIntent) paymentView {
	v := paymentView{
		Reference:       p.Reference,
		AmountWei:       p.AmountWei.String(),
		Status:          p.NormalizedStatus,
		RawStatus:       p.RawStatus,
		TransactionHash: p.TransactionHash,
		RefundStatus:    p.RefundStatus,
	}
	if p.MatchID != nil {
		v.MatchID = *p.MatchID
	}
	return v
}

type initiatePaymentRequest struct {
	AmountWei string `json:"amount_wei" binding:"required"`
	MatchID   string `json:"match_id"`
}

// @Summary Initiate a payment
// @Tags payments
// @Accept json
// @Param request body initiatePaymentRequest true "amount and optional match"
// @Success 200 {object} apiResponse
// @Router /api/v1/payments [post]
func (h *PaymentHandler) initiate(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := decimal.NewFromString(req.AmountWei)
	if err != nil {
		Error(c, http.StatusBadRequest, "amount_wei is not a valid integer", nil)
		return
	}
	var matchID *string
	if req.MatchID != "" {
		matchID = &req.MatchID
	}
	intent, err := h.Payments.Initiate(c.Request.Context(), gateway.UserFromGin(c), gateway.WalletFromGin(c), matchID, amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPaymentView(intent), nil)
}

// @Summary Get payment status
// @Tags payments
// @Param reference path string true "payment reference"
// @Success 200 {object} apiResponse
// @Router /api/v1/payments/{reference} [get]
func (h *PaymentHandler) get(c *gin.Context) {
	intent, err := h.Payments.GetByReference(c.Request.Context(), c.Param("reference"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPaymentView(intent), nil)
}

type confirmPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Poll          bool   `json:"poll"`
}

// @Summary Confirm a payment against the verifier
// @Tags payments
// @Accept json
// @Param reference path string true "payment reference"
// @Param request body confirmPaymentRequest true "verifier transaction id"
// @Success 200 {object} apiResponse
// @Router /api/v1/payments/{reference}/confirm [post]
func (h *PaymentHandler) confirm(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	reference := c.Param("reference")
	userID := gateway.UserFromGin(c)

	var intent *models.PaymentIntent
	var err error
	if req.Poll {
		intent, err = h.Payments.ConfirmWithPolling(c.Request.Context(), reference, userID, req.TransactionID)
	} else {
		intent, err = h.Payments.Confirm(c.Request.Context(), reference, userID, req.TransactionID)
	}
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPaymentView(intent), nil)
}

// @Summary List the caller's confirmed deposits with no match attached
// @Tags deposits
// @Param limit query int false "max rows"
// @Success 200 {object} apiResponse
// @Router /api/v1/deposits/orphaned [get]
func (h *PaymentHandler) listOrphaned(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	intents, err := h.Repo.ListOrphanedConfirmedIntents(c.Request.Context(), gateway.UserFromGin(c), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]paymentView, 0, len(intents))
	for i := range intents {
		views = append(views, toPaymentView(&intents[i]))
	}
	Ok(c, views, map[string]any{"count": len(views)})
}
