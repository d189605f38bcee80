package handler

import (
	"github.com/gin-gonic/gin"

	"blinkbattle/internal/claim"
	"blinkbattle/internal/gateway"
)

type ClaimHandler struct {
	Claims *claim.Service
}

func (h *ClaimHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/matches/:id/claim", h.claimMatch)
	r.POST("/api/v1/payments/:reference/refund", h.claimRefund)
	r.POST("/api/v1/deposits/:reference/claim", h.claimDeposit)
}

// @Summary Claim the winner's payout
// @Tags claims
// @Param id path string true "match id"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id}/claim [post]
func (h *ClaimHandler) claimMatch(c *gin.Context) {
	hash, err := h.Claims.ClaimMatchPayout(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"tx_hash": hash}, nil)
}

// @Summary Claim a stake refund for a draw, no-match or cancelled match
// @Tags claims
// @Param reference path string true "payment reference"
// @Success 200 {object} apiResponse
// @Router /api/v1/payments/{reference}/refund [post]
func (h *ClaimHandler) claimRefund(c *gin.Context) {
	hash, err := h.Claims.ClaimRefund(c.Request.Context(), c.Param("reference"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"tx_hash": hash}, nil)
}

// @Summary Claim back an orphaned deposit
// @Tags claims
// @Param reference path string true "payment reference"
// @Success 200 {object} apiResponse
// @Router /api/v1/deposits/{reference}/claim [post]
func (h *ClaimHandler) claimDeposit(c *gin.Context) {
	hash, err := h.Claims.ClaimDeposit(c.Request.Context(), c.Param("reference"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"tx_hash": hash}, nil)
}
