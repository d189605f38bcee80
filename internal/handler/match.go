package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"blinkbattle/internal/gateway"
	"blinkbattle/internal/match"
	"blinkbattle/internal/models"
)

type MatchHandler struct {
	Service *match.Service
	Hub     *match.Hub
	Logger  *zap.Logger
}

func (h *MatchHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/matches")
	group.POST("", h.form)
	group.GET("/:id", h.get)
	group.POST("/:id/ready", h.ready)
	group.POST("/:id/stake", h.initiateStake)
	group.POST("/:id/stake/confirm", h.confirmStake)
	group.POST("/:id/tap", h.tap)
	group.GET("/:id/ws", h.stream)
}

type formMatchRequest struct {
	Player1ID     string `json:"player1_id" binding:"required"`
	Player2ID     string `json:"player2_id" binding:"required"`
	Player1Wallet string `json:"player1_wallet"`
	Player2Wallet string `json:"player2_wallet"`
	StakeWei      string `json:"stake_wei" binding:"required"`
}

type matchView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Player1ID     string `json:"player1_id"`
	Player2ID     string `json:"player2_id"`
	StakeWei      string `json:"stake_wei"`
	Player1Ready  bool   `json:"player1_ready"`
	Player2Ready  bool   `json:"player2_ready"`
	Player1Staked bool   `json:"player1_staked"`
	Player2Staked bool   `json:"player2_staked"`
	SignalAtMs    int64  `json:"signal_at_ms,omitempty"`
	WinnerID      string `json:"winner_id,omitempty"`
	Player1Result string `json:"player1_result,omitempty"`
	Player2Result string `json:"player2_result,omitempty"`
	ClaimStatus   string `json:"claim_status"`
	ClaimTxHash   string `json:"claim_tx_hash,omitempty"`
}

func toMatchView(m *models.Match) matchView {
	v := matchView{
		ID:            m.ID,
		Status:        m.Status,
		Player1ID:     m.Player1ID,
		Player2ID:     m.Player2ID,
		StakeWei:      m.StakeWei.String(),
		Player1Ready:  m.Player1Ready,
		Player2Ready:  m.Player2Ready,
		Player1Staked: m.Player1Staked,
		Player2Staked: m.Player2Staked,
		Player1Result: m.Player1Result,
		Player2Result: m.Player2Result,
		ClaimStatus:   m.ClaimStatus,
		ClaimTxHash:   m.ClaimTxHash,
	}
	if m.SignalAt != nil {
		v.SignalAtMs = m.SignalAt.UnixMilli()
	}
	if m.WinnerID != nil {
		v.WinnerID = *m.WinnerID
	}
	return v
}

// @Summary Form a match between two players
// @Tags matches
// @Accept json
// @Param request body formMatchRequest true "pairing and stake"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches [post]
func (h *MatchHandler) form(c *gin.Context) {
	var req formMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stake, err := decimal.NewFromString(req.StakeWei)
	if err != nil {
		Error(c, http.StatusBadRequest, "stake_wei is not a valid integer", nil)
		return
	}
	m, err := h.Service.Form(c.Request.Context(), match.FormInput{
		Player1ID:     req.Player1ID,
		Player2ID:     req.Player2ID,
		Player1Wallet: req.Player1Wallet,
		Player2Wallet: req.Player2Wallet,
		StakeWei:      stake,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toMatchView(m), nil)
}

// @Summary Get match state
// @Tags matches
// @Param id path string true "match id"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id} [get]
func (h *MatchHandler) get(c *gin.Context) {
	m, err := h.Service.Get(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toMatchView(m), nil)
}

// @Summary Mark the caller ready
// @Tags matches
// @Param id path string true "match id"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id}/ready [post]
func (h *MatchHandler) ready(c *gin.Context) {
	m, err := h.Service.Ready(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toMatchView(m), nil)
}

// @Summary Open the caller's stake payment
// @Tags matches
// @Param id path string true "match id"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id}/stake [post]
func (h *MatchHandler) initiateStake(c *gin.Context) {
	intent, err := h.Service.InitiateStake(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"reference":  intent.Reference,
		"amount_wei": intent.AmountWei.String(),
		"status":     intent.NormalizedStatus,
	}, nil)
}

type confirmStakeRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// @Summary Confirm the caller's stake payment
// @Tags matches
// @Accept json
// @Param id path string true "match id"
// @Param request body confirmStakeRequest true "verifier transaction id"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id}/stake/confirm [post]
func (h *MatchHandler) confirmStake(c *gin.Context) {
	var req confirmStakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	m, err := h.Service.ConfirmStake(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c), req.TransactionID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toMatchView(m), nil)
}

type tapRequest struct {
	ClientTimestampMs int64 `json:"client_timestamp_ms"`
}

// @Summary Record the caller's tap
// @Tags matches
// @Accept json
// @Param id path string true "match id"
// @Param request body tapRequest true "client-side tap timestamp"
// @Success 200 {object} apiResponse
// @Router /api/v1/matches/{id}/tap [post]
func (h *MatchHandler) tap(c *gin.Context) {
	var req tapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	out, err := h.Service.Tap(c.Request.Context(), c.Param("id"), gateway.UserFromGin(c), req.ClientTimestampMs)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"match":       toMatchView(out.Match),
		"reaction_ms": out.ReactionMs,
		"false_start": out.FalseStart,
	}, nil)
}

// @Summary Stream match state transitions over websocket
// @Tags matches
// @Param id path string true "match id"
// @Router /api/v1/matches/{id}/ws [get]
func (h *MatchHandler) stream(c *gin.Context) {
	matchID := c.Param("id")
	if _, err := h.Service.Get(c.Request.Context(), matchID, gateway.UserFromGin(c)); err != nil {
		Fail(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	events, cancel := h.Hub.Subscribe(matchID)
	defer cancel()

	ctx := c.Request.Context()

	// Replay the latest known state so reconnecting clients are not
	// blind until the next transition.
	if last, err := h.Service.LastEvent(ctx, matchID); err == nil && last != nil {
		if payload, err := json.Marshal(last); err == nil {
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			_ = conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
