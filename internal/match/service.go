// Package match runs the duel state machine: formation, readiness,
// staking, the red-light countdown, the randomized green signal, and
// tap resolution. Every transition that depends on current state runs
// under a row lock so the signal goroutine and two tapping players
// cannot interleave into an inconsistent outcome.
package match

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blinkbattle/internal/anticheat"
	"blinkbattle/internal/apperr"
	"blinkbattle/internal/config"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/repository"
	"blinkbattle/internal/rng"
	"blinkbattle/internal/store"
)

// Payments is the slice of the payment ledger the engine drives for
// stake escrow.
type Payments interface {
	Initiate(ctx context.Context, userID, wallet string, matchID *string, amountWei decimal.Decimal) (*models.PaymentIntent, error)
	ConfirmWithPolling(ctx context.Context, reference, userID, minikitTxID string) (*models.PaymentIntent, error)
}

type Service struct {
	Repo      repository.Repository
	Payments  Payments
	Game      config.GameConfig
	Anticheat *anticheat.Evaluator
	Hub       *Hub
	Logger    *zap.Logger

	// State caches the latest published event per match so stream
	// reconnects can replay current state without a DB read.
	State store.Store

	// Now is swappable for tests. Nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type FormInput struct {
	Player1ID     string
	Player2ID     string
	Player1Wallet string
	Player2Wallet string
	StakeWei      decimal.Decimal
}

// Form creates a match between two players, or returns the existing one
// when the same pairing was already formed in the same window. The
// match key is deterministic, so double submission from a matchmaking
// retry cannot produce two live matches.
func (s *Service) Form(ctx context.Context, in FormInput) (*models.Match, error) {
	p1 := strings.TrimSpace(in.Player1ID)
	p2 := strings.TrimSpace(in.Player2ID)
	if p1 == "" || p2 == "" {
		return nil, apperr.New(apperr.KindValidation, "both player ids are required")
	}
	if p1 == p2 {
		return nil, apperr.New(apperr.KindValidation, "a player cannot duel themselves")
	}
	if !in.StakeWei.IsPositive() || !in.StakeWei.Equal(in.StakeWei.Truncate(0)) {
		return nil, apperr.New(apperr.KindValidation, "stake must be a positive integral wei value")
	}

	key := rng.MatchKey(p1, p2, in.StakeWei, s.now())
	if existing, err := s.Repo.GetMatchByKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	m := &models.Match{
		ID:            uuid.NewString(),
		MatchKey:      key,
		Player1ID:     p1,
		Player2ID:     p2,
		Player1Wallet: strings.TrimSpace(in.Player1Wallet),
		Player2Wallet: strings.TrimSpace(in.Player2Wallet),
		StakeWei:      in.StakeWei,
		Status:        models.MatchStatusCreated,
	}
	if err := s.Repo.CreateMatch(ctx, m); err != nil {
		// Lost a formation race; the winner's row is the match.
		if apperr.KindOf(err) == apperr.KindConflictCompleted {
			return s.Repo.GetMatchByKey(ctx, key)
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("match formed",
			zap.String("match_id", m.ID),
			zap.String("player1", p1),
			zap.String("player2", p2),
			zap.String("stake_wei", in.StakeWei.String()),
		)
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, matchID, userID string) (*models.Match, error) {
	m, err := s.Repo.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if userID != "" && m.PlayerIndex(userID) == 0 {
		return nil, apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
	}
	return m, nil
}

// Ready marks one player ready. Readiness is only meaningful before
// the countdown starts.
func (s *Service) Ready(ctx context.Context, matchID, userID string) (*models.Match, error) {
	var out *models.Match
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		seat := m.PlayerIndex(userID)
		if seat == 0 {
			return apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
		}
		switch m.Status {
		case models.MatchStatusCreated, models.MatchStatusReadyWait, models.MatchStatusStaked:
		default:
			return apperr.New(apperr.KindValidation, "match is past the readiness phase")
		}

		now := s.now()
		fields := map[string]any{}
		if seat == 1 && !m.Player1Ready {
			m.Player1Ready = true
			fields["player1_ready"] = true
			fields["player1_ready_at"] = now
		}
		if seat == 2 && !m.Player2Ready {
			m.Player2Ready = true
			fields["player2_ready"] = true
			fields["player2_ready_at"] = now
		}
		if m.Status == models.MatchStatusCreated {
			m.Status = models.MatchStatusReadyWait
			fields["status"] = models.MatchStatusReadyWait
		}
		// Stakes may confirm before readiness; the last ready flag is
		// what completes the staked transition then.
		if m.BothReady() && m.BothStaked() && m.Status == models.MatchStatusReadyWait {
			m.Status = models.MatchStatusStaked
			fields["status"] = models.MatchStatusStaked
		}
		if len(fields) > 0 {
			if err := s.Repo.UpdateMatchFieldsTx(tx, matchID, fields); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.maybeStartCountdown(ctx, matchID)
	return out, nil
}

// InitiateStake opens the escrow payment for one player's stake.
func (s *Service) InitiateStake(ctx context.Context, matchID, userID string) (*models.PaymentIntent, error) {
	m, err := s.Repo.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	seat := m.PlayerIndex(userID)
	if seat == 0 {
		return nil, apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
	}
	switch m.Status {
	case models.MatchStatusCreated, models.MatchStatusReadyWait:
	default:
		return nil, apperr.New(apperr.KindValidation, "staking window is closed")
	}
	wallet := m.Player1Wallet
	if seat == 2 {
		wallet = m.Player2Wallet
	}
	return s.Payments.Initiate(ctx, userID, wallet, &m.ID, m.StakeWei)
}

// ConfirmStake verifies the player's escrow payment and, once both
// stakes are confirmed and both players are ready, arms the countdown.
func (s *Service) ConfirmStake(ctx context.Context, matchID, userID, minikitTxID string) (*models.Match, error) {
	m, err := s.Repo.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	seat := m.PlayerIndex(userID)
	if seat == 0 {
		return nil, apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
	}

	reference := rng.PaymentReference(matchID, userID, m.StakeWei)
	intent, err := s.Payments.ConfirmWithPolling(ctx, reference, userID, minikitTxID)
	if err != nil {
		return nil, err
	}
	if payment.Status(intent.NormalizedStatus) != payment.StatusConfirmed {
		return nil, apperr.New(apperr.KindExternal, "stake payment is not confirmed")
	}

	var out *models.Match
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		fields := map[string]any{}
		if seat == 1 && !m.Player1Staked {
			m.Player1Staked = true
			fields["player1_staked"] = true
			fields["player1_stake_tx_ref"] = reference
		}
		if seat == 2 && !m.Player2Staked {
			m.Player2Staked = true
			fields["player2_staked"] = true
			fields["player2_stake_tx_ref"] = reference
		}
		// Readiness gates the staked transition: two confirmed stakes on
		// an unready match park in ready_wait until both players flag in.
		if m.BothStaked() && m.BothReady() && (m.Status == models.MatchStatusCreated || m.Status == models.MatchStatusReadyWait) {
			m.Status = models.MatchStatusStaked
			fields["status"] = models.MatchStatusStaked
		}
		if len(fields) > 0 {
			if err := s.Repo.UpdateMatchFieldsTx(tx, matchID, fields); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.maybeStartCountdown(ctx, matchID)
	return out, nil
}

// maybeStartCountdown transitions staked+ready matches into countdown
// exactly once; the guard transition happens under a lock, the timing
// sequence runs in a goroutine.
func (s *Service) maybeStartCountdown(ctx context.Context, matchID string) {
	var start bool
	var redEnd time.Time
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusStaked || !m.BothReady() || !m.BothStaked() {
			return nil
		}
		seq := rng.LightSequence()
		total := 0
		for _, step := range seq {
			total += step
		}
		redEnd = s.now().Add(time.Duration(total) * time.Millisecond)
		start = true
		return s.Repo.UpdateMatchFieldsTx(tx, matchID, map[string]any{
			"status":              models.MatchStatusCountdown,
			"red_sequence_end_at": redEnd,
		})
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("countdown arm failed", zap.String("match_id", matchID), zap.Error(err))
		}
		return
	}
	if !start {
		return
	}
	s.publish(Event{Type: "countdown", MatchID: matchID, Status: models.MatchStatusCountdown})
	go s.runSignalSequence(matchID, redEnd)
}

// runSignalSequence walks countdown -> armed -> signaled, re-checking
// the match under a lock before each transition so a false start that
// already resolved the match stops the sequence.
func (s *Service) runSignalSequence(matchID string, redEnd time.Time) {
	ctx := context.Background()

	time.Sleep(time.Until(redEnd))
	if !s.transition(ctx, matchID, models.MatchStatusCountdown, map[string]any{
		"status": models.MatchStatusArmed,
	}) {
		return
	}
	s.publish(Event{Type: "armed", MatchID: matchID, Status: models.MatchStatusArmed})

	time.Sleep(s.Game.MandatoryWait)
	delayMs := rng.Delay(s.Game.SignalDelayMinMs, s.Game.SignalDelayMaxMs)
	time.Sleep(time.Duration(delayMs) * time.Millisecond)

	signalAt := s.now()
	if !s.transition(ctx, matchID, models.MatchStatusArmed, map[string]any{
		"status":    models.MatchStatusSignaled,
		"signal_at": signalAt,
	}) {
		return
	}
	s.publish(Event{
		Type:     "signal",
		MatchID:  matchID,
		Status:   models.MatchStatusSignaled,
		SignalAt: signalAt.UnixMilli(),
	})

	time.Sleep(s.Game.TapWindow)
	s.resolveTimeout(ctx, matchID)
}

// transition applies fields only if the match is still in the expected
// status. Returns false when the match moved on (resolved, cancelled).
func (s *Service) transition(ctx context.Context, matchID, expect string, fields map[string]any) bool {
	applied := false
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != expect {
			return nil
		}
		applied = true
		return s.Repo.UpdateMatchFieldsTx(tx, matchID, fields)
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("match transition failed",
				zap.String("match_id", matchID),
				zap.String("expect", expect),
				zap.Error(err),
			)
		}
		return false
	}
	return applied
}

// TapOutcome reports what the player's tap did to the match.
type TapOutcome struct {
	Match      *models.Match
	ReactionMs int64
	FalseStart bool

	// decided is set when this call changed the outcome, so replays do
	// not republish the resolution event.
	decided bool
}

// Tap records the player's tap and resolves the match when the tap
// decides it. Taps before the green signal are false starts and lose
// immediately. The tap ledger is first write wins, so a double tap
// replays the first one instead of recording twice.
func (s *Service) Tap(ctx context.Context, matchID, userID string, clientTimestampMs int64) (*TapOutcome, error) {
	serverTime := s.now()
	out := &TapOutcome{}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		seat := m.PlayerIndex(userID)
		if seat == 0 {
			return apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
		}
		switch m.Status {
		case models.MatchStatusCountdown, models.MatchStatusArmed, models.MatchStatusSignaled:
		case models.MatchStatusResolved:
			// The opponent's tap may have won the row-lock race by
			// nanoseconds. Until settlement starts, a late tap still
			// goes on the ledger and an exact tie revises the outcome.
			return s.reviseLateTap(tx, m, userID, clientTimestampMs, serverTime, out)
		case models.MatchStatusSettling, models.MatchStatusClosed:
			// Too late; replay the standing outcome.
			out.Match = m
			if m.SignalAt != nil {
				out.ReactionMs = anticheat.ClampReaction(serverTime.Sub(*m.SignalAt).Milliseconds())
			}
			return nil
		default:
			return apperr.New(apperr.KindValidation, "match is not underway")
		}

		ev := &models.TapEvent{
			MatchID:           matchID,
			UserID:            userID,
			ClientTimestampMs: clientTimestampMs,
			ServerTimestamp:   serverTime,
		}
		if err := s.Repo.InsertTapEventTx(tx, ev); err != nil {
			if apperr.KindOf(err) != apperr.KindConflictCompleted {
				return err
			}
			existing, err := s.Repo.GetTapEventTx(tx, matchID, userID)
			if err != nil {
				return err
			}
			if existing != nil {
				ev = existing
			}
		}

		if m.SignalAt == nil {
			return s.resolveFalseStart(tx, m, seat, out)
		}
		return s.resolveTap(tx, m, seat, userID, ev, out)
	})
	if err != nil {
		return nil, err
	}
	if out.decided && out.Match != nil {
		winner := ""
		if out.Match.WinnerID != nil {
			winner = *out.Match.WinnerID
		}
		s.publish(Event{
			Type:     "resolved",
			MatchID:  matchID,
			Status:   models.MatchStatusResolved,
			WinnerID: winner,
		})
	}
	return out, nil
}

// reviseLateTap handles a tap arriving after resolution but before
// settlement. The tap is still recorded; when its reaction exactly ties
// the winning one the match is revised to a draw, which clears the
// winner payout and leaves both stakes refund eligible.
func (s *Service) reviseLateTap(tx *gorm.DB, m *models.Match, userID string, clientTimestampMs int64, serverTime time.Time, out *TapOutcome) error {
	out.Match = m
	if m.SignalAt == nil {
		return nil
	}
	reaction := anticheat.ClampReaction(serverTime.Sub(*m.SignalAt).Milliseconds())
	out.ReactionMs = reaction
	if m.WinnerID == nil || *m.WinnerID == userID {
		return nil
	}

	ev := &models.TapEvent{
		MatchID:           m.ID,
		UserID:            userID,
		ClientTimestampMs: clientTimestampMs,
		ServerTimestamp:   serverTime,
	}
	if err := s.Repo.InsertTapEventTx(tx, ev); err != nil {
		if apperr.KindOf(err) == apperr.KindConflictCompleted {
			// Already on the ledger; the standing outcome holds.
			return nil
		}
		return err
	}
	if !anticheat.WithinValidWindow(reaction) {
		return nil
	}
	winEv, err := s.Repo.GetTapEventTx(tx, m.ID, *m.WinnerID)
	if err != nil {
		return err
	}
	if winEv == nil {
		// The winner won on the opponent's false start, not a tap.
		return nil
	}
	if anticheat.ClampReaction(winEv.ServerTimestamp.Sub(*m.SignalAt).Milliseconds()) != reaction {
		return nil
	}

	if err := s.Repo.UpdateMatchFieldsTx(tx, m.ID, map[string]any{
		"winner_id":      nil,
		"player1_result": models.ResultDraw,
		"player2_result": models.ResultDraw,
	}); err != nil {
		return err
	}
	m.WinnerID = nil
	m.Player1Result, m.Player2Result = models.ResultDraw, models.ResultDraw
	out.decided = true
	if s.Logger != nil {
		s.Logger.Info("simultaneous taps, match revised to draw",
			zap.String("match_id", m.ID),
			zap.Int64("reaction_ms", reaction),
		)
	}
	return nil
}

func (s *Service) resolveFalseStart(tx *gorm.DB, m *models.Match, seat int, out *TapOutcome) error {
	r1, r2 := models.ResultLoss, models.ResultWin
	winner := m.Player2ID
	if seat == 2 {
		r1, r2 = models.ResultWin, models.ResultLoss
		winner = m.Player1ID
	}
	fields := map[string]any{
		"status":         models.MatchStatusResolved,
		"winner_id":      winner,
		"player1_result": r1,
		"player2_result": r2,
	}
	if err := s.Repo.UpdateMatchFieldsTx(tx, m.ID, fields); err != nil {
		return err
	}
	m.Status = models.MatchStatusResolved
	m.WinnerID = &winner
	m.Player1Result, m.Player2Result = r1, r2
	out.Match = m
	out.FalseStart = true
	out.decided = true
	if s.Logger != nil {
		s.Logger.Info("false start",
			zap.String("match_id", m.ID),
			zap.Int("seat", seat),
		)
	}
	return nil
}

func (s *Service) resolveTap(tx *gorm.DB, m *models.Match, seat int, userID string, ev *models.TapEvent, out *TapOutcome) error {
	reaction := anticheat.ClampReaction(ev.ServerTimestamp.Sub(*m.SignalAt).Milliseconds())
	out.ReactionMs = reaction
	out.Match = m

	if s.Anticheat != nil {
		clientReaction := ev.ClientTimestampMs - m.SignalAt.UnixMilli()
		s.Anticheat.CheckTimingDiscrepancy(clientReaction, reaction, userID)
	}

	// A sub-threshold reaction is physiologically impossible; score it
	// as a false start even though the signal had fired.
	if reaction < anticheat.MinValidReactionMs {
		return s.resolveFalseStart(tx, m, seat, out)
	}
	if !anticheat.WithinValidWindow(reaction) {
		// Too slow to win. The tap stays on the ledger; the window
		// timer settles the match.
		return nil
	}

	opponentID := m.Player1ID
	if seat == 1 {
		opponentID = m.Player2ID
	}
	oppEv, err := s.Repo.GetTapEventTx(tx, m.ID, opponentID)
	if err != nil {
		return err
	}

	r1, r2 := models.ResultLoss, models.ResultWin
	var winner *string
	if seat == 1 {
		r1, r2 = models.ResultWin, models.ResultLoss
	}
	if oppEv != nil {
		oppReaction := anticheat.ClampReaction(oppEv.ServerTimestamp.Sub(*m.SignalAt).Milliseconds())
		if anticheat.WithinValidWindow(oppReaction) {
			switch {
			case oppReaction < reaction:
				if seat == 1 {
					r1, r2 = models.ResultLoss, models.ResultWin
				} else {
					r1, r2 = models.ResultWin, models.ResultLoss
				}
			case oppReaction == reaction:
				r1, r2 = models.ResultDraw, models.ResultDraw
			}
		}
	}
	if r1 == models.ResultWin {
		winner = &m.Player1ID
	} else if r2 == models.ResultWin {
		winner = &m.Player2ID
	}

	fields := map[string]any{
		"status":         models.MatchStatusResolved,
		"winner_id":      winner,
		"player1_result": r1,
		"player2_result": r2,
	}
	if err := s.Repo.UpdateMatchFieldsTx(tx, m.ID, fields); err != nil {
		return err
	}
	m.Status = models.MatchStatusResolved
	m.WinnerID = winner
	m.Player1Result, m.Player2Result = r1, r2
	out.decided = true
	if s.Logger != nil {
		s.Logger.Info("match resolved",
			zap.String("match_id", m.ID),
			zap.Int64("reaction_ms", reaction),
			zap.String("player1_result", r1),
			zap.String("player2_result", r2),
		)
	}
	return nil
}

// resolveTimeout settles a match whose tap window elapsed without a
// deciding tap. A standing valid tap still wins; otherwise both players
// score NO_MATCH and their stakes become refundable.
func (s *Service) resolveTimeout(ctx context.Context, matchID string) {
	var resolved bool
	var winnerID string
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusSignaled || m.SignalAt == nil {
			return nil
		}

		taps, err := s.Repo.ListTapEventsByMatchIDTx(tx, matchID)
		if err != nil {
			return err
		}
		best := int64(-1)
		var bestUser string
		for _, t := range taps {
			r := anticheat.ClampReaction(t.ServerTimestamp.Sub(*m.SignalAt).Milliseconds())
			if !anticheat.WithinValidWindow(r) {
				continue
			}
			if best < 0 || r < best {
				best = r
				bestUser = t.UserID
			}
		}

		r1, r2 := models.ResultNoMatch, models.ResultNoMatch
		var winner *string
		if best >= 0 {
			if bestUser == m.Player1ID {
				r1, r2 = models.ResultWin, models.ResultLoss
				winner = &m.Player1ID
			} else {
				r1, r2 = models.ResultLoss, models.ResultWin
				winner = &m.Player2ID
			}
		}
		resolved = true
		if winner != nil {
			winnerID = *winner
		}
		return s.Repo.UpdateMatchFieldsTx(tx, matchID, map[string]any{
			"status":         models.MatchStatusResolved,
			"winner_id":      winner,
			"player1_result": r1,
			"player2_result": r2,
		})
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("timeout resolution failed", zap.String("match_id", matchID), zap.Error(err))
		}
		return
	}
	if resolved {
		s.publish(Event{
			Type:     "resolved",
			MatchID:  matchID,
			Status:   models.MatchStatusResolved,
			WinnerID: winnerID,
		})
	}
}

// Cancel abandons a match that never reached the countdown. Confirmed
// stakes on a cancelled match stay refund eligible.
func (s *Service) Cancel(ctx context.Context, matchID string) error {
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		switch m.Status {
		case models.MatchStatusCreated, models.MatchStatusReadyWait, models.MatchStatusStaked:
		default:
			return apperr.New(apperr.KindValidation, "match already started")
		}
		return s.Repo.UpdateMatchFieldsTx(tx, matchID, map[string]any{
			"status": models.MatchStatusCancelled,
		})
	})
	if err != nil {
		return err
	}
	s.publish(Event{Type: "cancelled", MatchID: matchID, Status: models.MatchStatusCancelled})
	return nil
}

func (s *Service) publish(ev Event) {
	if s.Hub != nil {
		s.Hub.Publish(ev)
	}
	if s.State != nil {
		if payload, err := json.Marshal(ev); err == nil {
			_ = s.State.Set(context.Background(), stateKey(ev.MatchID), payload, time.Hour)
		}
	}
}

// LastEvent returns the most recently published event for a match,
// nil when none is cached.
func (s *Service) LastEvent(ctx context.Context, matchID string) (*Event, error) {
	if s.State == nil {
		return nil, nil
	}
	payload, found, err := s.State.Get(ctx, stateKey(matchID))
	if err != nil || !found {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func stateKey(matchID string) string {
	return "match:last_event:" + matchID
}
