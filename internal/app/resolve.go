package app

import (
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	abci "github.com/cometbft/cometbft/abci/types"

	"pricepicks/chain/internal/cards"
	"pricepicks/chain/internal/codec"
	"pricepicks/chain/internal/oracle"
	"pricepicks/chain/internal/state"
)

// gameResolve evaluates every generated card against verified price evidence,
// scores committed players, and ends the game. Permissionless: any funded
// caller may submit; the oracle update fee moves caller -> publisher.
//
// All checks run before any mutation. A rejected resolve leaves the game in
// the resolution phase and can be retried with fresh evidence.
func gameResolve(st *state.State, msg codec.GameResolveTx, nowUnix int64) (*abci.ExecTxResult, error) {
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	if g.Phase != state.PhaseResolution {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, not resolution", g.ID, g.Phase)
	}
	if msg.Caller == "" {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing caller")
	}

	ev, err := oracle.Verify(msg.Evidence, st.OraclePublishers, nowUnix, st.Params.MaxPriceAgeSecs)
	if err != nil {
		return nil, err
	}

	fee := st.Params.OracleUpdateFee
	if ev.Fee > fee {
		fee = ev.Fee
	}
	if st.Balance(msg.Caller) < fee {
		return nil, errorsmod.Wrapf(oracle.ErrInsufficientFee, "caller %q: have %d, need %d", msg.Caller, st.Balance(msg.Caller), fee)
	}

	// Evaluate the full card set. Evidence must cover every asset the set
	// touches or the whole resolve is rejected.
	results := make(map[uint32]*state.CardResult, len(g.Cards))
	for _, id := range g.Cards {
		if _, done := results[id]; done {
			continue
		}
		c, err := cards.Decode(id)
		if err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
		}
		q, ok := ev.QuoteFor(c.Asset)
		if !ok {
			return nil, errorsmod.Wrapf(oracle.ErrMissingAsset, "card %d needs %s", id, c.Asset)
		}
		correct := evaluateCard(c, q)
		points := uint32(0)
		if correct {
			points = c.Points(pointsTable(st.Params))
		}
		results[id] = &state.CardResult{Correct: correct, Points: points}
	}

	// Checks done; mutate. Transfer re-checks both sides so a publisher at
	// balance ceiling cannot burn the caller's fee.
	if err := st.Transfer(msg.Caller, ev.Publisher, fee); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}

	totals := map[string]uint32{}
	for player, choice := range g.Choices {
		if choice == nil || !choice.Committed {
			continue
		}
		var sum uint32
		for _, id := range choice.CardIDs {
			if r := results[id]; r != nil {
				sum += r.Points
			}
		}
		totals[player] = sum
	}

	winners := soleWinner(totals)

	g.Results = results
	finishGame(st, g, totals, winners)

	res := okEvent("GameResolved", map[string]string{
		"gameId":     fmt.Sprintf("%d", g.ID),
		"resolvedBy": msg.Caller,
		"publisher":  ev.Publisher,
		"fee":        fmt.Sprintf("%d", fee),
		"winners":    strings.Join(winners, ","),
	})
	res.Events = append(res.Events, playerScoredEvents(g.ID, totals)...)
	return res, nil
}

// gameEnd is the liveness escape hatch: once the resolution deadline passed
// with no successful resolve, anyone may close the game with zero points so
// participants are freed for new games.
func gameEnd(st *state.State, msg codec.GameEndTx, nowUnix int64) (*abci.ExecTxResult, error) {
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	if g.Phase != state.PhaseResolution {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, not resolution", g.ID, g.Phase)
	}
	if nowUnix < g.ResolutionDeadline {
		return nil, errorsmod.Wrapf(ErrTooEarly, "resolution open until %d (now %d)", g.ResolutionDeadline, nowUnix)
	}

	totals := map[string]uint32{}
	for player, choice := range g.Choices {
		if choice != nil && choice.Committed {
			totals[player] = 0
		}
	}
	finishGame(st, g, totals, nil)

	return okEvent("GameEnded", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"reason": "resolution-expired",
	}), nil
}

// finishGame applies terminal bookkeeping: score book updates for committed
// players, active-game release for every participant, phase transition.
func finishGame(st *state.State, g *state.Game, totals map[string]uint32, winners []string) {
	for player, points := range totals {
		sc := st.ScoreFor(player)
		sc.TotalPoints += uint64(points)
		sc.GamesPlayed++
	}
	if len(winners) == 1 {
		st.ScoreFor(winners[0]).GamesWon++
	}
	for _, p := range g.Players {
		if st.ActiveGame[p] == g.ID {
			delete(st.ActiveGame, p)
		}
	}
	g.Totals = totals
	g.Winners = winners
	g.Phase = state.PhaseEnded
}

// soleWinner returns the strictly-highest scorer, or nil on a tie or when
// nobody committed. Ties produce no winner.
func soleWinner(totals map[string]uint32) []string {
	var best uint32
	var top []string
	for player, points := range totals {
		switch {
		case len(top) == 0 || points > best:
			best = points
			top = []string{player}
		case points == best:
			top = append(top, player)
		}
	}
	if len(top) != 1 {
		return nil
	}
	return top
}

func pointsTable(p state.Params) cards.PointsTable {
	return cards.PointsTable{
		UpDown:       p.PointsUpDown,
		Threshold:    p.PointsThreshold,
		MarketMetric: p.PointsMarketMetric,
		PctChange:    p.PointsPctChange,
	}
}

// evaluateCard checks one prediction against an asset's window-close metrics
// relative to its window-open metrics.
func evaluateCard(c cards.Card, q oracle.AssetQuote) bool {
	switch c.Type {
	case cards.PriceUp:
		return oracle.Cmp(q.Price, q.PrevPrice) > 0
	case cards.PriceDown:
		return oracle.Cmp(q.Price, q.PrevPrice) < 0
	case cards.PriceAbove:
		return oracle.AboveThreshold(q.Price, q.PrevPrice, c.TargetBps)
	case cards.PriceBelow:
		return oracle.BelowThreshold(q.Price, q.PrevPrice, c.TargetBps)
	case cards.MarketCapAbove:
		return oracle.AboveThreshold(q.MarketCap, q.PrevMarketCap, c.TargetBps)
	case cards.VolumeAbove:
		return oracle.AboveThreshold(q.Volume, q.PrevVolume, c.TargetBps)
	case cards.PctChange:
		change := oracle.ChangeBps(q.Price, q.PrevPrice)
		bps := sdkmath.NewInt(int64(c.PctChangeBps))
		if c.Direction == cards.Up {
			return change.GTE(bps)
		}
		return change.LTE(bps.Neg())
	default:
		return false
	}
}

func playerScoredEvents(gameID uint64, totals map[string]uint32) []abci.Event {
	players := make([]string, 0, len(totals))
	for p := range totals {
		players = append(players, p)
	}
	sort.Strings(players)
	out := make([]abci.Event, 0, len(players))
	for _, p := range players {
		out = append(out, abci.Event{
			Type: "PlayerScored",
			Attributes: []abci.EventAttribute{
				{Key: "gameId", Value: fmt.Sprintf("%d", gameID), Index: true},
				{Key: "player", Value: p, Index: true},
				{Key: "points", Value: fmt.Sprintf("%d", totals[p]), Index: false},
			},
		})
	}
	return out
}
