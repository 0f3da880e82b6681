package app

import (
	"fmt"
	"math"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"pricepicks/chain/internal/cards"
	"pricepicks/chain/internal/codec"
	"pricepicks/chain/internal/randsrc"
	"pricepicks/chain/internal/state"
)

func addInt64AndU64Checked(base int64, delta uint64, what string) (int64, error) {
	if delta > uint64(math.MaxInt64) {
		return 0, fmt.Errorf("%s: delta %d overflows int64", what, delta)
	}
	if base > math.MaxInt64-int64(delta) {
		return 0, fmt.Errorf("%s: %d + %d overflows int64", what, base, delta)
	}
	return base + int64(delta), nil
}

func beaconSubmit(st *state.State, env codec.TxEnvelope, msg codec.BeaconSubmitTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requirePublisherAuth(st, env, msg.Publisher); err != nil {
		return nil, err
	}
	if len(msg.Value) != 32 {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "beacon value must be 32 bytes, got %d", len(msg.Value))
	}
	if st.Beacon != nil && msg.Round <= st.Beacon.Round {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "beacon round %d not newer than %d", msg.Round, st.Beacon.Round)
	}
	st.Beacon = &state.RandomnessBeacon{
		Round:     msg.Round,
		Value:     append([]byte(nil), msg.Value...),
		UpdatedAt: nowUnix,
		Publisher: msg.Publisher,
	}
	return okEvent("BeaconSubmitted", map[string]string{
		"round":     fmt.Sprintf("%d", msg.Round),
		"publisher": msg.Publisher,
	}), nil
}

func gameCreate(st *state.State, env codec.TxEnvelope, msg codec.GameCreateTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requireAccountAuth(st, env, msg.Creator); err != nil {
		return nil, err
	}
	if id, busy := st.ActiveGame[msg.Creator]; busy {
		return nil, errorsmod.Wrapf(ErrAlreadyActive, "creator %q already in game %d", msg.Creator, id)
	}

	lobbySecs := msg.LobbySecs
	if lobbySecs == 0 {
		lobbySecs = st.Params.LobbyDurationSecs
	}
	choiceSecs := msg.ChoiceSecs
	if choiceSecs == 0 {
		choiceSecs = st.Params.ChoiceDurationSecs
	}
	resolutionSecs := msg.ResolutionSecs
	if resolutionSecs == 0 {
		resolutionSecs = st.Params.ResolutionDurationSecs
	}

	lobbyDeadline, err := addInt64AndU64Checked(nowUnix, lobbySecs, "lobby deadline")
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}

	id := st.NextGameID
	st.NextGameID++
	g := &state.Game{
		ID:             id,
		Phase:          state.PhaseLobby,
		CreatedAt:      nowUnix,
		LobbyDeadline:  lobbyDeadline,
		ChoiceSecs:     choiceSecs,
		ResolutionSecs: resolutionSecs,
		Players:        []string{msg.Creator},
		Choices:        map[string]*state.Choice{},
	}
	st.Games[id] = g
	st.ActiveGame[msg.Creator] = id

	return okEvent("GameCreated", map[string]string{
		"gameId":        fmt.Sprintf("%d", id),
		"creator":       msg.Creator,
		"lobbyDeadline": fmt.Sprintf("%d", lobbyDeadline),
	}), nil
}

func gameJoin(st *state.State, env codec.TxEnvelope, msg codec.GameJoinTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	// Phase gates joining, not the wall clock: a game whose lobby deadline
	// passed but which nobody started yet still accepts players.
	if g.Phase != state.PhaseLobby {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, joins closed", g.ID, g.Phase)
	}
	if g.HasPlayer(msg.Player) {
		return nil, errorsmod.Wrapf(ErrAlreadyJoined, "player %q", msg.Player)
	}
	if id, busy := st.ActiveGame[msg.Player]; busy {
		return nil, errorsmod.Wrapf(ErrAlreadyActive, "player %q already in game %d", msg.Player, id)
	}

	g.Players = append(g.Players, msg.Player)
	st.ActiveGame[msg.Player] = g.ID

	return okEvent("PlayerJoined", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"player": msg.Player,
	}), nil
}

// gameStart moves lobby -> choice once the lobby deadline passed. It is
// permissionless and idempotent: the first caller wins, later callers get a
// phase error and no state changes.
func gameStart(st *state.State, msg codec.GameStartTx, height int64, lastAppHash []byte, nowUnix int64) (*abci.ExecTxResult, error) {
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	if g.Phase != state.PhaseLobby {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, not lobby", g.ID, g.Phase)
	}
	if nowUnix < g.LobbyDeadline {
		return nil, errorsmod.Wrapf(ErrTooEarly, "lobby open until %d (now %d)", g.LobbyDeadline, nowUnix)
	}

	var src randsrc.Source
	if msg.SecureRandomness {
		b, err := randsrc.NewBeacon(st.Beacon, g.ID, nowUnix, st.Params.MaxBeaconAgeSecs)
		if err != nil {
			return nil, errorsmod.Wrap(ErrRandomness, err.Error())
		}
		src = b
	} else {
		src = randsrc.NewLocal(chainDomain, height, lastAppHash, g.ID)
	}

	drawn, err := src.Draw(int(st.Params.CardSetSize), cards.MaxCardID)
	if err != nil {
		return nil, errorsmod.Wrap(ErrRandomness, err.Error())
	}

	choiceDeadline, err := addInt64AndU64Checked(nowUnix, g.ChoiceSecs, "choice deadline")
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}
	resolutionDeadline, err := addInt64AndU64Checked(choiceDeadline, g.ResolutionSecs, "resolution deadline")
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}

	g.Cards = drawn
	g.ChoiceDeadline = choiceDeadline
	g.ResolutionDeadline = resolutionDeadline
	g.Phase = state.PhaseChoice

	cardStrs := make([]string, len(drawn))
	for i, id := range drawn {
		cardStrs[i] = fmt.Sprintf("%d", id)
	}
	return okEvent("GameStarted", map[string]string{
		"gameId":         fmt.Sprintf("%d", g.ID),
		"caller":         msg.Caller,
		"cards":          strings.Join(cardStrs, ","),
		"choiceDeadline": fmt.Sprintf("%d", choiceDeadline),
		"secure":         fmt.Sprintf("%t", msg.SecureRandomness),
	}), nil
}

func gameCommit(st *state.State, env codec.TxEnvelope, msg codec.GameCommitTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	if g.Phase != state.PhaseChoice {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, not choice", g.ID, g.Phase)
	}
	if !g.HasPlayer(msg.Player) {
		return nil, errorsmod.Wrapf(ErrNotParticipant, "player %q", msg.Player)
	}
	if c := g.Choices[msg.Player]; c != nil && c.Committed {
		return nil, errorsmod.Wrapf(ErrAlreadyCommitted, "player %q", msg.Player)
	}

	k := st.Params.SelectionSize
	if uint32(len(msg.CardIDs)) != k {
		return nil, errorsmod.Wrapf(ErrBadSelection, "need exactly %d cards, got %d", k, len(msg.CardIDs))
	}
	seen := map[uint32]bool{}
	for _, id := range msg.CardIDs {
		if !g.HasCard(id) {
			return nil, errorsmod.Wrapf(ErrBadSelection, "card %d is not in this game's set", id)
		}
		if seen[id] {
			return nil, errorsmod.Wrapf(ErrBadSelection, "duplicate card %d", id)
		}
		seen[id] = true
	}

	if g.Choices == nil {
		g.Choices = map[string]*state.Choice{}
	}
	g.Choices[msg.Player] = &state.Choice{
		CardIDs:     append([]uint32(nil), msg.CardIDs...),
		CommittedAt: nowUnix,
		Committed:   true,
	}

	return okEvent("ChoicesCommitted", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"player": msg.Player,
		"count":  fmt.Sprintf("%d", len(msg.CardIDs)),
	}), nil
}

// gameAdvance moves choice -> resolution once the choice deadline passed.
// Permissionless, first caller wins.
func gameAdvance(st *state.State, msg codec.GameAdvanceTx, nowUnix int64) (*abci.ExecTxResult, error) {
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", msg.GameID)
	}
	if g.Phase != state.PhaseChoice {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is in %s, not choice", g.ID, g.Phase)
	}
	if nowUnix < g.ChoiceDeadline {
		return nil, errorsmod.Wrapf(ErrTooEarly, "choices open until %d (now %d)", g.ChoiceDeadline, nowUnix)
	}

	g.Phase = state.PhaseResolution

	return okEvent("PhaseAdvanced", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"phase":  string(state.PhaseResolution),
	}), nil
}
