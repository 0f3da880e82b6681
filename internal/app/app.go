package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"pricepicks/chain/internal/codec"
	"pricepicks/chain/internal/state"
)

const (
	AppVersion uint64 = 1

	// chainDomain keys the local randomness seed derivation.
	chainDomain = "ppc"
)

// PPCApp is the ABCI application: all game state lives in a single explicit
// state object guarded by mu. No package-level mutable state.
type PPCApp struct {
	*abci.BaseApplication

	home   string
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, logger log.Logger) (*PPCApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &PPCApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		logger:          logger,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *PPCApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "PPC (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *PPCApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; full auth runs at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *PPCApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *PPCApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	nowUnix := req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, nowUnix)
		if res.Code != 0 {
			a.logger.Debug("tx rejected", "height", req.Height, "codespace", res.Codespace, "code", res.Code, "log", res.Log)
		}
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *PPCApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *PPCApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /games
	// - /game/<id>
	// - /game/<id>/players
	// - /game/<id>/cards
	// - /game/<id>/choices/<player>
	// - /game/<id>/result/<cardId>
	// - /score/<player>
	// - /account/<addr>
	// - /nextGameId
	// - /params
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return a.queryOK(ids)

	case path == "/nextGameId":
		return a.queryOK(map[string]uint64{"nextGameId": a.st.NextGameID})

	case path == "/params":
		return a.queryOK(a.st.Params)

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		return a.queryOK(map[string]any{"addr": addr, "balance": a.st.Balance(addr)})

	case strings.HasPrefix(path, "/score/"):
		player := strings.TrimPrefix(path, "/score/")
		sc := a.st.Scores[player]
		if sc == nil {
			sc = &state.Score{}
		}
		return a.queryOK(sc)

	case strings.HasPrefix(path, "/game/"):
		return a.queryGame(strings.TrimPrefix(path, "/game/"))

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *PPCApp) queryGame(rest string) (*abci.QueryResponse, error) {
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
	}
	g, ok := a.st.Games[id]
	if !ok {
		return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
	}

	switch {
	case len(parts) == 1:
		return a.queryOK(g)

	case len(parts) == 2 && parts[1] == "players":
		return a.queryOK(g.Players)

	case len(parts) == 2 && parts[1] == "cards":
		return a.queryOK(g.Cards)

	case len(parts) == 3 && parts[1] == "choices":
		c := g.Choices[parts[2]]
		if c == nil {
			return &abci.QueryResponse{Code: 1, Log: "no committed choice", Height: a.st.Height}, nil
		}
		return a.queryOK(c)

	case len(parts) == 3 && parts[1] == "result":
		cardID, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid card id", Height: a.st.Height}, nil
		}
		r := g.Results[uint32(cardID)]
		if r == nil {
			return &abci.QueryResponse{Code: 1, Log: "no result for card", Height: a.st.Height}, nil
		}
		return a.queryOK(r)

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *PPCApp) queryOK(v any) (*abci.QueryResponse, error) {
	b, _ := json.Marshal(v)
	return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
}

func (a *PPCApp) deliverTx(txBytes []byte, height int64, nowUnix int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return errTx(errorsmod.Wrap(ErrInvalidRequest, err.Error()))
	}

	switch env.Type {
	case "bank/mint":
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad bank/mint value"))
		}
		if msg.To == "" || msg.Amount == 0 {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "missing to/amount"))
		}
		if err := a.st.Credit(msg.To, msg.Amount); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, err.Error()))
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad bank/send value"))
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "missing from/to/amount"))
		}
		if err := requireAccountAuth(a.st, env, msg.From); err != nil {
			return errTx(err)
		}
		if err := a.st.Transfer(msg.From, msg.To, msg.Amount); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, err.Error()))
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad auth/register_account value"))
		}
		if err := requireSelfKeyAuth(env, msg.Account, msg.PubKey); err != nil {
			return errTx(err)
		}
		if _, exists := a.st.AccountKeys[msg.Account]; exists {
			return errTx(errorsmod.Wrapf(ErrInvalidRequest, "account %q already registered", msg.Account))
		}
		a.st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		})

	case "oracle/register_publisher":
		var msg codec.OracleRegisterPublisherTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad oracle/register_publisher value"))
		}
		if err := requireSelfKeyAuth(env, msg.Publisher, msg.PubKey); err != nil {
			return errTx(err)
		}
		if _, exists := a.st.OraclePublishers[msg.Publisher]; exists {
			return errTx(errorsmod.Wrapf(ErrInvalidRequest, "publisher %q already registered", msg.Publisher))
		}
		a.st.OraclePublishers[msg.Publisher] = append([]byte(nil), msg.PubKey...)
		return okEvent("PublisherRegistered", map[string]string{
			"publisher": msg.Publisher,
		})

	case "beacon/submit":
		var msg codec.BeaconSubmitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad beacon/submit value"))
		}
		res, err := beaconSubmit(a.st, env, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/create":
		var msg codec.GameCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/create value"))
		}
		res, err := gameCreate(a.st, env, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/join":
		var msg codec.GameJoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/join value"))
		}
		res, err := gameJoin(a.st, env, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/start":
		var msg codec.GameStartTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/start value"))
		}
		res, err := gameStart(a.st, msg, height, a.lastHash, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/commit":
		var msg codec.GameCommitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/commit value"))
		}
		res, err := gameCommit(a.st, env, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/advance":
		var msg codec.GameAdvanceTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/advance value"))
		}
		res, err := gameAdvance(a.st, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/resolve":
		var msg codec.GameResolveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/resolve value"))
		}
		res, err := gameResolve(a.st, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	case "game/end":
		var msg codec.GameEndTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errTx(errorsmod.Wrap(ErrInvalidRequest, "bad game/end value"))
		}
		res, err := gameEnd(a.st, msg, nowUnix)
		if err != nil {
			return errTx(err)
		}
		return res

	default:
		return errTx(errorsmod.Wrapf(ErrInvalidRequest, "unknown tx type: %s", env.Type))
	}
}

func errTx(err error) *abci.ExecTxResult {
	space, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: space, Log: logMsg}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
