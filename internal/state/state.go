package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// GamePhase is the lifecycle stage of a game.
//
// The legacy label set also contained an "active" phase; no transition ever
// entered it, so it is reserved here and deliberately absent from the enum.
type GamePhase string

const (
	PhaseLobby      GamePhase = "lobby"
	PhaseChoice     GamePhase = "choice"
	PhaseResolution GamePhase = "resolution"
	PhaseEnded      GamePhase = "ended"
)

// Params are the engine constants. They are part of consensus state and are
// exposed read-only via the /params query.
type Params struct {
	LobbyDurationSecs      uint64 `json:"lobbyDurationSecs"`
	ChoiceDurationSecs     uint64 `json:"choiceDurationSecs"`
	ResolutionDurationSecs uint64 `json:"resolutionDurationSecs"`

	SelectionSize uint32 `json:"selectionSize"`
	CardSetSize   uint32 `json:"cardSetSize"`

	PointsUpDown       uint32 `json:"pointsUpDown"`
	PointsThreshold    uint32 `json:"pointsThreshold"`
	PointsMarketMetric uint32 `json:"pointsMarketMetric"`
	PointsPctChange    uint32 `json:"pointsPctChange"`

	MaxPriceAgeSecs  uint64 `json:"maxPriceAgeSecs"`
	MaxBeaconAgeSecs uint64 `json:"maxBeaconAgeSecs"`
	OracleUpdateFee  uint64 `json:"oracleUpdateFee"`
}

func DefaultParams() Params {
	return Params{
		LobbyDurationSecs:      300,
		ChoiceDurationSecs:     600,
		ResolutionDurationSecs: 3600,
		SelectionSize:          3,
		CardSetSize:            10,
		PointsUpDown:           10,
		PointsThreshold:        15,
		PointsMarketMetric:     18,
		PointsPctChange:        20,
		MaxPriceAgeSecs:        120,
		MaxBeaconAgeSecs:       3600,
		OracleUpdateFee:        5,
	}
}

// Choice is a player's one-time selection of card ids during the choice phase.
// Immutable once Committed is set.
type Choice struct {
	CardIDs     []uint32 `json:"cardIds"`
	CommittedAt int64    `json:"committedAt"`
	Committed   bool     `json:"committed"`
}

// CardResult is the outcome of evaluating one card against price evidence.
// Results are per card, not per player: every committed player holding the
// card receives the same result.
type CardResult struct {
	Correct bool   `json:"correct"`
	Points  uint32 `json:"points"`
}

type Game struct {
	ID    uint64    `json:"id"`
	Phase GamePhase `json:"phase"`

	CreatedAt          int64 `json:"createdAt"`
	LobbyDeadline      int64 `json:"lobbyDeadline"`
	ChoiceDeadline     int64 `json:"choiceDeadline,omitempty"`
	ResolutionDeadline int64 `json:"resolutionDeadline,omitempty"`

	// Per-game duration overrides fixed at creation (defaults from Params).
	ChoiceSecs     uint64 `json:"choiceSecs"`
	ResolutionSecs uint64 `json:"resolutionSecs"`

	// Players in join order. Join order has no scoring effect but fixes the
	// iteration order of batch operations.
	Players []string `json:"players"`

	// Cards is the generated card set: fixed length, immutable once the game
	// enters the choice phase.
	Cards []uint32 `json:"cards,omitempty"`

	Choices map[string]*Choice `json:"choices,omitempty"`

	// Filled at resolution.
	Results map[uint32]*CardResult `json:"results,omitempty"`
	Totals  map[string]uint32      `json:"totals,omitempty"`
	Winners []string               `json:"winners,omitempty"`
}

// HasPlayer reports whether addr joined this game.
func (g *Game) HasPlayer(addr string) bool {
	for _, p := range g.Players {
		if p == addr {
			return true
		}
	}
	return false
}

// HasCard reports whether id belongs to the generated card set.
func (g *Game) HasCard(id uint32) bool {
	for _, c := range g.Cards {
		if c == id {
			return true
		}
	}
	return false
}

// Score is a player's cumulative book. Mutated only at game end; values are
// never retracted.
type Score struct {
	TotalPoints uint64 `json:"totalPoints"`
	GamesPlayed uint64 `json:"gamesPlayed"`
	GamesWon    uint64 `json:"gamesWon"`
}

// RandomnessBeacon is the latest verifiable randomness round relayed on-chain.
type RandomnessBeacon struct {
	Round     uint64 `json:"round"`
	Value     []byte `json:"value"` // 32 bytes
	UpdatedAt int64  `json:"updatedAt"`
	Publisher string `json:"publisher"`
}

type State struct {
	Height int64  `json:"height"`
	Params Params `json:"params"`

	NextGameID uint64             `json:"nextGameId"`
	Games      map[uint64]*Game   `json:"games"`
	ActiveGame map[string]uint64  `json:"activeGame,omitempty"` // player -> non-ended game id
	Scores     map[string]*Score  `json:"scores,omitempty"`
	Accounts   map[string]uint64  `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)

	OraclePublishers map[string][]byte `json:"oraclePublishers,omitempty"` // publisher -> ed25519 pubkey
	Beacon           *RandomnessBeacon `json:"beacon,omitempty"`
}

func NewState() *State {
	return &State{
		Height:           0,
		Params:           DefaultParams(),
		NextGameID:       1,
		Games:            map[uint64]*Game{},
		ActiveGame:       map[string]uint64{},
		Scores:           map[string]*Score{},
		Accounts:         map[string]uint64{},
		AccountKeys:      map[string][]byte{},
		OraclePublishers: map[string][]byte{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalize()
	return &out, nil
}

func (s *State) normalize() {
	if s.Games == nil {
		s.Games = map[uint64]*Game{}
	}
	if s.ActiveGame == nil {
		s.ActiveGame = map[string]uint64{}
	}
	if s.Scores == nil {
		s.Scores = map[string]*Score{}
	}
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.OraclePublishers == nil {
		s.OraclePublishers = map[string][]byte{}
	}
	if s.NextGameID == 0 {
		s.NextGameID = 1
	}
	if s.Params == (Params{}) {
		s.Params = DefaultParams()
	}
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: encoding/json does NOT guarantee map key order,
	// so maps are normalized into sorted slices before hashing.
	type gameKV struct {
		ID   uint64 `json:"id"`
		Game *Game  `json:"game"`
	}
	type activeKV struct {
		Player string `json:"player"`
		GameID uint64 `json:"gameId"`
	}
	type scoreKV struct {
		Player string `json:"player"`
		Score  *Score `json:"score"`
	}
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type keyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}

	games := make([]gameKV, 0, len(s.Games))
	for id, g := range s.Games {
		games = append(games, gameKV{ID: id, Game: g})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	active := make([]activeKV, 0, len(s.ActiveGame))
	for p, id := range s.ActiveGame {
		active = append(active, activeKV{Player: p, GameID: id})
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Player < active[j].Player })

	scores := make([]scoreKV, 0, len(s.Scores))
	for p, sc := range s.Scores {
		scores = append(scores, scoreKV{Player: p, Score: sc})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Player < scores[j].Player })

	accounts := make([]accountKV, 0, len(s.Accounts))
	for a, b := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: a, Balance: b})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	keys := make([]keyKV, 0, len(s.AccountKeys))
	for a, k := range s.AccountKeys {
		keys = append(keys, keyKV{Addr: a, PubKey: k})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Addr < keys[j].Addr })

	pubs := make([]keyKV, 0, len(s.OraclePublishers))
	for a, k := range s.OraclePublishers {
		pubs = append(pubs, keyKV{Addr: a, PubKey: k})
	}
	sort.Slice(pubs, func(i, j int) bool { return pubs[i].Addr < pubs[j].Addr })

	normalized := struct {
		Height     int64             `json:"height"`
		Params     Params            `json:"params"`
		NextGameID uint64            `json:"nextGameId"`
		Games      []gameKV          `json:"games"`
		ActiveGame []activeKV        `json:"activeGame"`
		Scores     []scoreKV         `json:"scores"`
		Accounts   []accountKV       `json:"accounts"`
		Keys       []keyKV           `json:"accountKeys"`
		Publishers []keyKV           `json:"oraclePublishers"`
		Beacon     *RandomnessBeacon `json:"beacon,omitempty"`
	}{
		Height:     s.Height,
		Params:     s.Params,
		NextGameID: s.NextGameID,
		Games:      games,
		ActiveGame: active,
		Scores:     scores,
		Accounts:   accounts,
		Keys:       keys,
		Publishers: pubs,
		Beacon:     s.Beacon,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

// Transfer moves amount from one account to another. Both the sender's funds
// and the recipient's headroom are checked before either balance changes.
func (s *State) Transfer(from, to string, amount uint64) error {
	if s.Accounts[from] < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", s.Accounts[from], amount)
	}
	if s.Accounts[to] > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", s.Accounts[to], amount)
	}
	s.Accounts[from] -= amount
	s.Accounts[to] += amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Score book ----

// ScoreFor returns the player's score record, creating it if absent.
func (s *State) ScoreFor(player string) *Score {
	sc := s.Scores[player]
	if sc == nil {
		sc = &Score{}
		s.Scores[player] = sc
	}
	return sc
}
