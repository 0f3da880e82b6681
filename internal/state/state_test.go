package state

import (
	"bytes"
	"testing"
)

func TestAppHash_StableAcrossMapOrder(t *testing.T) {
	s1 := NewState()
	s1.Height = 7
	s1.Accounts["bob"] = 2
	s1.Accounts["alice"] = 1
	s1.Scores["bob"] = &Score{TotalPoints: 5}
	s1.Scores["alice"] = &Score{TotalPoints: 9}
	s1.NextGameID = 42

	s2 := NewState()
	s2.Height = 7
	s2.Accounts["alice"] = 1
	s2.Accounts["bob"] = 2
	s2.Scores["alice"] = &Score{TotalPoints: 9}
	s2.Scores["bob"] = &Score{TotalPoints: 5}
	s2.NextGameID = 42

	h1 := s1.AppHash()
	h2 := s2.AppHash()
	if !bytes.Equal(h1, h2) {
		t.Fatalf("expected stable app hash; h1=%x h2=%x", h1, h2)
	}

	// Any semantic change should change the hash.
	s2.Accounts["alice"] = 9
	h3 := s2.AppHash()
	if bytes.Equal(h1, h3) {
		t.Fatalf("expected hash to change after state mutation")
	}
}

func TestAppHash_CoversGameFields(t *testing.T) {
	mk := func() *State {
		s := NewState()
		s.Games[1] = &Game{
			ID:            1,
			Phase:         PhaseChoice,
			LobbyDeadline: 100,
			Players:       []string{"alice"},
			Cards:         []uint32{1, 2, 3},
			Choices:       map[string]*Choice{},
		}
		return s
	}

	base := mk().AppHash()

	changed := mk()
	changed.Games[1].Phase = PhaseResolution
	if bytes.Equal(base, changed.AppHash()) {
		t.Fatalf("phase change must change hash")
	}

	changed = mk()
	changed.Games[1].Choices["alice"] = &Choice{CardIDs: []uint32{1, 2, 3}, Committed: true}
	if bytes.Equal(base, changed.AppHash()) {
		t.Fatalf("choice change must change hash")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	home := t.TempDir()

	s := NewState()
	s.Height = 3
	s.Accounts["alice"] = 77
	s.AccountKeys["alice"] = []byte("0123456789abcdef0123456789abcdef")
	s.Games[1] = &Game{ID: 1, Phase: PhaseLobby, LobbyDeadline: 100, Players: []string{"alice"}}
	s.ActiveGame["alice"] = 1
	s.Beacon = &RandomnessBeacon{Round: 9, Value: bytes.Repeat([]byte{1}, 32), UpdatedAt: 50, Publisher: "relay"}

	if err := s.Save(home); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(home)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !bytes.Equal(s.AppHash(), loaded.AppHash()) {
		t.Fatalf("hash mismatch after round trip")
	}
	if loaded.Games[1] == nil || loaded.Games[1].LobbyDeadline != 100 {
		t.Fatalf("game not restored: %+v", loaded.Games[1])
	}
	if loaded.Beacon == nil || loaded.Beacon.Round != 9 {
		t.Fatalf("beacon not restored: %+v", loaded.Beacon)
	}
}

func TestLoad_MissingFileYieldsFreshState(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.NextGameID != 1 || s.Games == nil || s.Params.SelectionSize == 0 {
		t.Fatalf("fresh state not normalized: %+v", s)
	}
}

func TestClone_IsolatesMutations(t *testing.T) {
	s := NewState()
	s.Accounts["alice"] = 10
	s.Games[1] = &Game{ID: 1, Phase: PhaseLobby, Players: []string{"alice"}}

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	c.Accounts["alice"] = 99
	c.Games[1].Phase = PhaseEnded

	if s.Accounts["alice"] != 10 {
		t.Fatalf("clone mutated original balance")
	}
	if s.Games[1].Phase != PhaseLobby {
		t.Fatalf("clone mutated original game")
	}
}

func TestBank_CreditDebit(t *testing.T) {
	s := NewState()
	if err := s.Credit("alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := s.Debit("alice", 30); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := s.Balance("alice"); got != 70 {
		t.Fatalf("balance %d", got)
	}
	if err := s.Debit("alice", 71); err == nil {
		t.Fatalf("expected insufficient funds")
	}
	if err := s.Credit("alice", ^uint64(0)); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestTransfer_AtomicOnFailure(t *testing.T) {
	s := NewState()
	s.Accounts["alice"] = 100

	if err := s.Transfer("alice", "bob", 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if s.Balance("alice") != 60 || s.Balance("bob") != 40 {
		t.Fatalf("unexpected balances: %d/%d", s.Balance("alice"), s.Balance("bob"))
	}

	// Insufficient funds: nothing moves.
	if err := s.Transfer("alice", "bob", 61); err == nil {
		t.Fatalf("expected insufficient funds")
	}
	if s.Balance("alice") != 60 || s.Balance("bob") != 40 {
		t.Fatalf("failed transfer moved funds: %d/%d", s.Balance("alice"), s.Balance("bob"))
	}

	// Recipient at ceiling: sender keeps the funds instead of burning them.
	s.Accounts["vault"] = ^uint64(0)
	if err := s.Transfer("alice", "vault", 1); err == nil {
		t.Fatalf("expected overflow error")
	}
	if s.Balance("alice") != 60 || s.Balance("vault") != ^uint64(0) {
		t.Fatalf("overflowing transfer mutated balances")
	}
}

func TestGame_Lookups(t *testing.T) {
	g := &Game{Players: []string{"alice", "bob"}, Cards: []uint32{10, 20}}
	if !g.HasPlayer("alice") || g.HasPlayer("carol") {
		t.Fatalf("HasPlayer wrong")
	}
	if !g.HasCard(20) || g.HasCard(30) {
		t.Fatalf("HasCard wrong")
	}
}
