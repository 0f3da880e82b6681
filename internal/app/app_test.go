package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func txBytes(t *testing.T, typ string, value any) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{
		"type":  typ,
		"value": value,
	})
}

var testNonce atomic.Uint64

// testEd25519Key derives a stable keypair per logical id so tests never
// juggle key material.
func testEd25519Key(id string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("test-key/" + id))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

func txBytesSigned(t *testing.T, typ string, value any, signer string) []byte {
	t.Helper()
	valueRaw := mustMarshal(t, value)
	nonce := fmt.Sprintf("n%d", testNonce.Add(1))
	_, priv := testEd25519Key(signer)
	sig := ed25519.Sign(priv, txAuthSignBytesV0(typ, valueRaw, nonce, signer))
	return mustMarshal(t, map[string]any{
		"type":   typ,
		"value":  json.RawMessage(valueRaw),
		"nonce":  nonce,
		"signer": signer,
		"sig":    sig,
	})
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

func newTestApp(t *testing.T) *PPCApp {
	t.Helper()
	a, err := New(t.TempDir(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != 0 {
		t.Fatalf("expected ok, got codespace=%q code=%d log=%q", res.Codespace, res.Code, res.Log)
	}
	return res
}

func mustFail(t *testing.T, res *abci.ExecTxResult, codespace string) *abci.ExecTxResult {
	t.Helper()
	if res.Code == 0 {
		t.Fatalf("expected rejection, got ok")
	}
	if res.Codespace != codespace {
		t.Fatalf("expected codespace %q, got %q (code=%d log=%q)", codespace, res.Codespace, res.Code, res.Log)
	}
	return res
}

func registerTestAccount(t *testing.T, a *PPCApp, height int64, id string) {
	t.Helper()
	pub, _ := testEd25519Key(id)
	mustOk(t, a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": id,
		"pubKey":  []byte(pub),
	}, id), height, 0))
}

func mintTestTokens(t *testing.T, a *PPCApp, height int64, id string, amount uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytes(t, "bank/mint", map[string]any{"to": id, "amount": amount}), height, 0))
}

func TestBankMintAndSend(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 1000)
	registerTestAccount(t, a, height, "alice")

	if got := a.st.Balance("alice"); got != 1000 {
		t.Fatalf("expected alice=1000, got %d", got)
	}

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(300),
	}, "alice"), height, 0))

	if got := a.st.Balance("alice"); got != 700 {
		t.Fatalf("expected alice=700, got %d", got)
	}
	if got := a.st.Balance("bob"); got != 300 {
		t.Fatalf("expected bob=300, got %d", got)
	}

	// Overdraw rejected, balances unchanged.
	res := a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(5000),
	}, "alice"), height, 0)
	mustFail(t, res, "game")
	if a.st.Balance("alice") != 700 || a.st.Balance("bob") != 300 {
		t.Fatalf("balances changed on failed send")
	}
}

func TestBankSend_RequiresSignature(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")

	res := a.deliverTx(txBytes(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(10),
	}), height, 0)
	mustFail(t, res, "game")

	// Signed by the wrong key.
	res = a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(10),
	}, "mallory"), height, 0)
	mustFail(t, res, "game")
}

func TestRegisterAccount_RejectsDuplicate(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")

	pub, _ := testEd25519Key("alice")
	res := a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": "alice",
		"pubKey":  []byte(pub),
	}, "alice"), height, 0)
	mustFail(t, res, "game")
}

func TestUnknownTxType(t *testing.T) {
	a := newTestApp(t)
	res := a.deliverTx(txBytes(t, "nope/nope", map[string]any{}), 1, 0)
	mustFail(t, res, "game")
}

func TestQueryPaths(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	mustOk(t, a.deliverTx(txBytesSigned(t, "game/create", map[string]any{
		"creator": "alice",
	}, "alice"), height, 1000))

	res, err := a.Query(nil, &abci.QueryRequest{Path: "/games"})
	if err != nil || res.Code != 0 {
		t.Fatalf("query /games: err=%v code=%d", err, res.Code)
	}
	var ids []uint64
	if err := json.Unmarshal(res.Value, &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	res, _ = a.Query(nil, &abci.QueryRequest{Path: "/game/1"})
	if res.Code != 0 {
		t.Fatalf("query /game/1 failed: %s", res.Log)
	}
	res, _ = a.Query(nil, &abci.QueryRequest{Path: "/game/1/players"})
	if res.Code != 0 {
		t.Fatalf("query /game/1/players failed: %s", res.Log)
	}
	var players []string
	if err := json.Unmarshal(res.Value, &players); err != nil {
		t.Fatalf("unmarshal players: %v", err)
	}
	if len(players) != 1 || players[0] != "alice" {
		t.Fatalf("unexpected players: %v", players)
	}

	res, _ = a.Query(nil, &abci.QueryRequest{Path: "/params"})
	if res.Code != 0 {
		t.Fatalf("query /params failed: %s", res.Log)
	}
	res, _ = a.Query(nil, &abci.QueryRequest{Path: "/game/99"})
	if res.Code == 0 {
		t.Fatalf("expected not found for /game/99")
	}
	res, _ = a.Query(nil, &abci.QueryRequest{Path: "/bogus"})
	if res.Code == 0 {
		t.Fatalf("expected unknown path error")
	}
}
