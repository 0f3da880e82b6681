package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth (required for player-bound txs, absent on permissionless
	// advance txs):
	// - Nonce: included in the signed message for replay protection.
	// - Signer: logical signer id (the player address).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Oracle / beacon ----

type OracleRegisterPublisherTx struct {
	Publisher string `json:"publisher"`
	PubKey    []byte `json:"pubKey"` // base64 (32 bytes)
}

type BeaconSubmitTx struct {
	Publisher string `json:"publisher"`
	Round     uint64 `json:"round"`
	Value     []byte `json:"value"` // base64 (32 bytes)
}

// ---- Game ----

type GameCreateTx struct {
	Creator string `json:"creator"`

	// Optional per-game duration overrides; engine defaults apply when zero.
	LobbySecs      uint64 `json:"lobbySecs,omitempty"`
	ChoiceSecs     uint64 `json:"choiceSecs,omitempty"`
	ResolutionSecs uint64 `json:"resolutionSecs,omitempty"`
}

type GameJoinTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
}

type GameStartTx struct {
	Caller           string `json:"caller"`
	GameID           uint64 `json:"gameId"`
	SecureRandomness bool   `json:"secureRandomness,omitempty"`
}

type GameCommitTx struct {
	Player  string   `json:"player"`
	GameID  uint64   `json:"gameId"`
	CardIDs []uint32 `json:"cardIds"`
}

type GameAdvanceTx struct {
	GameID uint64 `json:"gameId"`
}

type GameResolveTx struct {
	Caller string `json:"caller"`
	GameID uint64 `json:"gameId"`

	// Evidence is opaque here; the oracle adapter parses and verifies it.
	Evidence json.RawMessage `json:"evidence"`
}

type GameEndTx struct {
	GameID uint64 `json:"gameId"`
}
