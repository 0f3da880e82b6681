// Package oracle is the price-feed adapter: it parses and verifies the signed
// evidence payload a caller submits with a resolve transaction, and exposes
// fixed-point comparison helpers for scoring.
//
// Evidence is pull-based: callers fetch a signed update out of band and attach
// it; the engine never contacts a feed itself.
package oracle

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
)

const evidenceDomainV0 = "ppc/oracle/v0"

// Oracle/evidence failures. These are retryable: a resolve rejected with one
// of these leaves the game in the resolution phase.
var (
	ErrBadEvidence      = errorsmod.Register("oracle", 1, "malformed price evidence")
	ErrUnknownPublisher = errorsmod.Register("oracle", 2, "unknown oracle publisher")
	ErrBadSignature     = errorsmod.Register("oracle", 3, "invalid evidence signature")
	ErrStaleEvidence    = errorsmod.Register("oracle", 4, "stale price evidence")
	ErrBadQuote         = errorsmod.Register("oracle", 5, "invalid quote in evidence")
	ErrMissingAsset     = errorsmod.Register("oracle", 6, "evidence missing asset")
	ErrInsufficientFee  = errorsmod.Register("oracle", 7, "insufficient oracle update fee")
)

// AssetQuote is one asset's metrics at the close of the prediction window,
// paired with the same metrics at the window open ("prev"). Market cap and
// volume arrive as already-resolved inputs from the same update.
type AssetQuote struct {
	Asset string `json:"asset"`

	Price     Quote `json:"price"`
	PrevPrice Quote `json:"prevPrice"`

	MarketCap     Quote `json:"marketCap"`
	PrevMarketCap Quote `json:"prevMarketCap"`

	Volume     Quote `json:"volume"`
	PrevVolume Quote `json:"prevVolume"`
}

// PriceEvidence is the wire envelope. Quotes stays raw until the signature
// over the exact transmitted bytes has been checked.
type PriceEvidence struct {
	Publisher string          `json:"publisher"`
	IssuedAt  int64           `json:"issuedAt"`
	Fee       uint64          `json:"fee"`
	Quotes    json.RawMessage `json:"quotes"`
	Sig       []byte          `json:"sig"`

	parsed []AssetQuote
}

// QuoteFor returns the quote for an asset symbol, if covered.
func (e *PriceEvidence) QuoteFor(asset string) (AssetQuote, bool) {
	for _, q := range e.parsed {
		if q.Asset == asset {
			return q, true
		}
	}
	return AssetQuote{}, false
}

// SignBytes builds the domain-separated message a publisher signs:
// DOMAIN || 0x00 || publisher || 0x00 || issuedAt || fee || sha256(quotes).
func SignBytes(publisher string, issuedAt int64, fee uint64, quotesRaw []byte) []byte {
	sum := sha256.Sum256(quotesRaw)
	out := make([]byte, 0, len(evidenceDomainV0)+1+len(publisher)+1+16+sha256.Size)
	out = append(out, []byte(evidenceDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(publisher)...)
	out = append(out, 0)
	var n8 [8]byte
	binary.BigEndian.PutUint64(n8[:], uint64(issuedAt))
	out = append(out, n8[:]...)
	binary.BigEndian.PutUint64(n8[:], fee)
	out = append(out, n8[:]...)
	out = append(out, sum[:]...)
	return out
}

// Verify parses raw evidence and checks publisher registration, signature,
// and freshness. All prev metrics must be positive: they are the denominators
// of every relative comparison.
func Verify(raw []byte, publishers map[string][]byte, nowUnix int64, maxAgeSecs uint64) (*PriceEvidence, error) {
	var ev PriceEvidence
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, errorsmod.Wrap(ErrBadEvidence, err.Error())
	}
	if ev.Publisher == "" {
		return nil, errorsmod.Wrap(ErrBadEvidence, "missing publisher")
	}
	if len(ev.Quotes) == 0 {
		return nil, errorsmod.Wrap(ErrBadEvidence, "missing quotes")
	}

	pub, ok := publishers[ev.Publisher]
	if !ok || len(pub) != ed25519.PublicKeySize {
		return nil, errorsmod.Wrapf(ErrUnknownPublisher, "publisher %q", ev.Publisher)
	}
	if len(ev.Sig) != ed25519.SignatureSize {
		return nil, errorsmod.Wrapf(ErrBadSignature, "sig length %d", len(ev.Sig))
	}
	msg := SignBytes(ev.Publisher, ev.IssuedAt, ev.Fee, ev.Quotes)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, ev.Sig) {
		return nil, errorsmod.Wrap(ErrBadSignature, "ed25519 verification failed")
	}

	if ev.IssuedAt > nowUnix {
		return nil, errorsmod.Wrapf(ErrStaleEvidence, "issuedAt %d is in the future (now %d)", ev.IssuedAt, nowUnix)
	}
	if uint64(nowUnix-ev.IssuedAt) > maxAgeSecs {
		return nil, errorsmod.Wrapf(ErrStaleEvidence, "issuedAt %d, now %d, max age %ds", ev.IssuedAt, nowUnix, maxAgeSecs)
	}

	if err := json.Unmarshal(ev.Quotes, &ev.parsed); err != nil {
		return nil, errorsmod.Wrap(ErrBadEvidence, err.Error())
	}
	seen := map[string]bool{}
	for _, q := range ev.parsed {
		if q.Asset == "" {
			return nil, errorsmod.Wrap(ErrBadQuote, "missing asset symbol")
		}
		if seen[q.Asset] {
			return nil, errorsmod.Wrapf(ErrBadQuote, "duplicate asset %q", q.Asset)
		}
		seen[q.Asset] = true
		for _, m := range []Quote{q.Price, q.PrevPrice, q.MarketCap, q.PrevMarketCap, q.Volume, q.PrevVolume} {
			if !m.ExpoInRange() {
				return nil, errorsmod.Wrapf(ErrBadQuote, "asset %q: exponent %d outside [-%d,%d]", q.Asset, m.Expo, MaxQuoteExpo, MaxQuoteExpo)
			}
		}
		if !q.Price.Positive() || !q.PrevPrice.Positive() {
			return nil, errorsmod.Wrapf(ErrBadQuote, "asset %q: price metrics must be positive", q.Asset)
		}
		if !q.MarketCap.Positive() || !q.PrevMarketCap.Positive() {
			return nil, errorsmod.Wrapf(ErrBadQuote, "asset %q: market cap metrics must be positive", q.Asset)
		}
		if !q.Volume.Positive() || !q.PrevVolume.Positive() {
			return nil, errorsmod.Wrapf(ErrBadQuote, "asset %q: volume metrics must be positive", q.Asset)
		}
	}
	return &ev, nil
}
