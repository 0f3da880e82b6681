package app

import (
	"crypto/ed25519"
	"crypto/sha256"

	errorsmod "cosmossdk.io/errors"

	"pricepicks/chain/internal/codec"
	"pricepicks/chain/internal/state"
)

const txAuthDomainV0 = "ppc/tx/v0"

func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return errorsmod.Wrap(ErrUnauthorized, "missing tx.nonce")
	}
	if env.Signer == "" {
		return errorsmod.Wrap(ErrUnauthorized, "missing tx.signer")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return errorsmod.Wrapf(ErrUnauthorized, "invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// requireAccountAuth checks that env was signed by the registered key of
// account. Player-bound txs (create/join/commit, bank sends) go through here;
// permissionless advance txs do not.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if account == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrUnauthorized, "account %q missing pubKey (auth/register_account required)", account)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	return nil
}

// requireSelfKeyAuth checks a registration tx signed with the key being
// registered (accounts and oracle publishers bootstrap the same way).
func requireSelfKeyAuth(env codec.TxEnvelope, subject string, pubKey []byte) error {
	if subject == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing subject")
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrInvalidRequest, "pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != subject {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, subject)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pubKey), msg, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	return nil
}

// requirePublisherAuth checks env against a registered oracle publisher key.
func requirePublisherAuth(st *state.State, env codec.TxEnvelope, publisher string) error {
	if publisher == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing publisher")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != publisher {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, publisher)
	}
	pub := st.OraclePublishers[publisher]
	if len(pub) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrUnauthorized, "publisher %q not registered", publisher)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	return nil
}
