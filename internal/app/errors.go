package app

import errorsmod "cosmossdk.io/errors"

// Engine sentinel errors. All of these are precondition/user errors: the tx is
// rejected synchronously and no state is mutated. Oracle/evidence failures
// live in the oracle codespace so callers can tell the two classes apart.
var (
	ErrInvalidRequest  = errorsmod.Register("game", 1, "invalid request")
	ErrGameNotFound    = errorsmod.Register("game", 2, "game not found")
	ErrWrongPhase      = errorsmod.Register("game", 3, "wrong game phase")
	ErrTooEarly        = errorsmod.Register("game", 4, "deadline not reached")
	ErrNotParticipant  = errorsmod.Register("game", 5, "not a participant")
	ErrAlreadyJoined   = errorsmod.Register("game", 6, "already joined this game")
	ErrAlreadyActive   = errorsmod.Register("game", 7, "already in an active game")
	ErrAlreadyCommitted = errorsmod.Register("game", 8, "choices already committed")
	ErrBadSelection    = errorsmod.Register("game", 9, "invalid card selection")
	ErrRandomness      = errorsmod.Register("game", 10, "randomness unavailable")
	ErrUnauthorized    = errorsmod.Register("game", 11, "unauthorized")
)
