package game

import "errors"

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameEnded       = errors.New("game has already ended")
	ErrWrongRound      = errors.New("game is not in this round")
	ErrAlreadyAnswered = errors.New("round has already been answered")
	ErrNotOwner        = errors.New("game does not belong to this user")
	ErrTypeMismatch    = errors.New("wrong game type for this endpoint")

	// Integrity faults. These indicate server-side bugs or misconfiguration,
	// never a bad request.
	ErrCatalogTooSmall = errors.New("card catalog is smaller than a starting hand")
	ErrNoCardsLeft     = errors.New("no cards left to draw")
	ErrMissingRecord   = errors.New("no record exists for the current round")
)
