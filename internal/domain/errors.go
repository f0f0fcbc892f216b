package domain

import "errors"

var (
	// ErrUnauthorized: settlement caller/initiator mismatch, or an
	// operator-only action invoked by someone else. Fatal to the session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSwapFailed: an encoded trade instruction did not succeed. The whole
	// session reverts.
	ErrSwapFailed = errors.New("swap failed")

	// ErrInsufficientRepayment: post-trade balance cannot cover loan plus
	// premium. The whole session reverts.
	ErrInsufficientRepayment = errors.New("insufficient repayment")

	// ErrInsufficientCapital: the operator cannot fund the settlement
	// contract's working capital. Fatal to orchestrator startup.
	ErrInsufficientCapital = errors.New("insufficient working capital")

	// ErrBadInstructionBlob: the instruction blob failed to decode.
	ErrBadInstructionBlob = errors.New("malformed instruction blob")

	// ErrInFlight: a loan request was issued while another settlement
	// session is still unresolved.
	ErrInFlight = errors.New("loan already in flight")

	ErrNotFound = errors.New("not found")
)
