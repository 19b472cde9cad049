package domain

import "errors"

// Expected, locally recoverable outcomes. The matching loop keeps running
// after any one order is rejected; none of these ever surfaces as a panic.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrFOKUnsatisfiable   = errors.New("fill-or-kill order cannot be fully satisfied")
	ErrInvalidOrder       = errors.New("invalid order parameters")
)

// Failure reasons recorded on underfilled market/FOK executions.
const (
	FailureSlippageBand          = "slippage band exceeded"
	FailureInsufficientFunds     = "aggressor funds exhausted"
	FailureInsufficientShares    = "aggressor shares exhausted"
	FailureInsufficientLiquidity = "insufficient opposing liquidity"
)
