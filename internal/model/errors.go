package model

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every escrow error code.
const Codespace = "escrow"

// Lifecycle and validation misuse.
var (
	ErrInvalidPeriodId           = errorsmod.Register(Codespace, 2, "invalid period id")
	ErrAlreadyVerifiedPeriod     = errorsmod.Register(Codespace, 3, "period already verified")
	ErrPeriodNotElapsed          = errorsmod.Register(Codespace, 4, "period has not elapsed")
	ErrPreviousPeriodNotVerified = errorsmod.Register(Codespace, 5, "previous period not verified")
	ErrInvalidStatusTransition   = errorsmod.Register(Codespace, 6, "invalid status transition")
)

// Configuration.
var (
	ErrInvalidPrecision             = errorsmod.Register(Codespace, 10, "precision must be a positive multiple of 100")
	ErrNonValidGovernanceParameters = errorsmod.Register(Codespace, 11, "non valid governance parameters")
	ErrInvalidPeriodStart           = errorsmod.Register(Codespace, 12, "period start is too close")
	ErrInvalidPeriodLength          = errorsmod.Register(Codespace, 13, "period length is too short")
	ErrZeroNumberOfPeriods          = errorsmod.Register(Codespace, 14, "number of periods cannot be zero")
	ErrMaxNumberOfPeriods           = errorsmod.Register(Codespace, 15, "number of periods exceeds maximum")
	ErrInvalidSlo                   = errorsmod.Register(Codespace, 16, "invalid slo")
	ErrInvalidLeverage              = errorsmod.Register(Codespace, 17, "invalid leverage")
	ErrInvalidAccount               = errorsmod.Register(Codespace, 18, "invalid account")
	ErrInvalidSide                  = errorsmod.Register(Codespace, 19, "invalid side")
)

// Numeric faults.
var (
	ErrArithmeticOverflow       = errorsmod.Register(Codespace, 20, "arithmetic overflow")
	ErrDivisionByZero           = errorsmod.Register(Codespace, 21, "division by zero")
	ErrDecimalConversionFailure = errorsmod.Register(Codespace, 22, "decimal conversion failure")
)

// Liquidity and lockup violations.
var (
	ErrInsufficientCollateral         = errorsmod.Register(Codespace, 30, "insufficient collateral")
	ErrNoAvailableTokensForWithdrawal = errorsmod.Register(Codespace, 31, "no available tokens for withdrawal")
	ErrWithdrawalIsZero               = errorsmod.Register(Codespace, 32, "withdrawal is zero")
	ErrStakeIsZero                    = errorsmod.Register(Codespace, 33, "stake is zero")
)

// Lifecycle violations.
var (
	ErrCannotStakeAfterSlaEnded = errorsmod.Register(Codespace, 40, "cannot stake after sla ended")
	ErrCannotStakeAfterEnd      = errorsmod.Register(Codespace, 41, "cannot record stake after end")
	ErrSlaNotStarted            = errorsmod.Register(Codespace, 42, "sla not started")
	ErrUnverifiedPeriods        = errorsmod.Register(Codespace, 43, "periods pending verification")
)

// External data faults.
var (
	ErrStaleFeed                  = errorsmod.Register(Codespace, 50, "stale feed")
	ErrConfidenceIntervalExceeded = errorsmod.Register(Codespace, 51, "confidence interval exceeded")
	ErrInvalidFeedSource          = errorsmod.Register(Codespace, 52, "invalid feed source")
	ErrLedgerFailure              = errorsmod.Register(Codespace, 53, "ledger operation failed")
)

// Registry and persistence.
var (
	ErrAgreementNotFound          = errorsmod.Register(Codespace, 60, "agreement not found")
	ErrAgreementAlreadyRegistered = errorsmod.Register(Codespace, 61, "agreement already registered")
	ErrRegistryFull               = errorsmod.Register(Codespace, 62, "agreement registry is full")
	ErrAgreementBusy              = errorsmod.Register(Codespace, 63, "agreement is busy")
	ErrConcurrentModification     = errorsmod.Register(Codespace, 64, "concurrent modification")
)
