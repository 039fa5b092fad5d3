package recorder

import (
	"time"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

// DeployEvent records a new agreement.
type DeployEvent struct {
	AgreementID  uuid.UUID
	Deployer     model.Account
	Slo          model.Slo
	Leverage     string
	Periods      uint32
	OracleSource string
	FeeDeposit   uint64
	At           time.Time
}

// StakeEvent records a deposit on one side.
type StakeEvent struct {
	AgreementID uuid.UUID
	Staker      model.Account
	Side        model.Side
	Phase       string
	Amount      uint64
	Shares      uint64
	PoolAfter   uint64
	SharesAfter uint64
	At          time.Time
}

// WithdrawEvent records a redemption on one side.
type WithdrawEvent struct {
	AgreementID  uuid.UUID
	Staker       model.Account
	Side         model.Side
	Phase        string
	Burned       uint64
	Owed         uint64
	StakerAmount uint64
	DeployerFee  uint64
	ProtocolFee  uint64
	PoolAfter    uint64
	At           time.Time
}

// ValidationEvent records a settled period.
type ValidationEvent struct {
	AgreementID   uuid.UUID
	PeriodID      uint32
	Status        model.StatusKind
	SLI           string
	Deviation     string
	Reward        uint64
	From          model.Side
	ProviderAfter uint64
	UserAfter     uint64
	At            time.Time
}

// Recorder persists agreement history for analysis.
type Recorder interface {
	RecordDeploy(evt *DeployEvent) error
	RecordStake(evt *StakeEvent) error
	RecordWithdraw(evt *WithdrawEvent) error
	RecordValidation(evt *ValidationEvent) error
	Close() error
}
