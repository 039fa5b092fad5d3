// Package escrow is the call surface of the SLA escrow: it deploys
// agreements and runs stake, withdraw and validation operations against the
// store, the ledger and the SLI feeds, one agreement at a time.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/google/uuid"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/fund"
	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/metrics"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
	"SlaEscrow/internal/recorder"
	"SlaEscrow/internal/registry"
	"SlaEscrow/internal/store"
	"SlaEscrow/internal/validation"
)

// Feeds resolves SLI feeds by source name.
type Feeds interface {
	validation.FeedResolver
	Has(source string) bool
}

// Config holds the protocol parameters a Service runs with.
type Config struct {
	Governance             model.Governance
	Validation             validation.Config
	RequireFinalValidation bool
	RegistryCapacity       int
	// Protocol receives protocol fees and rewards of every agreement.
	Protocol model.Account
}

// Service orchestrates agreement lifecycles.
type Service struct {
	store    store.AgreementStore
	ledger   ledger.Ledger
	feeds    Feeds
	registry *registry.Registry
	cfg      Config

	accountant  *fund.Accountant
	coordinator *validation.Coordinator

	clock    period.Clock
	locker   Locker
	logger   log.Logger
	metrics  *metrics.Metrics
	recorder recorder.Recorder

	deployMu sync.Mutex
}

type Option func(s *Service)

func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRecorder(r recorder.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithClock(c period.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// New constructs a Service. Governance and precision are checked once here.
func New(agreements store.AgreementStore, l ledger.Ledger, feeds Feeds, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Governance.Validate(); err != nil {
		return nil, err
	}
	if cfg.Validation.Precision == 0 || cfg.Validation.Precision%100 != 0 {
		return nil, model.ErrInvalidPrecision.Wrapf("precision %d", cfg.Validation.Precision)
	}
	if cfg.Validation.Order == "" {
		cfg.Validation.Order = validation.OrderAny
	}
	if cfg.Protocol == "" {
		return nil, model.ErrInvalidAccount.Wrap("protocol account is required")
	}

	s := &Service{
		store:    agreements,
		ledger:   l,
		feeds:    feeds,
		registry: registry.New(cfg.RegistryCapacity),
		cfg:      cfg,
		clock:    period.SystemClock{},
		locker:   NewMemoryLocker(),
		logger:   log.NewNopLogger(),
		recorder: recorder.NewNoopRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "escrow")
	s.accountant = fund.NewAccountant(l, s.clock, cfg.RequireFinalValidation)
	s.coordinator = validation.NewCoordinator(l, feeds, s.clock, cfg.Validation)
	return s, nil
}

// Restore loads every stored agreement into the registry. Call once at
// startup before serving requests.
func (s *Service) Restore(ctx context.Context) error {
	ags, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list agreements: %w", err)
	}
	for _, ag := range ags {
		if err := s.registry.Insert(ag.ID); err != nil && !errors.Is(err, model.ErrAgreementAlreadyRegistered) {
			return err
		}
	}
	s.setAgreementsGauge()
	s.logger.Info("registry restored", "agreements", s.registry.Len(), "capacity", s.registry.Capacity())
	return nil
}

// DeployRequest describes a new agreement.
type DeployRequest struct {
	ID           uuid.UUID
	Slo          model.Slo
	Leverage     math.LegacyDec
	Mint         model.Token
	Schedule     model.Schedule
	Deployer     model.Account
	Validator    model.Account
	OracleSource string
}

// Deploy validates req, funds the agreement's fee vault from the deployer
// and registers the agreement. A zero ID is replaced with a random one.
func (s *Service) Deploy(ctx context.Context, req DeployRequest) (ag *model.Agreement, err error) {
	defer s.observe("deploy", time.Now(), &err)

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Validator == "" {
		req.Validator = req.Deployer
	}
	now := s.clock.Now()
	if err := s.checkDeploy(req, now); err != nil {
		return nil, err
	}
	deposit, err := calculator.MulDivFloor(s.cfg.Governance.DepositByPeriod, uint64(req.Schedule.Count), 1)
	if err != nil {
		return nil, err
	}

	ag = &model.Agreement{
		ID:           req.ID,
		Slo:          req.Slo,
		Leverage:     req.Leverage,
		Mint:         req.Mint,
		Schedule:     req.Schedule,
		Deployer:     req.Deployer,
		Validator:    req.Validator,
		Protocol:     s.cfg.Protocol,
		OracleSource: req.OracleSource,
		Statuses:     model.NewStatusRegistry(req.Schedule.Count),
		Lockups:      make(map[string]model.Lockup),
		CreatedAt:    now.UTC(),
	}

	s.deployMu.Lock()
	defer s.deployMu.Unlock()

	if s.registry.Contains(ag.ID) {
		return nil, model.ErrAgreementAlreadyRegistered.Wrap(ag.ID.String())
	}
	if c := s.registry.Capacity(); c > 0 && s.registry.Len() >= c {
		return nil, model.ErrRegistryFull.Wrapf("capacity %d", c)
	}

	vault := ledger.VaultOf(ag.ID)
	applied, err := ledger.Execute(ctx, s.ledger, []ledger.Op{
		ledger.TransferOp(ag.Mint, ag.Deployer, vault.Fees(), deposit),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, ag); err != nil {
		s.revert(ctx, ag.ID, applied)
		return nil, err
	}
	if err := s.registry.Insert(ag.ID); err != nil {
		s.logger.Error("registry insert after create", "agreement", ag.ID, "err", err)
	}
	s.setAgreementsGauge()

	s.logger.Info("agreement deployed",
		"agreement", ag.ID,
		"deployer", ag.Deployer,
		"periods", ag.Schedule.Count,
		"length", ag.Schedule.Length.String(),
		"source", ag.OracleSource,
		"deposit", deposit,
	)
	if err := s.recorder.RecordDeploy(&recorder.DeployEvent{
		AgreementID:  ag.ID,
		Deployer:     ag.Deployer,
		Slo:          ag.Slo,
		Leverage:     ag.Leverage.String(),
		Periods:      ag.Schedule.Count,
		OracleSource: ag.OracleSource,
		FeeDeposit:   deposit,
		At:           now,
	}); err != nil {
		s.logger.Warn("record deploy failed", "agreement", ag.ID, "err", err)
	}
	return ag.Clone(), nil
}

func (s *Service) checkDeploy(req DeployRequest, now time.Time) error {
	gov := s.cfg.Governance
	if req.Deployer == "" {
		return model.ErrInvalidAccount.Wrap("deployer is required")
	}
	if req.Mint == "" {
		return model.ErrInvalidAccount.Wrap("collateral mint is required")
	}
	if req.Slo.Value.IsNil() || !req.Slo.Comparator.Valid() {
		return model.ErrInvalidSlo.Wrapf("value %v comparator %q", req.Slo.Value, req.Slo.Comparator)
	}
	if req.Leverage.IsNil() || !req.Leverage.IsPositive() {
		return model.ErrInvalidLeverage.Wrap("leverage must be positive")
	}
	if req.Leverage.GT(gov.MaxLeverage) {
		return model.ErrInvalidLeverage.Wrapf("leverage %s exceeds max %s", req.Leverage, gov.MaxLeverage)
	}
	if req.Schedule.Count == 0 {
		return model.ErrZeroNumberOfPeriods
	}
	if gov.MaxPeriods > 0 && req.Schedule.Count > gov.MaxPeriods {
		return model.ErrMaxNumberOfPeriods.Wrapf("%d > %d", req.Schedule.Count, gov.MaxPeriods)
	}
	if err := period.ValidateLength(req.Schedule.Length); err != nil {
		return err
	}
	if period.Seconds(req.Schedule.Length) < gov.MinPeriodLength {
		return model.ErrInvalidPeriodLength.Wrapf("%s is shorter than %ds", req.Schedule.Length, gov.MinPeriodLength)
	}
	if req.Schedule.Start-now.Unix() < gov.MinStartDelay {
		return model.ErrInvalidPeriodStart.Wrapf("start %d is less than %ds after %d", req.Schedule.Start, gov.MinStartDelay, now.Unix())
	}
	if _, err := period.End(req.Schedule); err != nil {
		return err
	}
	if !s.feeds.Has(req.OracleSource) {
		return model.ErrInvalidFeedSource.Wrapf("unknown source %q", req.OracleSource)
	}
	return nil
}

// Stake deposits amount on side for staker.
func (s *Service) Stake(ctx context.Context, id uuid.UUID, staker model.Account, side model.Side, amount uint64) (receipt *fund.Receipt, err error) {
	defer s.observe("stake", time.Now(), &err)
	if err := checkStaker(staker, side); err != nil {
		return nil, err
	}

	staged, err := s.withAgreement(ctx, id, func(ag *model.Agreement) (*model.Agreement, []ledger.Op, error) {
		next, r, err := s.accountant.Stake(ctx, ag, staker, side, amount)
		if err != nil {
			return nil, nil, err
		}
		receipt = r
		return next, r.Ops, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stake",
		"agreement", id,
		"staker", staker,
		"side", side,
		"amount", amount,
		"shares", receipt.Shares,
		"phase", receipt.Phase,
	)
	if s.metrics != nil {
		s.metrics.Staked.WithLabelValues(string(side)).Add(float64(amount))
	}
	if err := s.recorder.RecordStake(&recorder.StakeEvent{
		AgreementID: id,
		Staker:      staker,
		Side:        side,
		Phase:       receipt.Phase,
		Amount:      amount,
		Shares:      receipt.Shares,
		PoolAfter:   staged.Pool(side),
		SharesAfter: staged.Shares(side),
		At:          s.clock.Now(),
	}); err != nil {
		s.logger.Warn("record stake failed", "agreement", id, "err", err)
	}
	return receipt, nil
}

// Withdraw burns burn claim tokens of staker on side and pays out what they
// are worth.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, staker model.Account, side model.Side, burn uint64) (receipt *fund.Receipt, err error) {
	defer s.observe("withdraw", time.Now(), &err)
	if err := checkStaker(staker, side); err != nil {
		return nil, err
	}

	staged, err := s.withAgreement(ctx, id, func(ag *model.Agreement) (*model.Agreement, []ledger.Op, error) {
		next, r, err := s.accountant.Withdraw(ctx, ag, staker, side, burn, s.cfg.Governance)
		if err != nil {
			return nil, nil, err
		}
		receipt = r
		return next, r.Ops, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdraw",
		"agreement", id,
		"staker", staker,
		"side", side,
		"burned", burn,
		"owed", receipt.Amount,
		"paid", receipt.StakerAmount,
	)
	if s.metrics != nil {
		s.metrics.Withdrawn.WithLabelValues(string(side)).Add(float64(receipt.Amount))
	}
	if err := s.recorder.RecordWithdraw(&recorder.WithdrawEvent{
		AgreementID:  id,
		Staker:       staker,
		Side:         side,
		Phase:        receipt.Phase,
		Burned:       burn,
		Owed:         receipt.Amount,
		StakerAmount: receipt.StakerAmount,
		DeployerFee:  receipt.DeployerFee,
		ProtocolFee:  receipt.ProtocolFee,
		PoolAfter:    staged.Pool(side),
		At:           s.clock.Now(),
	}); err != nil {
		s.logger.Warn("record withdraw failed", "agreement", id, "err", err)
	}
	return receipt, nil
}

// ValidatePeriod settles periodID of agreement id.
func (s *Service) ValidatePeriod(ctx context.Context, id uuid.UUID, periodID uint32) (res *validation.Result, err error) {
	defer s.observe("validate", time.Now(), &err)

	staged, err := s.withAgreement(ctx, id, func(ag *model.Agreement) (*model.Agreement, []ledger.Op, error) {
		next, r, err := s.coordinator.ValidatePeriod(ctx, ag, periodID, s.cfg.Governance)
		if err != nil {
			return nil, nil, err
		}
		res = r
		return next, r.Ops, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("period validated",
		"agreement", id,
		"period", periodID,
		"status", res.Status.Kind,
		"sli", res.Status.Value.String(),
		"deviation", res.Deviation.String(),
		"reward", res.Reward,
		"from", res.From,
	)
	if s.metrics != nil {
		s.metrics.Validations.WithLabelValues(string(res.Status.Kind)).Inc()
		s.metrics.RewardMoved.WithLabelValues(string(res.From)).Add(float64(res.Reward))
	}
	if err := s.recorder.RecordValidation(&recorder.ValidationEvent{
		AgreementID:   id,
		PeriodID:      periodID,
		Status:        res.Status.Kind,
		SLI:           res.Status.Value.String(),
		Deviation:     res.Deviation.String(),
		Reward:        res.Reward,
		From:          res.From,
		ProviderAfter: staged.ProviderPool,
		UserAfter:     staged.UserPool,
		At:            s.clock.Now(),
	}); err != nil {
		s.logger.Warn("record validation failed", "agreement", id, "err", err)
	}
	return res, nil
}

// ValidateDue validates every elapsed, unverified period of every
// agreement. Under the sequential order an agreement is skipped after its
// first failure. Failures are joined into the returned error.
func (s *Service) ValidateDue(ctx context.Context) ([]*validation.Result, error) {
	ags, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	now := s.clock.Now()

	var results []*validation.Result
	var errs []error
	for _, ag := range ags {
		for _, id := range period.Elapsed(ag.Schedule, now) {
			if st, err := ag.Statuses.Get(id); err != nil || st.Verified() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return results, errors.Join(append(errs, err)...)
			}
			res, err := s.ValidatePeriod(ctx, ag.ID, id)
			if err != nil {
				s.logger.Error("validate due period", "agreement", ag.ID, "period", id, "err", err)
				errs = append(errs, fmt.Errorf("agreement %s period %d: %w", ag.ID, id, err))
				if s.cfg.Validation.Order == validation.OrderSequential {
					break
				}
				continue
			}
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

// Agreement returns the current state of agreement id.
func (s *Service) Agreement(ctx context.Context, id uuid.UUID) (*model.Agreement, error) {
	return s.store.Get(ctx, id)
}

// List returns every agreement, oldest first.
func (s *Service) List(ctx context.Context) ([]*model.Agreement, error) {
	return s.store.List(ctx)
}

// Phase returns the lifecycle phase of ag now.
func (s *Service) Phase(ag *model.Agreement) model.Phase {
	return period.PhaseAt(ag.Schedule, s.clock.Now())
}

// withAgreement runs fn on the current state of id under the agreement
// lock and commits its result. If the commit fails the ledger ops fn
// applied are reverted.
func (s *Service) withAgreement(ctx context.Context, id uuid.UUID, fn func(*model.Agreement) (*model.Agreement, []ledger.Op, error)) (*model.Agreement, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ag, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	staged, applied, err := fn(ag)
	if err != nil {
		return nil, err
	}
	staged.Version = ag.Version
	if err := s.store.Save(ctx, staged); err != nil {
		s.revert(ctx, id, applied)
		return nil, err
	}
	return staged, nil
}

func (s *Service) revert(ctx context.Context, id uuid.UUID, applied []ledger.Op) {
	if err := ledger.Revert(context.WithoutCancel(ctx), s.ledger, applied); err != nil {
		s.logger.Error("ledger revert failed", "agreement", id, "ops", len(applied), "err", err)
	}
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	code := ""
	if *err != nil {
		codespace, c, _ := errorsmod.ABCIInfo(*err, false)
		code = fmt.Sprintf("%s:%d", codespace, c)
	}
	s.metrics.Observe(op, start, code)
}

func (s *Service) setAgreementsGauge() {
	if s.metrics != nil {
		s.metrics.Agreements.Set(float64(s.registry.Len()))
	}
}

func checkStaker(staker model.Account, side model.Side) error {
	if staker == "" {
		return model.ErrInvalidAccount.Wrap("staker is required")
	}
	if !side.Valid() {
		return model.ErrInvalidSide.Wrapf("%q", side)
	}
	return nil
}
