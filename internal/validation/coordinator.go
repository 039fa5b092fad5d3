// Package validation settles elapsed periods of an agreement against its
// oracle feed.
package validation

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/collector"
	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
)

// Order is the policy on which elapsed periods may be validated.
type Order string

const (
	// OrderAny allows validating any elapsed period.
	OrderAny Order = "any"
	// OrderSequential requires every earlier period to be verified first.
	OrderSequential Order = "sequential"
)

// ParseOrder maps a textual policy to an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderAny, "":
		return OrderAny, nil
	case OrderSequential:
		return OrderSequential, nil
	default:
		return "", fmt.Errorf("unknown validation order %q", s)
	}
}

// Config tunes the coordinator.
type Config struct {
	Precision     uint64
	MaxFeedAge    time.Duration
	MaxConfidence math.LegacyDec
	Order         Order
}

// FeedResolver maps an oracle source to its feed.
type FeedResolver interface {
	Feed(source string) (collector.Feed, error)
}

// Coordinator validates periods and moves the resulting reward.
type Coordinator struct {
	Ledger ledger.Ledger
	Feeds  FeedResolver
	Clock  period.Clock
	Config Config
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(l ledger.Ledger, feeds FeedResolver, clock period.Clock, cfg Config) *Coordinator {
	return &Coordinator{Ledger: l, Feeds: feeds, Clock: clock, Config: cfg}
}

// Result describes a settled period.
type Result struct {
	AgreementID uuid.UUID      `json:"agreement_id"`
	PeriodID    uint32         `json:"period_id"`
	Status      model.Status   `json:"status"`
	Deviation   math.LegacyDec `json:"deviation"`
	ObservedAt  time.Time      `json:"observed_at"`

	// Reward moved From the losing pool To the winning pool.
	Reward uint64     `json:"reward"`
	From   model.Side `json:"from"`
	To     model.Side `json:"to"`

	ValidatorReward uint64 `json:"validator_reward"`
	ProtocolReward  uint64 `json:"protocol_reward"`
	Burned          uint64 `json:"burned"`

	Ops []ledger.Op `json:"-"`
}

// ValidatePeriod reads the SLI for periodID, records its status and
// transfers the deviation-weighted reward between the pools.
func (c *Coordinator) ValidatePeriod(ctx context.Context, ag *model.Agreement, periodID uint32, gov model.Governance) (*model.Agreement, *Result, error) {
	status, err := ag.Statuses.Get(periodID)
	if err != nil {
		return nil, nil, err
	}
	if status.Verified() {
		return nil, nil, model.ErrAlreadyVerifiedPeriod.Wrapf("period %d is %s", periodID, status.Kind)
	}

	now := c.Clock.Now()
	if now.Unix() < ag.Schedule.Start {
		return nil, nil, model.ErrSlaNotStarted.Wrapf("starts at %d", ag.Schedule.Start)
	}
	elapsed, err := period.HasElapsed(ag.Schedule, periodID, now)
	if err != nil {
		return nil, nil, err
	}
	if !elapsed {
		return nil, nil, model.ErrPeriodNotElapsed.Wrapf("period %d", periodID)
	}
	if c.Config.Order == OrderSequential && !ag.Statuses.VerifiedThrough(periodID) {
		return nil, nil, model.ErrPreviousPeriodNotVerified.Wrapf("period %d has unverified predecessors", periodID)
	}

	reading, err := c.read(ctx, ag.OracleSource, now)
	if err != nil {
		return nil, nil, err
	}

	sli := reading.Value
	respected := calculator.IsRespected(ag.Slo, sli)
	deviation, err := calculator.Deviation(ag.Slo, sli, c.Config.Precision)
	if err != nil {
		return nil, nil, err
	}

	staged := ag.Clone()
	res := &Result{
		AgreementID:     ag.ID,
		PeriodID:        periodID,
		Deviation:       deviation,
		ObservedAt:      reading.ObservedAt,
		ValidatorReward: gov.ValidatorReward,
		ProtocolReward:  gov.ProtocolReward,
		Burned:          gov.BurnAmount,
	}
	if respected {
		res.Status = model.Respected(sli)
		res.From, res.To = model.SideUser, model.SideProvider
	} else {
		res.Status = model.NotRespected(sli)
		res.From, res.To = model.SideProvider, model.SideUser
	}

	res.Reward, err = reward(staged, periodID, respected, deviation, c.Config.Precision)
	if err != nil {
		return nil, nil, err
	}
	if err := staged.Statuses.Set(periodID, res.Status); err != nil {
		return nil, nil, err
	}
	staged.SetPool(res.From, staged.Pool(res.From)-res.Reward)
	winner, err := calculator.Add(staged.Pool(res.To), res.Reward)
	if err != nil {
		return nil, nil, err
	}
	staged.SetPool(res.To, winner)

	vault := ledger.VaultOf(ag.ID)
	res.Ops, err = ledger.Execute(ctx, c.Ledger, []ledger.Op{
		ledger.TransferOp(ag.Mint, vault.Pool(res.From), vault.Pool(res.To), res.Reward),
		ledger.TransferOp(ag.Mint, vault.Fees(), ag.Validator, gov.ValidatorReward),
		ledger.TransferOp(ag.Mint, vault.Fees(), ag.Protocol, gov.ProtocolReward),
		ledger.BurnOp(ag.Mint, vault.Fees(), gov.BurnAmount),
	})
	if err != nil {
		return nil, nil, err
	}
	return staged, res, nil
}

func (c *Coordinator) read(ctx context.Context, source string, now time.Time) (collector.Reading, error) {
	feed, err := c.Feeds.Feed(source)
	if err != nil {
		return collector.Reading{}, err
	}
	if feed.Source() != source {
		return collector.Reading{}, model.ErrInvalidFeedSource.Wrapf("feed %q registered for %q", feed.Source(), source)
	}
	reading, err := feed.Read(ctx)
	if err != nil {
		return collector.Reading{}, fmt.Errorf("read feed %s: %w", source, err)
	}
	if reading.Value.IsNil() {
		return collector.Reading{}, model.ErrDecimalConversionFailure.Wrapf("feed %s returned no value", source)
	}
	if reading.StaleAfter(now, c.Config.MaxFeedAge) {
		return collector.Reading{}, model.ErrStaleFeed.Wrapf("%s observed at %s", source, reading.ObservedAt.UTC().Format(time.RFC3339))
	}
	if reading.ExceedsConfidence(c.Config.MaxConfidence) {
		return collector.Reading{}, model.ErrConfidenceIntervalExceeded.Wrapf("%s confidence %s > %s", source, reading.Confidence, c.Config.MaxConfidence)
	}
	return reading, nil
}

// reward computes the amount moving for periodID. Respected periods are
// sized off the provider pool and paid by the user pool; breached periods
// are sized off the user pool and paid by the provider pool, never beyond
// what keeps the provider pool collateralized.
func reward(ag *model.Agreement, periodID uint32, respected bool, deviation math.LegacyDec, precision uint64) (uint64, error) {
	periodsLeft := ag.Schedule.Count - periodID
	base, loser := ag.UserPool, ag.ProviderPool
	if respected {
		base, loser = ag.ProviderPool, ag.UserPool
	}
	amount, err := calculator.Reward(base, periodsLeft, deviation, precision)
	if err != nil {
		return 0, err
	}
	amount = min(amount, loser)
	if !respected {
		limit, err := calculator.MaxBreachTransfer(ag.ProviderPool, ag.UserPool, ag.Leverage)
		if err != nil {
			return 0, err
		}
		amount = min(amount, limit)
	}
	return amount, nil
}
