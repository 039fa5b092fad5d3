package scheduler

import (
	"context"
	"fmt"
	"strings"

	"cosmossdk.io/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"SlaEscrow/internal/model"
	"SlaEscrow/internal/notifier"
	"SlaEscrow/internal/period"
	"SlaEscrow/internal/validation"
)

// Escrow is the part of the escrow service the scheduler drives.
type Escrow interface {
	ValidateDue(ctx context.Context) ([]*validation.Result, error)
	Agreement(ctx context.Context, id uuid.UUID) (*model.Agreement, error)
	List(ctx context.Context) ([]*model.Agreement, error)
	Phase(ag *model.Agreement) model.Phase
}

// Notifier delivers reports. A nil Notifier disables reports.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Escrow   Escrow
	Notifier Notifier
	Clock    period.Clock
	Logger   log.Logger
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, esc Escrow, n Notifier, clock period.Clock, logger log.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Escrow:   esc,
		Notifier: n,
		Clock:    clock,
		Logger:   logger.With("module", "scheduler"),
		Ctx:      ctx,
	}
}

// RegisterAll registers the validation sweep and the daily report.
func (s *Scheduler) RegisterAll(validateCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(validateCron, s.validateTask); err != nil {
		return fmt.Errorf("register validate task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunValidateNow executes the validation sweep immediately.
func (s *Scheduler) RunValidateNow() {
	s.validateTask()
}

func (s *Scheduler) validateTask() {
	s.Logger.Info("running validation sweep")
	results, err := s.Escrow.ValidateDue(s.Ctx)
	if err != nil {
		s.Logger.Error("validation sweep", "validated", len(results), "err", err)
	}
	if len(results) == 0 && err == nil {
		return
	}
	s.trySend(notifier.FormatValidationReport(s.Clock.Now(), results, err))
}

func (s *Scheduler) reportTask() {
	s.Logger.Info("running agreement report")
	ags, err := s.Escrow.List(s.Ctx)
	if err != nil {
		s.Logger.Error("list agreements", "err", err)
		return
	}
	s.trySend(notifier.FormatAgreementList(ags, s.Escrow.Phase))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return help
	}
	switch fields[0] {
	case "/agreements":
		ags, err := s.Escrow.List(ctx)
		if err != nil {
			return fmt.Sprintf("❌ list agreements: %v", err)
		}
		return notifier.FormatAgreementList(ags, s.Escrow.Phase)
	case "/status":
		if len(fields) != 2 {
			return "Usage: /status &lt;agreement id&gt;"
		}
		id, err := uuid.Parse(fields[1])
		if err != nil {
			return "❌ invalid agreement id"
		}
		ag, err := s.Escrow.Agreement(ctx, id)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatAgreementStatus(ag, s.Escrow.Phase(ag))
	case "/validate":
		s.validateTask()
		return ""
	default:
		return help
	}
}

const help = "Available commands:\n• /agreements\n• /status &lt;agreement id&gt;\n• /validate"

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Logger.Error("send notification", "err", err)
	}
}
