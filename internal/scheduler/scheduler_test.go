package scheduler

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
	"SlaEscrow/internal/validation"
)

type fakeEscrow struct {
	results []*validation.Result
	err     error
	ags     []*model.Agreement
}

func (f *fakeEscrow) ValidateDue(context.Context) ([]*validation.Result, error) {
	return f.results, f.err
}

func (f *fakeEscrow) Agreement(_ context.Context, id uuid.UUID) (*model.Agreement, error) {
	for _, ag := range f.ags {
		if ag.ID == id {
			return ag, nil
		}
	}
	return nil, model.ErrAgreementNotFound.Wrap(id.String())
}

func (f *fakeEscrow) List(context.Context) ([]*model.Agreement, error) { return f.ags, nil }

func (f *fakeEscrow) Phase(*model.Agreement) model.Phase { return model.Active(2) }

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.sent = append(f.sent, text)
	return nil
}

func newScheduler(esc *fakeEscrow, n Notifier) *Scheduler {
	return NewScheduler(context.Background(), esc, n, period.NewFixedClock(0), log.NewNopLogger())
}

func agreement() *model.Agreement {
	return &model.Agreement{
		ID:       uuid.New(),
		Slo:      model.Slo{Value: math.LegacyNewDec(99), Comparator: model.GreaterOrEqual},
		Leverage: math.LegacyOneDec(),
		Schedule: model.Schedule{Start: 0, Length: model.CustomLength(60), Count: 4},
		Statuses: model.NewStatusRegistry(4),
	}
}

func TestRegisterAll(t *testing.T) {
	s := newScheduler(&fakeEscrow{}, nil)
	require.NoError(t, s.RegisterAll("0 */5 * * * *", "0 0 9 * * *"))
	assert.Len(t, s.Cron.Entries(), 2)
	require.Error(t, newScheduler(&fakeEscrow{}, nil).RegisterAll("every minute", "0 0 9 * * *"))
}

func TestValidateTask(t *testing.T) {
	n := &fakeNotifier{}
	esc := &fakeEscrow{}
	s := newScheduler(esc, n)

	s.RunValidateNow()
	assert.Empty(t, n.sent, "nothing due, nothing sent")

	esc.results = []*validation.Result{{
		AgreementID: uuid.New(),
		Status:      model.Respected(math.LegacyNewDec(100)),
		Deviation:   math.LegacyZeroDec(),
	}}
	esc.err = errors.New("feed down")
	s.RunValidateNow()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "✅")
	assert.Contains(t, n.sent[0], "feed down")
}

func TestValidateTask_NoNotifier(t *testing.T) {
	s := newScheduler(&fakeEscrow{err: errors.New("boom")}, nil)
	assert.NotPanics(t, s.RunValidateNow)
}

func TestHandleCommand(t *testing.T) {
	ag := agreement()
	n := &fakeNotifier{}
	s := newScheduler(&fakeEscrow{ags: []*model.Agreement{ag}}, n)
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/agreements"), ag.ID.String())
	assert.Contains(t, s.HandleCommand(ctx, "/status "+ag.ID.String()), "Phase: active(2)")
	assert.Contains(t, s.HandleCommand(ctx, "/status "+uuid.NewString()), "agreement not found")
	assert.Equal(t, "❌ invalid agreement id", s.HandleCommand(ctx, "/status nope"))
	assert.Contains(t, s.HandleCommand(ctx, "/status"), "Usage")
	assert.Equal(t, help, s.HandleCommand(ctx, "hello"))
	assert.Equal(t, help, s.HandleCommand(ctx, "  "))

	s.reportTask()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "Agreements</b> (1)")
}
