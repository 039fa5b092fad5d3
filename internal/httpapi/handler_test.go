package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SlaEscrow/internal/collector"
	"SlaEscrow/internal/escrow"
	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/metrics"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
	"SlaEscrow/internal/store"
	"SlaEscrow/internal/validation"
)

type harness struct {
	router http.Handler
	mem    *ledger.Memory
	clock  *period.FixedClock
	feed   *collector.StaticFeed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mem: ledger.NewMemory(), clock: period.NewFixedClock(0)}
	h.feed = collector.NewStaticFeed("uptime", collector.Reading{Value: math.LegacyNewDec(101)})

	reg := prometheus.NewRegistry()
	svc, err := escrow.New(store.NewMemory(), h.mem, collector.NewCollector(h.feed), escrow.Config{
		Governance: model.Governance{
			ProtocolRewardRate: math.LegacyZeroDec(),
			DeployerRewardRate: math.LegacyZeroDec(),
			ValidatorReward:    1,
			DepositByPeriod:    1,
			MaxLeverage:        math.LegacyNewDec(5),
		},
		Validation: validation.Config{Precision: 10000, MaxFeedAge: time.Minute, Order: validation.OrderAny},
		Protocol:   "protocol",
	}, escrow.WithClock(h.clock), escrow.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	require.NoError(t, h.mem.Credit("usdc", "deployer", 100))
	require.NoError(t, h.mem.Credit("usdc", "alice", 1000))
	h.router = New(svc, log.NewNopLogger()).Router(reg)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) deploy(t *testing.T) uuid.UUID {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/agreements", map[string]any{
		"slo":           map[string]string{"value": "99", "comparator": "greater_or_equal"},
		"leverage":      "1",
		"mint":          "usdc",
		"schedule":      map[string]any{"start": 100, "length": map[string]any{"kind": "custom", "seconds": 50}, "count": 4},
		"deployer":      "deployer",
		"oracle_source": "uptime",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		ID    uuid.UUID `json:"id"`
		Phase string    `json:"phase"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "not_started", out.Phase)
	return out.ID
}

func TestAgreementLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.deploy(t)

	rec := h.do(t, http.MethodPost, "/agreements/"+id.String()+"/stake",
		map[string]any{"staker": "alice", "side": "provider", "amount": 1000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt struct {
		Shares uint64 `json:"shares"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&receipt))
	assert.Equal(t, uint64(1000), receipt.Shares)

	h.clock.Set(160)
	h.feed.Set(collector.Reading{Value: math.LegacyNewDec(101), ObservedAt: h.clock.Now()})
	rec = h.do(t, http.MethodPost, fmt.Sprintf("/agreements/%s/periods/0/validate", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kind":"respected"`)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/agreements/%s/periods/0/validate", id), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodGet, "/agreements/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"active(1)"`)

	rec = h.do(t, http.MethodGet, "/agreements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `slaescrow_validations_total{status="respected"} 1`)
}

func TestErrors(t *testing.T) {
	h := newHarness(t)
	id := h.deploy(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   uint32
	}{
		{"unknown agreement", http.MethodGet, "/agreements/" + uuid.NewString(), nil, http.StatusNotFound, 60},
		{"bad id", http.MethodGet, "/agreements/nope", nil, http.StatusBadRequest, 0},
		{"bad period", http.MethodPost, "/agreements/" + id.String() + "/periods/x/validate", nil, http.StatusBadRequest, 0},
		{"not started", http.MethodPost, "/agreements/" + id.String() + "/periods/0/validate", nil, http.StatusTooEarly, 42},
		{"zero stake", http.MethodPost, "/agreements/" + id.String() + "/stake",
			map[string]any{"staker": "alice", "side": "provider", "amount": 0}, http.StatusUnprocessableEntity, 33},
		{"bad side", http.MethodPost, "/agreements/" + id.String() + "/withdraw",
			map[string]any{"staker": "alice", "side": "both", "amount": 1}, http.StatusUnprocessableEntity, 19},
		{"unfunded stake", http.MethodPost, "/agreements/" + id.String() + "/stake",
			map[string]any{"staker": "carol", "side": "provider", "amount": 5}, http.StatusBadGateway, 53},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var out struct {
				Error errorBody `json:"error"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
			assert.Equal(t, tt.code, out.Error.Code)
			assert.NotEmpty(t, out.Error.Message)
		})
	}
}

func TestDeploy_BadDecimal(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/agreements", map[string]any{
		"slo":      map[string]string{"value": "ninety", "comparator": "greater_or_equal"},
		"leverage": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "decimal conversion failure"))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(context.Canceled))
	assert.Equal(t, http.StatusConflict, statusOf(model.ErrAgreementBusy.Wrap("x")))
	assert.Equal(t, http.StatusInsufficientStorage, statusOf(model.ErrRegistryFull))
}
