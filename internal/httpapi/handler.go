// Package httpapi exposes the escrow service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/escrow"
	"SlaEscrow/internal/fund"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/validation"
)

// Service defines the escrow operations served over HTTP.
type Service interface {
	Deploy(ctx context.Context, req escrow.DeployRequest) (*model.Agreement, error)
	Stake(ctx context.Context, id uuid.UUID, staker model.Account, side model.Side, amount uint64) (*fund.Receipt, error)
	Withdraw(ctx context.Context, id uuid.UUID, staker model.Account, side model.Side, burn uint64) (*fund.Receipt, error)
	ValidatePeriod(ctx context.Context, id uuid.UUID, periodID uint32) (*validation.Result, error)
	Agreement(ctx context.Context, id uuid.UUID) (*model.Agreement, error)
	List(ctx context.Context) ([]*model.Agreement, error)
	Phase(ag *model.Agreement) model.Phase
}

// Handler wires escrow endpoints to the service.
type Handler struct {
	service Service
	logger  log.Logger
}

// New constructs a Handler.
func New(service Service, logger log.Logger) *Handler {
	return &Handler{service: service, logger: logger.With("module", "httpapi")}
}

// Router returns the full HTTP surface, including /metrics served from
// gatherer.
func (h *Handler) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.Register(r)
	return r
}

// Register mounts the agreement endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/agreements", func(r chi.Router) {
		r.Post("/", h.handleDeploy)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/stake", h.handleStake)
			r.Post("/withdraw", h.handleWithdraw)
			r.Post("/periods/{period}/validate", h.handleValidate)
		})
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type sloRequest struct {
	Value      string           `json:"value"`
	Comparator model.Comparator `json:"comparator"`
}

type deployRequest struct {
	ID           uuid.UUID      `json:"id"`
	Slo          sloRequest     `json:"slo"`
	Leverage     string         `json:"leverage"`
	Mint         model.Token    `json:"mint"`
	Schedule     model.Schedule `json:"schedule"`
	Deployer     model.Account  `json:"deployer"`
	Validator    model.Account  `json:"validator"`
	OracleSource string         `json:"oracle_source"`
}

type stakeRequest struct {
	Staker model.Account `json:"staker"`
	Side   model.Side    `json:"side"`
	Amount uint64        `json:"amount"`
}

type agreementView struct {
	*model.Agreement
	Phase string `json:"phase"`
}

func (h *Handler) view(ag *model.Agreement) agreementView {
	return agreementView{Agreement: ag, Phase: h.service.Phase(ag).String()}
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	sloValue, err := calculator.ParseDec(req.Slo.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	leverage, err := calculator.ParseDec(req.Leverage)
	if err != nil {
		writeError(w, err)
		return
	}

	ag, err := h.service.Deploy(r.Context(), escrow.DeployRequest{
		ID:           req.ID,
		Slo:          model.Slo{Value: sloValue, Comparator: req.Slo.Comparator},
		Leverage:     leverage,
		Mint:         req.Mint,
		Schedule:     req.Schedule,
		Deployer:     req.Deployer,
		Validator:    req.Validator,
		OracleSource: req.OracleSource,
	})
	if err != nil {
		h.fail(w, r, "deploy", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(ag))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ags, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	out := make([]agreementView, 0, len(ags))
	for _, ag := range ags {
		out = append(out, h.view(ag))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := agreementID(w, r)
	if !ok {
		return
	}
	ag, err := h.service.Agreement(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(ag))
}

func (h *Handler) handleStake(w http.ResponseWriter, r *http.Request) {
	id, req, ok := stakeParams(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.Stake(r.Context(), id, req.Staker, req.Side, req.Amount)
	if err != nil {
		h.fail(w, r, "stake", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, req, ok := stakeParams(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.Withdraw(r.Context(), id, req.Staker, req.Side, req.Amount)
	if err != nil {
		h.fail(w, r, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, ok := agreementID(w, r)
	if !ok {
		return
	}
	periodID, err := strconv.ParseUint(chi.URLParam(r, "period"), 10, 32)
	if err != nil {
		badRequest(w, "invalid period id")
		return
	}
	res, err := h.service.ValidatePeriod(r.Context(), id, uint32(periodID))
	if err != nil {
		h.fail(w, r, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		h.logger.Debug("request rejected", "op", op, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeError(w, err)
}

func agreementID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid agreement id")
		return uuid.Nil, false
	}
	return id, true
}

func stakeParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, stakeRequest, bool) {
	var req stakeRequest
	id, ok := agreementID(w, r)
	if !ok {
		return id, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return id, req, false
	}
	return id, req, true
}
