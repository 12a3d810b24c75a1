package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/audit"
	"github.com/cashout-watch/kestrel/internal/domain"
	"github.com/cashout-watch/kestrel/internal/rates"
	"github.com/cashout-watch/kestrel/internal/rules"
	"github.com/cashout-watch/kestrel/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	processor *audit.Processor
	rates     *rates.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, processor *audit.Processor, rateSvc *rates.Service, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		processor: processor,
		rates:     rateSvc,
		version:   version,
	}
}

// auditCacheTTL matches the worker's read-model cache lifetime.
const auditCacheTTL = time.Hour

// GlobalTenantID is used for flag rules that apply to all tenants.
const GlobalTenantID = "*"

// Evaluate handles POST /evaluate: the synchronous path. The measurement
// is persisted, scored, flagged, and the audit returned in one call.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := validateMeasurement(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	m := req.ToMeasurement()
	m.ID = uuid.New().String()
	m.TenantID = tenantID

	// Fill a missing cross-currency reference rate from the rate store.
	if h.rates != nil {
		h.rates.Resolve(ctx, tenantID, m)
	}

	if h.repo != nil {
		if err := h.repo.SaveMeasurement(ctx, tenantID, m); err != nil {
			slog.Error("failed to save measurement", "measurement_id", m.ID, "error", err)
			// Evaluation proceeds; the audit still carries the full outcome.
		}
	}

	overrides, errMsg := h.resolveOverrides(ctx, tenantID, &req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": errMsg,
		})
		return
	}

	a, err := h.processor.Process(ctx, &audit.ProcessInput{
		TenantID:    tenantID,
		TraceID:     traceID,
		Measurement: m,
		Overrides:   overrides,
		StartTime:   start,
	})
	if err != nil {
		slog.Error("audit processing failed", "measurement_id", m.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveAudit(ctx, tenantID, a); err != nil {
			slog.Error("failed to save audit", "audit_id", a.ID, "error", err)
		}
	}
	if h.cache != nil {
		if err := h.cache.SetAudit(ctx, tenantID, m.ID, a, auditCacheTTL); err != nil {
			slog.Warn("failed to cache audit", "audit_id", a.ID, "error", err)
		}
	}

	h.publishAuditEvents(ctx, tenantID, a)

	writeJSON(w, http.StatusOK, a.ToResponse())
}

// IngestMeasurement handles POST /measurements: the asynchronous path.
// The measurement is published to the event bus and picked up by a worker.
func (h *Handler) IngestMeasurement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := validateMeasurement(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	measurementID := uuid.New().String()

	payload, err := json.Marshal(worker.MeasurementMessage{
		MeasurementID:      measurementID,
		TenantID:           tenantID,
		TraceID:            traceID,
		MeasurementRequest: req,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode measurement",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicMeasurementIngested, payload); err != nil {
		slog.Error("failed to publish measurement", "measurement_id", measurementID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue measurement",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"measurementId": measurementID,
		"status":        "queued",
		"traceId":       traceID,
	})
}

// validateMeasurement checks the fields the scorer cannot tolerate being
// absent. It returns an error message, or "" when the request is usable.
func validateMeasurement(req *domain.MeasurementRequest) string {
	if !req.AppliedAmount.IsPositive() {
		return "appliedAmount must be positive"
	}
	if req.ReceivedAmount.IsNegative() {
		return "receivedAmount must not be negative"
	}
	if req.AppliedCurrency == "" || req.ReceivedCurrency == "" {
		return "appliedCurrency and receivedCurrency are required"
	}
	return ""
}

// resolveOverrides layers a named threshold profile (if any) under the
// request's inline overrides. Inline values win.
func (h *Handler) resolveOverrides(ctx context.Context, tenantID string, req *domain.MeasurementRequest) (*domain.ThresholdOverrides, string) {
	if req.Profile == "" {
		return req.Thresholds, ""
	}
	if h.repo == nil {
		return nil, "threshold profiles require a repository"
	}

	profile, err := h.repo.GetThresholdProfile(ctx, tenantID, req.Profile)
	if err != nil {
		return nil, "unknown threshold profile: " + req.Profile
	}

	merged := profile.Overrides
	if o := req.Thresholds; o != nil {
		if o.SpeedInstantMins != nil {
			merged.SpeedInstantMins = o.SpeedInstantMins
		}
		if o.SpeedFastMins != nil {
			merged.SpeedFastMins = o.SpeedFastMins
		}
		if o.SpeedSlowMins != nil {
			merged.SpeedSlowMins = o.SpeedSlowMins
		}
		if o.LossNormalPct != nil {
			merged.LossNormalPct = o.LossNormalPct
		}
		if o.LossWarnPct != nil {
			merged.LossWarnPct = o.LossWarnPct
		}
		if o.SevereLossPct != nil {
			merged.SevereLossPct = o.SevereLossPct
		}
	}
	return &merged, ""
}

// publishAuditEvents emits the completed and alert events for an audit.
// Publish failures are logged, never surfaced to the caller.
func (h *Handler) publishAuditEvents(ctx context.Context, tenantID string, a *domain.Audit) {
	if h.bus == nil {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		slog.Error("failed to encode audit event", "audit_id", a.ID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicAuditCompleted, payload); err != nil {
		slog.Warn("failed to publish audit completed", "audit_id", a.ID, "error", err)
	}

	if audit.ShouldAlert(a) {
		alert, err := json.Marshal(map[string]interface{}{
			"auditId":       a.ID,
			"measurementId": a.MeasurementID,
			"overallCode":   a.Overall.OverallCode,
			"totalScore":    a.Overall.TotalScore,
			"reasons":       audit.AlertReasons(a),
		})
		if err != nil {
			return
		}
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAuditAlert, alert); err != nil {
			slog.Warn("failed to publish audit alert", "audit_id", a.ID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAudit retrieves an audit by ID.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	auditID := chi.URLParam(r, "id")

	if auditID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "audit id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAudit(ctx, tenantID, auditID)
	if err != nil {
		slog.Error("failed to get audit", "id", auditID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "audit not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// GetMeasurement retrieves a measurement by ID.
func (h *Handler) GetMeasurement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	measurementID := chi.URLParam(r, "id")

	if measurementID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "measurement id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	m, err := h.repo.GetMeasurement(ctx, tenantID, measurementID)
	if err != nil {
		slog.Error("failed to get measurement", "id", measurementID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "measurement not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// GetMeasurementAudit retrieves the latest audit for a measurement,
// cache first.
func (h *Handler) GetMeasurementAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	measurementID := chi.URLParam(r, "id")

	if measurementID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "measurement id is required",
		})
		return
	}

	if h.cache != nil {
		if a, err := h.cache.GetAudit(ctx, tenantID, measurementID); err == nil && a != nil {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAuditByMeasurement(ctx, tenantID, measurementID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "audit not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetAudit(ctx, tenantID, measurementID, a, auditCacheTTL); err != nil {
			slog.Warn("failed to cache audit", "audit_id", a.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, a)
}

// ListRules returns all loaded flag rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a flag rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a flag rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Tag         string `json:"tag"`
	Severity    string `json:"severity,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new flag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "tag is required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.FlagSeverityInfo
	}

	ruleConfig := &domain.FlagRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Tag:         req.Tag,
		Severity:    severity,
		Enabled:     req.Enabled,
	}

	// Compile check before persisting.
	if err := h.engine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save flag rule", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("flag rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all flag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list flag rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload flag rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// ListProfiles returns the tenant's stored threshold profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	profiles, err := h.repo.ListThresholdProfiles(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list threshold profiles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list profiles",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// GetProfile retrieves a threshold profile and its effective thresholds.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	profileID := chi.URLParam(r, "id")

	if profileID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	profile, err := h.repo.GetThresholdProfile(ctx, tenantID, profileID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "profile not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile":   profile,
		"effective": profile.Resolve(),
	})
}

// SaveProfileRequest is the request body for creating or updating a
// threshold profile.
type SaveProfileRequest struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Overrides   domain.ThresholdOverrides `json:"overrides"`
	Enabled     bool                      `json:"enabled"`
}

// SaveProfile creates or replaces a threshold profile for the tenant.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	profile := &domain.ThresholdProfile{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Overrides:   req.Overrides,
		Enabled:     req.Enabled,
	}

	if err := h.repo.SaveThresholdProfile(ctx, tenantID, profile); err != nil {
		slog.Error("failed to save threshold profile", "id", profile.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save profile",
		})
		return
	}

	slog.Info("threshold profile saved", "id", profile.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile":   profile,
		"effective": profile.Resolve(),
	})
}

// RecordRateRequest is the request body for recording a reference rate.
type RecordRateRequest struct {
	Base   string          `json:"base"`
	Quote  string          `json:"quote"`
	Rate   decimal.Decimal `json:"rate"`
	AsOf   *time.Time      `json:"asOf,omitempty"`
	Source string          `json:"source,omitempty"`
}

// RecordRate stores a reference rate observation for the tenant.
func (h *Handler) RecordRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rate store not available",
		})
		return
	}

	var req RecordRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Base == "" || req.Quote == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "base and quote are required",
		})
		return
	}

	rate := &domain.ReferenceRate{
		Base:   req.Base,
		Quote:  req.Quote,
		Rate:   req.Rate,
		Source: req.Source,
	}
	if req.AsOf != nil {
		rate.AsOf = *req.AsOf
	}

	if err := h.rates.Record(ctx, tenantID, rate); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, rate)
}

// GetRate returns the latest stored rate for a currency pair.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	base := chi.URLParam(r, "base")
	quote := chi.URLParam(r, "quote")

	if h.rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rate store not available",
		})
		return
	}

	rate, err := h.rates.Latest(ctx, tenantID, base, quote)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no rate recorded for pair",
		})
		return
	}

	writeJSON(w, http.StatusOK, rate)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
