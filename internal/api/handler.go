package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/extract"
	"github.com/opensource-integrity/kestrel/internal/ingest"
	"github.com/opensource-integrity/kestrel/internal/narrative"
	"github.com/opensource-integrity/kestrel/internal/registry"
	"github.com/opensource-integrity/kestrel/internal/rules"
	"github.com/opensource-integrity/kestrel/internal/scoring"
	"github.com/opensource-integrity/kestrel/internal/stats"
)

// GlobalTenantID is used for advisory rules that apply to all tenants.
const GlobalTenantID = "*"

// analysisCacheTTL bounds how long a finished analysis is served from
// cache. A registry update invalidates results logically, so cached
// entries must age out.
const analysisCacheTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	scorer   *scoring.Scorer
	narrator *narrative.Service
	updater  *registry.Updater
	stats    *stats.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, scorer *scoring.Scorer, narrator *narrative.Service, updater *registry.Updater, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		scorer:   scorer,
		narrator: narrator,
		updater:  updater,
		stats:    stats.NewService(repo, cache),
		version:  version,
	}
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	AnalysisID  string                 `json:"analysisId"`
	DocumentID  string                 `json:"documentId,omitempty"`
	Score       int                    `json:"score"`
	OverallRisk domain.RiskLevel       `json:"overallRisk"`
	Summary     string                 `json:"summary"`
	Result      *domain.AnalysisResult `json:"result,omitempty"`
	Advisories  []domain.Advisory      `json:"advisories,omitempty"`
	Cached      bool                   `json:"cached"`
	Metadata    struct {
		TraceID     string `json:"traceId"`
		ExtractMs   int64  `json:"extractMs"`
		ScoreMs     int64  `json:"scoreMs"`
		NarrativeMs int64  `json:"narrativeMs"`
		TotalMs     int64  `json:"totalMs"`
		Version     string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze requests. It runs the full screening
// pipeline synchronously: hash, cache check, evidence extraction,
// scoring, advisory rules, narrative, persistence, and events.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}
	if req.Filename == "" {
		req.Filename = "untitled.txt"
	}

	// Identical text against an unchanged registry snapshot scores
	// identically, so the document hash keys a result cache. The key
	// carries the registry generation so registry writes invalidate
	// previously cached results.
	sha := ingest.Hash(req.Text)
	cacheKey := sha
	if h.updater != nil {
		cacheKey = domain.AnalysisCacheKey(sha, h.updater.Generation())
	}
	if h.cache != nil {
		if cached, err := h.cache.GetAnalysis(ctx, tenantID, cacheKey); err == nil && cached != nil {
			resp := AnalyzeResponse{
				AnalysisID:  cached.AnalysisID,
				Score:       cached.Score,
				OverallRisk: cached.OverallRisk,
				Summary:     cached.Summary,
				Cached:      true,
			}
			if analysis, err := h.repo.GetAnalysis(ctx, tenantID, cached.AnalysisID); err == nil {
				resp.DocumentID = analysis.DocumentID
				resp.Result = analysis.Result
				resp.Advisories = analysis.Advisories
			}
			resp.Metadata.TraceID = traceID
			resp.Metadata.TotalMs = time.Since(start).Milliseconds()
			resp.Metadata.Version = h.version
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	doc := ingest.NewDocument(tenantID, req.Filename, req.Text)
	if h.repo != nil {
		if err := h.repo.SaveDocument(ctx, tenantID, doc); err != nil {
			slog.Error("failed to save document", "document_id", doc.ID, "error", err)
		}
	}

	// 1. Extract evidence and metadata
	extractStart := time.Now()
	input := scoring.Input{
		Text:     req.Text,
		Evidence: extract.Evidence(req.Text),
		Metadata: extract.Metadata(req.Text),
	}
	extractMs := time.Since(extractStart).Milliseconds()

	// 2. Score
	scoreStart := time.Now()
	result := h.scorer.Score(ctx, input)
	scoreMs := time.Since(scoreStart).Milliseconds()

	// 3. Advisory rules
	var advisories []domain.Advisory
	rulesEvaluated := 0
	if h.engine != nil {
		rulesEvaluated = h.engine.RulesCount()
		advisories = h.engine.Evaluate(result)
	}

	// 4. Narrative summary
	narrativeStart := time.Now()
	summary := h.narrator.Summarize(ctx, result)
	narrativeMs := time.Since(narrativeStart).Milliseconds()

	totalMs := time.Since(start).Milliseconds()

	analysis := &domain.Analysis{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		DocumentID:  doc.ID,
		Filename:    req.Filename,
		Timestamp:   time.Now().UTC(),
		Score:       result.Score,
		OverallRisk: result.OverallRisk,
		Summary:     summary,
		Result:      result,
		Advisories:  advisories,
		Metadata: domain.AnalysisMetadata{
			TraceID:        traceID,
			ExtractMs:      extractMs,
			ScoreMs:        scoreMs,
			NarrativeMs:    narrativeMs,
			TotalMs:        totalMs,
			RulesEvaluated: rulesEvaluated,
			EngineVersion:  h.version,
		},
	}

	// 5. Persist and cache
	if h.repo != nil {
		if err := h.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis", "analysis_id", analysis.ID, "error", err)
		}
	}
	if h.cache != nil {
		err := h.cache.SetAnalysis(ctx, tenantID, cacheKey, &domain.AnalysisCache{
			AnalysisID:  analysis.ID,
			Score:       analysis.Score,
			OverallRisk: analysis.OverallRisk,
			Summary:     analysis.Summary,
		}, analysisCacheTTL)
		if err != nil {
			slog.Warn("failed to cache analysis", "analysis_id", analysis.ID, "error", err)
		}
	}

	// 6. Publish events
	if h.bus != nil {
		payload, _ := json.Marshal(analysis)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
			slog.Error("failed to publish analysis completed", "analysis_id", analysis.ID, "error", err)
		}
		if analysis.OverallRisk == domain.RiskHigh {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert", "analysis_id", analysis.ID, "error", err)
			}
		}
	}

	resp := AnalyzeResponse{
		AnalysisID:  analysis.ID,
		DocumentID:  doc.ID,
		Score:       analysis.Score,
		OverallRisk: analysis.OverallRisk,
		Summary:     summary,
		Result:      result,
		Advisories:  advisories,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.ExtractMs = extractMs
	resp.Metadata.ScoreMs = scoreMs
	resp.Metadata.NarrativeMs = narrativeMs
	resp.Metadata.TotalMs = totalMs
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
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

// GetAnalysis retrieves an analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ListAnalyses returns the analysis history for the tenant, newest
// first. Supports limit and offset query parameters.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	analyses, err := h.repo.ListAnalyses(ctx, tenantID, limit, offset)
	if err != nil {
		slog.Error("failed to list analyses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// GetDocument retrieves a stored document by ID.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	docID := chi.URLParam(r, "id")

	if docID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "document id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	doc, err := h.repo.GetDocument(ctx, tenantID, docID)
	if err != nil {
		slog.Error("failed to get document", "id", docID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "document not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetStats returns the tenant's screening statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	summary, err := h.stats.Summarize(ctx, tenantID)
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListRules returns all loaded advisory rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves an advisory rule by ID from the loaded engine rules.
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

// CreateRuleRequest is the request body for creating an advisory rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new advisory rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// The rule is loaded into the engine immediately; POST /rules/reload
// re-syncs the engine with the database.
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

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}
	switch severity {
	case domain.SeverityInfo, domain.SeverityWarn, domain.SeverityCritical:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "severity must be info, warn, or critical",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Severity:    severity,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by compiling and loading it
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("advisory rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": ruleConfig,
	})
}

// ReloadRules reloads all advisory rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("advisory rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// ListRegistry returns all predatory registry entries. The registry is
// shared reference data, not tenant-scoped.
func (h *Handler) ListRegistry(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entries, err := h.repo.ListRegistryEntries(r.Context())
	if err != nil {
		slog.Error("failed to list registry entries", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list registry entries",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// RegistryEntryRequest is the request body for adding a registry entry.
type RegistryEntryRequest struct {
	Name       string `json:"name"`
	ISSN       string `json:"issn,omitempty"`
	Publisher  string `json:"publisher,omitempty"`
	Source     string `json:"source"`
	EntityType string `json:"entityType,omitempty"`
	URL        string `json:"url,omitempty"`
}

// CreateRegistryEntry upserts a registry entry and refreshes the
// in-memory snapshot so subsequent lookups see it.
func (h *Handler) CreateRegistryEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegistryEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and source are required",
		})
		return
	}

	entityType := req.EntityType
	if entityType == "" {
		entityType = domain.EntityJournal
	}

	entry := &domain.RegistryEntry{
		Name:        req.Name,
		ISSN:        req.ISSN,
		Publisher:   req.Publisher,
		Source:      req.Source,
		EntityType:  entityType,
		URL:         req.URL,
		LastUpdated: time.Now().UTC(),
	}

	if _, err := h.updater.Update(ctx, []*domain.RegistryEntry{entry}); err != nil {
		slog.Error("failed to save registry entry", "name", entry.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save registry entry",
		})
		return
	}

	slog.Info("registry entry saved", "name", entry.Name, "source", entry.Source)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"entry": entry,
	})
}

// ReloadRegistry reloads the in-memory registry snapshot from the database.
func (h *Handler) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	if err := h.updater.Refresh(r.Context()); err != nil {
		slog.Error("failed to reload registry", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload registry",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "registry reloaded successfully",
	})
}

// SeedRegistry loads the built-in registry entries into the database
// and refreshes the snapshot.
func (h *Handler) SeedRegistry(w http.ResponseWriter, r *http.Request) {
	count, err := h.updater.Seed(r.Context())
	if err != nil {
		slog.Error("failed to seed registry", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to seed registry",
		})
		return
	}

	slog.Info("registry seeded", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "registry seeded successfully",
		"count":   count,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
