// Package worker provides async document screening from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/extract"
	"github.com/opensource-integrity/kestrel/internal/ingest"
	"github.com/opensource-integrity/kestrel/internal/narrative"
	"github.com/opensource-integrity/kestrel/internal/rules"
	"github.com/opensource-integrity/kestrel/internal/scoring"
)

// analysisCacheTTL matches the synchronous handler's cache policy.
const analysisCacheTTL = time.Hour

// Worker processes ingested documents asynchronously from the EventBus.
// It runs the same pipeline as the synchronous /analyze handler.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	registry domain.Registry
	engine   *rules.Engine
	scorer   *scoring.Scorer
	narrator *narrative.Service
	version  string

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker. The registry is the same
// snapshot the scorer checks against; its generation versions the
// analysis cache keys.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, registry domain.Registry, engine *rules.Engine, scorer *scoring.Scorer, narrator *narrative.Service, version string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		registry: registry,
		engine:   engine,
		scorer:   scorer,
		narrator: narrator,
		version:  version,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicDocumentIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicDocumentIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processDocument(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicDocumentIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processDocument(ctx, msg.TenantID, msg)
}

// DocumentMessage is the message payload for async document screening.
// Text may be omitted when DocumentID refers to an already stored
// document.
type DocumentMessage struct {
	DocumentID string `json:"documentId,omitempty"`
	TenantID   string `json:"tenantId"`
	TraceID    string `json:"traceId,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Text       string `json:"text,omitempty"`
}

// processDocument screens a document through the full pipeline.
func (w *Worker) processDocument(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var docMsg DocumentMessage
	if err := json.Unmarshal(msg.Payload, &docMsg); err != nil {
		slog.Error("failed to parse document message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if docMsg.TenantID != "" {
		tenantID = docMsg.TenantID
	}

	traceID := docMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	text := docMsg.Text
	documentID := docMsg.DocumentID

	// Resolve stored documents referenced by ID only
	if text == "" && documentID != "" && w.repo != nil {
		doc, err := w.repo.GetDocument(ctx, tenantID, documentID)
		if err != nil {
			slog.Error("failed to load document",
				"document_id", documentID,
				"error", err,
			)
			return err
		}
		text = doc.Text
		if docMsg.Filename == "" {
			docMsg.Filename = doc.Filename
		}
	}
	if text == "" {
		slog.Error("document message has no text", "message_id", msg.ID)
		return nil
	}

	sha := ingest.Hash(text)
	cacheKey := sha
	if w.registry != nil {
		cacheKey = domain.AnalysisCacheKey(sha, w.registry.Generation())
	}

	// Skip documents already screened with an identical text hash
	// against the current registry snapshot
	if w.cache != nil {
		if cached, err := w.cache.GetAnalysis(ctx, tenantID, cacheKey); err == nil && cached != nil {
			slog.Debug("document already analyzed, skipping",
				"analysis_id", cached.AnalysisID,
				"tenant_id", tenantID,
			)
			return nil
		}
	}

	// Store the document if the message carried raw text
	if documentID == "" && w.repo != nil {
		doc := ingest.NewDocument(tenantID, docMsg.Filename, text)
		if err := w.repo.SaveDocument(ctx, tenantID, doc); err != nil {
			slog.Error("failed to save document", "document_id", doc.ID, "error", err)
		}
		documentID = doc.ID
	}

	slog.Debug("processing document",
		"document_id", documentID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Extract evidence and metadata
	extractStart := time.Now()
	input := scoring.Input{
		Text:     text,
		Evidence: extract.Evidence(text),
		Metadata: extract.Metadata(text),
	}
	extractMs := time.Since(extractStart).Milliseconds()

	// 2. Score
	scoreStart := time.Now()
	result := w.scorer.Score(ctx, input)
	scoreMs := time.Since(scoreStart).Milliseconds()

	// 3. Advisory rules
	var advisories []domain.Advisory
	rulesEvaluated := 0
	if w.engine != nil {
		rulesEvaluated = w.engine.RulesCount()
		advisories = w.engine.Evaluate(result)
	}

	// 4. Narrative summary
	narrativeStart := time.Now()
	summary := w.narrator.Summarize(ctx, result)
	narrativeMs := time.Since(narrativeStart).Milliseconds()

	analysis := &domain.Analysis{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		DocumentID:  documentID,
		Filename:    docMsg.Filename,
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
			TotalMs:        time.Since(start).Milliseconds(),
			RulesEvaluated: rulesEvaluated,
			EngineVersion:  w.version,
		},
	}

	// 5. Persist and cache
	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		err := w.cache.SetAnalysis(ctx, tenantID, cacheKey, &domain.AnalysisCache{
			AnalysisID:  analysis.ID,
			Score:       analysis.Score,
			OverallRisk: analysis.OverallRisk,
			Summary:     analysis.Summary,
		}, analysisCacheTTL)
		if err != nil {
			slog.Warn("failed to cache analysis", "analysis_id", analysis.ID, "error", err)
		}
	}

	// 6. Publish completion, and an alert for high-risk documents
	payload, _ := json.Marshal(analysis)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish analysis completed",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}

	if analysis.OverallRisk == domain.RiskHigh {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	slog.Info("document processed",
		"document_id", documentID,
		"tenant_id", tenantID,
		"score", analysis.Score,
		"risk", analysis.OverallRisk,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
