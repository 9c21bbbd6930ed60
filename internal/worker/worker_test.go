package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-integrity/kestrel/internal/bus"
	"github.com/opensource-integrity/kestrel/internal/cache"
	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/ingest"
	"github.com/opensource-integrity/kestrel/internal/narrative"
	"github.com/opensource-integrity/kestrel/internal/registry"
	"github.com/opensource-integrity/kestrel/internal/repository"
	"github.com/opensource-integrity/kestrel/internal/rules"
	"github.com/opensource-integrity/kestrel/internal/scoring"
)

const testTenant = "tenant-001"

type testEnv struct {
	worker  *Worker
	bus     *bus.ChannelBus
	repo    domain.Repository
	updater *registry.Updater
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })

	chBus := bus.NewChannelBus(100)
	t.Cleanup(func() { chBus.Close() })

	engine, err := rules.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	snapshot := registry.NewMemoryRegistry(nil)
	updater := registry.NewUpdater(repo, snapshot)
	scorer := scoring.NewScorer(registry.NewDetector(snapshot), scoring.DefaultTables(), nil)
	narrator := narrative.NewService(domain.NarrativeConfig{Provider: "heuristic"}, nil)

	w := NewWorker(chBus, repo, lru, snapshot, engine, scorer, narrator, "test")
	t.Cleanup(func() { w.Stop() })

	return &testEnv{worker: w, bus: chBus, repo: repo, updater: updater}
}

// subscribeOnce collects the first message on a topic.
func (e *testEnv) subscribeOnce(t *testing.T, topic string) <-chan *domain.Message {
	t.Helper()

	ch := make(chan *domain.Message, 1)
	_, err := e.bus.Subscribe(context.Background(), testTenant, topic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case ch <- msg:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return ch
}

func (e *testEnv) publishDocument(t *testing.T, msg DocumentMessage) {
	t.Helper()

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal document message: %v", err)
	}
	if err := e.bus.Publish(context.Background(), testTenant, domain.TopicDocumentIngested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func waitFor(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

const commercialManuscript = "Funding: Pharma Corp Inc provided support.\n" +
	"Conflict of interest: none declared.\n" +
	"Department of Research, Pharma Corp Inc\n" +
	"This is a miracle cure.\n"

func TestWorkerProcessesIngestedDocument(t *testing.T) {
	env := newTestEnv(t)

	if err := env.worker.Start(Config{TenantIDs: []string{testTenant}}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	completed := env.subscribeOnce(t, domain.TopicAnalysisCompleted)
	time.Sleep(10 * time.Millisecond)

	env.publishDocument(t, DocumentMessage{
		TenantID: testTenant,
		Filename: "manuscript.txt",
		Text:     commercialManuscript,
	})

	msg := waitFor(t, completed)

	var analysis domain.Analysis
	if err := json.Unmarshal(msg.Payload, &analysis); err != nil {
		t.Fatalf("failed to decode completed payload: %v", err)
	}

	if analysis.Score != 38 {
		t.Errorf("expected score 38, got %d", analysis.Score)
	}
	if analysis.OverallRisk != domain.RiskMedium {
		t.Errorf("expected medium risk, got %s", analysis.OverallRisk)
	}
	if analysis.DocumentID == "" {
		t.Error("expected a document ID for raw text submission")
	}

	// Analysis and document must be persisted
	stored, err := env.repo.GetAnalysis(context.Background(), testTenant, analysis.ID)
	if err != nil {
		t.Fatalf("analysis not persisted: %v", err)
	}
	if stored.Score != analysis.Score {
		t.Errorf("stored score mismatch: %d", stored.Score)
	}
	if _, err := env.repo.GetDocument(context.Background(), testTenant, analysis.DocumentID); err != nil {
		t.Errorf("document not persisted: %v", err)
	}
}

func TestWorkerSkipsAlreadyAnalyzedText(t *testing.T) {
	env := newTestEnv(t)

	if err := env.worker.Start(Config{TenantIDs: []string{testTenant}}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	completed := make(chan *domain.Message, 4)
	_, err := env.bus.Subscribe(context.Background(), testTenant, domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	env.publishDocument(t, DocumentMessage{TenantID: testTenant, Text: commercialManuscript})
	waitFor(t, completed)

	// Second identical submission hits the analysis cache and is dropped
	env.publishDocument(t, DocumentMessage{TenantID: testTenant, Text: commercialManuscript})

	select {
	case <-completed:
		t.Error("expected duplicate submission to be skipped")
	case <-time.After(200 * time.Millisecond):
	}

	analyses, err := env.repo.ListAnalyses(context.Background(), testTenant, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(analyses) != 1 {
		t.Errorf("expected 1 stored analysis, got %d", len(analyses))
	}
}

func TestWorkerResolvesStoredDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := ingest.NewDocument(testTenant, "stored.txt", commercialManuscript)
	if err := env.repo.SaveDocument(ctx, testTenant, doc); err != nil {
		t.Fatalf("failed to save document: %v", err)
	}

	if err := env.worker.Start(Config{TenantIDs: []string{testTenant}}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	completed := env.subscribeOnce(t, domain.TopicAnalysisCompleted)
	time.Sleep(10 * time.Millisecond)

	env.publishDocument(t, DocumentMessage{TenantID: testTenant, DocumentID: doc.ID})

	msg := waitFor(t, completed)

	var analysis domain.Analysis
	if err := json.Unmarshal(msg.Payload, &analysis); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if analysis.DocumentID != doc.ID {
		t.Errorf("expected document ID %s, got %s", doc.ID, analysis.DocumentID)
	}
	if analysis.Filename != "stored.txt" {
		t.Errorf("expected filename from stored document, got %s", analysis.Filename)
	}
}

func TestWorkerPublishesAlertForPredatoryVenue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.updater.Seed(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := env.worker.Start(Config{TenantIDs: []string{testTenant}}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	alerts := env.subscribeOnce(t, domain.TopicAlert)
	time.Sleep(10 * time.Millisecond)

	env.publishDocument(t, DocumentMessage{
		TenantID: testTenant,
		Text: "Novel Approaches to Protein Folding\n" +
			"ISSN: 1234-5678\n" +
			"Funding: National Science Foundation grant 123.\n" +
			"Conflict of interest: none declared.\n",
	})

	msg := waitFor(t, alerts)

	var analysis domain.Analysis
	if err := json.Unmarshal(msg.Payload, &analysis); err != nil {
		t.Fatalf("failed to decode alert payload: %v", err)
	}
	if analysis.Score != 100 {
		t.Errorf("expected forced score 100, got %d", analysis.Score)
	}
	if analysis.OverallRisk != domain.RiskHigh {
		t.Errorf("expected high risk, got %s", analysis.OverallRisk)
	}
}

func TestWorkerStats(t *testing.T) {
	env := newTestEnv(t)

	if err := env.worker.Start(Config{TenantIDs: []string{testTenant, "tenant-002"}}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stats := env.worker.GetStats()
	if stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
	}

	if err := env.worker.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	stats = env.worker.GetStats()
	if stats.SubscriptionCount != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
	}
}
