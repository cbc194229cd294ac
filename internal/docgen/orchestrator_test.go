// File path: internal/docgen/orchestrator_test.go
package docgen

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/planforge/planforge/internal/cache"
	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/queue"
	"github.com/planforge/planforge/internal/sanitizer"
)

func testProfile() sanitizer.ProjectProfile {
	return sanitizer.ProjectProfile{
		Name:        "Atlas Rollout",
		Vision:      "Unified logistics rollout platform.",
		Description: "Rollout led by Maria Keller.",
		Sector:      "logistics",
		Methodology: "hybrid",
		Stakeholders: []sanitizer.Stakeholder{
			{Name: "Maria Keller", Role: "Project Manager"},
		},
	}
}

func testSettings() Settings {
	return Settings{
		MaxRetries:      1,
		UseCache:        true,
		DocumentTimeout: time.Second,
		RetryBase:       time.Millisecond,
		RetryCap:        5 * time.Millisecond,
	}
}

func TestGenerateProducesFullSelection(t *testing.T) {
	provider := &fakeProvider{rateLimited: true, usage: llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, CostUSD: 0.01}}
	orch := NewOrchestrator(provider, nil, nil, testSettings())

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := DocumentSet(MethodologyHybrid)
	if len(result.Documents) != len(want) {
		t.Fatalf("documents = %d, want %d", len(result.Documents), len(want))
	}
	for i, doc := range result.Documents {
		if doc.Metadata.Type != want[i] {
			t.Fatalf("document %d = %s, want %s", i, doc.Metadata.Type.Key(), want[i].Key())
		}
		if doc.Metadata.Error {
			t.Fatalf("%s flagged as error", doc.Metadata.Type.Key())
		}
	}
	if result.CacheHit {
		t.Fatal("first run reported cache hit")
	}
	if result.Metrics.BilledDocuments != len(want) {
		t.Fatalf("billed = %d, want %d", result.Metrics.BilledDocuments, len(want))
	}
	if result.Metrics.TotalTokens != int64(30*len(want)) {
		t.Fatalf("total tokens = %d", result.Metrics.TotalTokens)
	}
}

func TestCacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	c := cache.New[[]GeneratedDocument](4, time.Minute)
	orch := NewOrchestrator(provider, nil, c, testSettings())

	selection := []string{"project_charter"}
	first, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := provider.callCount()
	if callsAfterFirst == 0 {
		t.Fatal("first run made no provider calls")
	}

	second, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second run missed the cache")
	}
	if provider.callCount() != callsAfterFirst {
		t.Fatalf("cache hit still called provider: %d -> %d", callsAfterFirst, provider.callCount())
	}
	if len(second.Documents) != len(first.Documents) {
		t.Fatalf("cached run returned %d documents, want %d", len(second.Documents), len(first.Documents))
	}
	// Cached content is rehydrated on the way out, same as a fresh run.
	if !strings.Contains(string(second.Documents[0].Content), "Maria Keller") {
		t.Fatalf("cached content not rehydrated: %s", second.Documents[0].Content)
	}
}

func TestCacheHitBillsNothing(t *testing.T) {
	provider := &fakeProvider{rateLimited: true, usage: llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, CostUSD: 0.01}}
	c := cache.New[[]GeneratedDocument](4, time.Minute)
	orch := NewOrchestrator(provider, nil, c, testSettings())

	selection := []string{"project_charter"}
	first, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Metrics.BilledDocuments != 1 || first.Metrics.TotalTokens != 30 {
		t.Fatalf("first run metrics = %+v", first.Metrics)
	}

	second, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second run missed the cache")
	}
	// A replayed run made no model calls; its aggregate bills nothing.
	if second.Metrics.BilledDocuments != 0 || second.Metrics.TotalTokens != 0 || second.Metrics.CostUSD != 0 {
		t.Fatalf("cached run metrics = %+v", second.Metrics)
	}
	// Per-document metadata keeps the original generation's usage for audit.
	if second.Documents[0].Metadata.TotalTokens != 30 {
		t.Fatalf("cached document usage = %+v", second.Documents[0].Metadata)
	}
}

func TestCacheKeyedByProvider(t *testing.T) {
	c := cache.New[[]GeneratedDocument](4, time.Minute)
	alpha := &fakeProvider{name: "alpha", rateLimited: true}
	beta := &fakeProvider{name: "beta", rateLimited: true}
	selection := []string{"project_charter"}

	first, err := NewOrchestrator(alpha, nil, c, testSettings()).GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first run reported cache hit")
	}

	second, err := NewOrchestrator(beta, nil, c, testSettings()).GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", selection)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.CacheHit {
		t.Fatal("different provider must not share a cache entry")
	}
	if beta.callCount() == 0 {
		t.Fatal("second provider never called")
	}
}

func TestCacheKeyedBySelection(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	c := cache.New[[]GeneratedDocument](4, time.Minute)
	orch := NewOrchestrator(provider, nil, c, testSettings())

	if _, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"project_charter"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"risk_register"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.CacheHit {
		t.Fatal("different selection must not share a cache entry")
	}
}

func TestRateLimitedRunsSequentially(t *testing.T) {
	provider := &fakeProvider{rateLimited: true, delay: 5 * time.Millisecond}
	orch := NewOrchestrator(provider, nil, nil, testSettings())

	if _, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.peakConcurrency() != 1 {
		t.Fatalf("peak concurrency = %d, want 1 for rate-limited provider", provider.peakConcurrency())
	}
}

func TestConcurrentPathUsesQueue(t *testing.T) {
	provider := &fakeProvider{delay: 10 * time.Millisecond, usage: llm.Usage{TotalTokens: 30}}
	q := queue.New(3, queue.WithBackoff(time.Millisecond, 5*time.Millisecond))
	defer q.Close()
	orch := NewOrchestrator(provider, q, nil, testSettings())

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := DocumentSet(MethodologyHybrid)
	if len(result.Documents) != len(want) {
		t.Fatalf("documents = %d, want %d", len(result.Documents), len(want))
	}
	for _, doc := range result.Documents {
		if doc.Metadata.Error {
			t.Fatalf("%s flagged as error", doc.Metadata.Type.Key())
		}
	}
	if provider.peakConcurrency() > 3 {
		t.Fatalf("peak concurrency = %d, queue limit is 3", provider.peakConcurrency())
	}
}

func TestFailingDocumentDegradesToDefault(t *testing.T) {
	provider := &fakeProvider{
		rateLimited: true,
		usage:       llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, CostUSD: 0.01},
		fail:        failDocument(DocRiskRegister),
	}
	orch := NewOrchestrator(provider, nil, nil, testSettings())

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var register *GeneratedDocument
	for i := range result.Documents {
		if result.Documents[i].Metadata.Type == DocRiskRegister {
			register = &result.Documents[i]
		}
	}
	if register == nil {
		t.Fatal("risk register missing from results")
	}
	if !register.Metadata.Error || register.Metadata.Fallback != FallbackDefault {
		t.Fatalf("risk register metadata = %+v", register.Metadata)
	}

	// Default-fallback documents are excluded from billing.
	want := DocumentSet(MethodologyHybrid)
	if result.Metrics.Documents != len(want) {
		t.Fatalf("documents metric = %d, want %d", result.Metrics.Documents, len(want))
	}
	if result.Metrics.BilledDocuments != len(want)-1 {
		t.Fatalf("billed = %d, want %d", result.Metrics.BilledDocuments, len(want)-1)
	}
	if result.Metrics.TotalTokens != int64(30*(len(want)-1)) {
		t.Fatalf("total tokens = %d", result.Metrics.TotalTokens)
	}
}

func TestAllFailuresStillReturnFullSet(t *testing.T) {
	provider := &fakeProvider{
		rateLimited: true,
		fail:        func(llm.Prompt) error { return context.DeadlineExceeded },
	}
	settings := testSettings()
	settings.MaxRetries = 0
	orch := NewOrchestrator(provider, nil, nil, settings)

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := DocumentSet(MethodologyHybrid)
	if len(result.Documents) != len(want) {
		t.Fatalf("documents = %d, want %d", len(result.Documents), len(want))
	}
	for _, doc := range result.Documents {
		if !doc.Metadata.Error || doc.Metadata.Fallback != FallbackDefault {
			t.Fatalf("%s metadata = %+v", doc.Metadata.Type.Key(), doc.Metadata)
		}
		if len(doc.Content) == 0 {
			t.Fatalf("%s has no content", doc.Metadata.Type.Key())
		}
	}
	if result.Metrics.BilledDocuments != 0 {
		t.Fatalf("billed = %d, want 0", result.Metrics.BilledDocuments)
	}
}

func TestNotifierReceivesLifecycle(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	var mu sync.Mutex
	phases := make(map[Phase]int)
	orch := NewOrchestrator(provider, nil, nil, testSettings(), WithNotifier(func(ev Event) {
		mu.Lock()
		phases[ev.Phase]++
		mu.Unlock()
		if ev.ProjectID != "proj-1" {
			t.Errorf("event project = %q", ev.ProjectID)
		}
	}))

	if _, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"project_charter"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if phases[PhaseAttempt] != 1 || phases[PhaseSuccess] != 1 {
		t.Fatalf("phases = %v", phases)
	}
}

type recordingStore struct {
	mu       sync.Mutex
	projects map[string][]sanitizer.Binding
	fail     bool
}

func (r *recordingStore) StoreMapping(_ context.Context, projectID string, bindings []sanitizer.Binding) error {
	if r.fail {
		return context.DeadlineExceeded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.projects == nil {
		r.projects = make(map[string][]sanitizer.Binding)
	}
	r.projects[projectID] = bindings
	return nil
}

func TestMappingPersistedBeforeGeneration(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	store := &recordingStore{}
	orch := NewOrchestrator(provider, nil, nil, testSettings(), WithMappingStore(store))

	if _, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"project_charter"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	bindings := store.projects["proj-1"]
	if len(bindings) == 0 {
		t.Fatal("mapping table not persisted")
	}
	if bindings[0].Token != "[PROJECT_MANAGER]" || bindings[0].Value != "Maria Keller" {
		t.Fatalf("bindings = %+v", bindings)
	}
}

func TestMappingStoreFailureIsNonFatal(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	orch := NewOrchestrator(provider, nil, nil, testSettings(), WithMappingStore(&recordingStore{fail: true}))

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"project_charter"})
	if err != nil {
		t.Fatalf("generate should survive store failure: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("documents = %d", len(result.Documents))
	}
}

func TestRehydrationRestoresNames(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	orch := NewOrchestrator(provider, nil, nil, testSettings())

	result, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"project_charter"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	content := string(result.Documents[0].Content)
	if strings.Contains(content, "[PROJECT_MANAGER]") {
		t.Fatalf("token left in output: %s", content)
	}
	if !strings.Contains(content, "Maria Keller") {
		t.Fatalf("name not restored: %s", content)
	}
}

func TestUnknownSelectionRejected(t *testing.T) {
	provider := &fakeProvider{rateLimited: true}
	orch := NewOrchestrator(provider, nil, nil, testSettings())

	if _, err := orch.GenerateProjectDocuments(context.Background(), testProfile(), "proj-1", []string{"weekly timesheet"}); err == nil {
		t.Fatal("expected selection error")
	}
}
