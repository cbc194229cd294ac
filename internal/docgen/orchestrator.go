// File path: internal/docgen/orchestrator.go
package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/planforge/planforge/internal/cache"
	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/llm/providers"
	"github.com/planforge/planforge/internal/queue"
	"github.com/planforge/planforge/internal/sanitizer"
)

// MappingStore persists sanitizer mapping tables so documents can be
// rehydrated after a restart. Persistence failure never blocks generation.
type MappingStore interface {
	StoreMapping(ctx context.Context, projectID string, bindings []sanitizer.Binding) error
}

// Settings tunes one orchestrator instance.
type Settings struct {
	// MaxRetries bounds primary generation attempts per document beyond the
	// first: a document gets at most MaxRetries+1 primary attempts.
	MaxRetries int
	// UseCache short-circuits identical runs through the generation cache.
	UseCache bool
	// DocumentTimeout bounds each individual model call.
	DocumentTimeout time.Duration
	// RetryBase and RetryCap shape the inline backoff used on the sequential
	// path. The concurrent path delegates backoff to the task queue.
	RetryBase time.Duration
	RetryCap  time.Duration
}

func (s *Settings) normalize() {
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.DocumentTimeout <= 0 {
		s.DocumentTimeout = 90 * time.Second
	}
	if s.RetryBase <= 0 {
		s.RetryBase = 500 * time.Millisecond
	}
	if s.RetryCap <= 0 {
		s.RetryCap = 5 * time.Second
	}
}

// Orchestrator drives full generation runs: sanitize, cache probe, two-stage
// generation, fallback, rehydrate.
type Orchestrator struct {
	provider llm.Provider
	queue    *queue.Queue
	cache    *cache.Cache[[]GeneratedDocument]
	store    MappingStore
	notify   Notifier
	settings Settings
	logger   *slog.Logger
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithMappingStore attaches mapping-table persistence.
func WithMappingStore(store MappingStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithNotifier attaches a progress event sink.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notify = n }
}

// NewOrchestrator wires an orchestrator. The queue is used only when the
// provider is not rate limited; rate-limited providers run strictly
// sequentially.
func NewOrchestrator(provider llm.Provider, q *queue.Queue, c *cache.Cache[[]GeneratedDocument], settings Settings, opts ...Option) *Orchestrator {
	settings.normalize()
	o := &Orchestrator{
		provider: provider,
		queue:    q,
		cache:    c,
		settings: settings,
		logger:   common.Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// fingerprintInput is the cache key material: everything that changes output.
type fingerprintInput struct {
	Project   sanitizer.SanitizedProject `json:"project"`
	ProjectID string                     `json:"project_id"`
	Provider  string                     `json:"provider"`
	Selection []string                   `json:"selection"`
}

// GenerateProjectDocuments runs one full generation pass for a project.
// The raw profile is sanitized before any model call; returned content is
// rehydrated exactly once, whether it came from the cache or fresh
// generation. One GeneratedDocument is returned per resolved document type,
// degraded to a static default in the worst case, so partial provider outages
// never shrink the result set.
func (o *Orchestrator) GenerateProjectDocuments(ctx context.Context, profile sanitizer.ProjectProfile, projectID string, selection []string) (*RunResult, error) {
	started := time.Now()

	sanitized, table, err := sanitizer.Sanitize(profile)
	if err != nil {
		return nil, fmt.Errorf("sanitize project profile: %w", err)
	}
	if o.store != nil {
		if err := o.store.StoreMapping(ctx, projectID, table.Bindings()); err != nil {
			o.logger.Warn("orchestrator: mapping table not persisted", "project", projectID, "error", err)
		}
	}

	methodology := ParseMethodology(profile.Methodology)
	resolved, err := ResolveSelection(methodology, selection)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(resolved))
	for i, t := range resolved {
		keys[i] = t.Key()
	}
	fingerprint := cache.Fingerprint(fingerprintInput{
		Project:   sanitized,
		ProjectID: projectID,
		Provider:  o.provider.Name(),
		Selection: keys,
	})

	if o.settings.UseCache && o.cache != nil {
		if cached, ok := o.cache.Get(fingerprint); ok {
			o.logger.Info("orchestrator: serving cached run", "project", projectID, "documents", len(cached))
			return o.finishRun(cached, table, started, true), nil
		}
	}

	researchTypes, mainTypes := SplitResearch(resolved)

	// Stage one: research documents run sequentially so stage two can see
	// their combined context.
	results := make(map[DocumentType]GeneratedDocument, len(resolved))
	var researchDocs []GeneratedDocument
	if ShouldRunResearch(researchTypes) {
		for _, t := range researchTypes {
			doc := o.generateSequential(ctx, projectID, t, methodology, sanitized, ResearchContext{})
			results[t] = doc
			if !doc.Metadata.Error {
				researchDocs = append(researchDocs, doc)
			}
		}
	}
	rc := ExtractContext(researchDocs)

	// Stage two: main documents, concurrent unless the provider is rate
	// limited.
	if o.provider.RateLimited() {
		for _, t := range mainTypes {
			results[t] = o.generateSequential(ctx, projectID, t, methodology, sanitized, rc)
		}
	} else if len(mainTypes) > 0 {
		o.generateConcurrent(ctx, projectID, mainTypes, methodology, sanitized, rc, results)
	}

	docs := make([]GeneratedDocument, 0, len(resolved))
	for _, t := range resolved {
		doc, ok := results[t]
		if !ok {
			// Defensive: the fallback chain guarantees a document per type.
			doc = o.defaultDocument(projectID, t, methodology, started, errors.New("document missing after generation"))
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents produced")
	}

	if o.settings.UseCache && o.cache != nil {
		o.cache.Set(fingerprint, cloneDocuments(docs))
	}
	return o.finishRun(docs, table, started, false), nil
}

// finishRun rehydrates content and computes run metrics. Rehydration happens
// here and nowhere else, so cached entries stay sanitized. A cache hit made
// no model calls, so its metrics bill nothing; the per-document metadata
// still carries the original generation's usage for audit.
func (o *Orchestrator) finishRun(docs []GeneratedDocument, table *sanitizer.MappingTable, started time.Time, cacheHit bool) *RunResult {
	out := cloneDocuments(docs)
	metrics := RunMetrics{Documents: len(out), WallClock: time.Since(started)}
	for i := range out {
		out[i].Content = sanitizer.RehydrateJSON(out[i].Content, table)
		if cacheHit {
			continue
		}
		md := out[i].Metadata
		if md.Fallback == FallbackDefault {
			continue
		}
		metrics.BilledDocuments++
		metrics.PromptTokens += md.PromptTokens
		metrics.CompletionTokens += md.CompletionTokens
		metrics.TotalTokens += md.TotalTokens
		metrics.CostUSD += md.CostUSD
	}
	return &RunResult{Documents: out, Metrics: metrics, CacheHit: cacheHit}
}

func cloneDocuments(docs []GeneratedDocument) []GeneratedDocument {
	out := make([]GeneratedDocument, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}

// generateSequential produces one document with inline retry and the full
// fallback chain. It always returns a document.
func (o *Orchestrator) generateSequential(ctx context.Context, projectID string, t DocumentType, m Methodology, project sanitizer.SanitizedProject, rc ResearchContext) GeneratedDocument {
	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= o.settings.MaxRetries+1; attempt++ {
		o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseAttempt, Attempt: attempt})
		doc, err := o.attemptOnce(ctx, t, m, project, rc)
		if err == nil {
			doc.Metadata.StartedAt = started
			doc.Metadata.CompletedAt = time.Now()
			o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseSuccess, Attempt: attempt, DurationMs: time.Since(started).Milliseconds()})
			return doc
		}
		lastErr = err
		o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseFailure, Attempt: attempt, Error: err.Error()})
		if !retryable(err) || attempt > o.settings.MaxRetries {
			break
		}
		if !o.sleep(ctx, o.inlineBackoff(attempt-1)) {
			break
		}
	}
	return o.fallbackChain(ctx, projectID, t, m, project, rc, started, lastErr)
}

// generateConcurrent schedules one queue task per document and, after every
// task settles, runs the fallback chain for any type that failed terminally.
func (o *Orchestrator) generateConcurrent(ctx context.Context, projectID string, types []DocumentType, m Methodology, project sanitizer.SanitizedProject, rc ResearchContext, results map[DocumentType]GeneratedDocument) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		taskTypes = make(map[string]DocumentType, len(types))
		startedAt = make(map[DocumentType]time.Time, len(types))
		attempts  = make(map[DocumentType]int, len(types))
	)

	unsubscribe := o.queue.Subscribe(func(ev queue.Event) {
		mu.Lock()
		_, ours := taskTypes[ev.TaskID]
		mu.Unlock()
		if !ours {
			return
		}
		switch ev.To {
		case queue.StateCompleted, queue.StateFailed:
			wg.Done()
		}
	})
	defer unsubscribe()

	// Producers hold at the gate until every task id is registered, so a
	// terminal event can never race its own registration.
	gate := make(chan struct{})

	wg.Add(len(types))
	for _, t := range types {
		t := t
		startedAt[t] = time.Now()
		taskID, err := o.queue.AddTask(queue.PriorityNormal, o.settings.MaxRetries, func(context.Context) error {
			<-gate
			mu.Lock()
			attempts[t]++
			attempt := attempts[t]
			mu.Unlock()
			o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseAttempt, Attempt: attempt})
			doc, err := o.attemptOnce(ctx, t, m, project, rc)
			if err != nil {
				o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseFailure, Attempt: attempt, Error: err.Error()})
				return err
			}
			mu.Lock()
			doc.Metadata.StartedAt = startedAt[t]
			doc.Metadata.CompletedAt = time.Now()
			results[t] = doc
			mu.Unlock()
			o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseSuccess, Attempt: attempt, DurationMs: time.Since(startedAt[t]).Milliseconds()})
			return nil
		})
		if err != nil {
			// Queue closed; account for the task we will never see settle.
			wg.Done()
			o.logger.Warn("orchestrator: could not schedule document", "document", t.Key(), "error", err)
			continue
		}
		mu.Lock()
		taskTypes[taskID] = t
		mu.Unlock()
	}
	close(gate)
	wg.Wait()

	for _, t := range types {
		mu.Lock()
		_, ok := results[t]
		started := startedAt[t]
		mu.Unlock()
		if ok {
			continue
		}
		results[t] = o.fallbackChain(ctx, projectID, t, m, project, rc, started, errors.New("primary generation exhausted retries"))
	}
}

// attemptOnce runs a single primary generation call with the per-document
// timeout and validates the result against the type's schema.
func (o *Orchestrator) attemptOnce(ctx context.Context, t DocumentType, m Methodology, project sanitizer.SanitizedProject, rc ResearchContext) (GeneratedDocument, error) {
	prompt, err := BuildPrompt(t, project, rc, "", 0)
	if err != nil {
		return GeneratedDocument{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, o.settings.DocumentTimeout)
	defer cancel()

	content := t.NewContent()
	comp, err := o.provider.GenerateJSON(callCtx, prompt, content)
	if err != nil {
		return GeneratedDocument{}, fmt.Errorf("generate %s: %w", t.Key(), err)
	}
	if err := content.Validate(); err != nil {
		return GeneratedDocument{}, fmt.Errorf("%s failed schema validation: %w", t.Key(), err)
	}
	canonical, err := json.Marshal(content)
	if err != nil {
		return GeneratedDocument{}, err
	}
	return GeneratedDocument{
		Content: canonical,
		Metadata: Metadata{
			Type:             t,
			Methodology:      m,
			Provider:         comp.Provider,
			Model:            comp.Model,
			PromptTokens:     comp.Usage.PromptTokens,
			CompletionTokens: comp.Usage.CompletionTokens,
			TotalTokens:      comp.Usage.TotalTokens,
			CostUSD:          comp.Usage.CostUSD,
			DurationMs:       comp.Duration.Milliseconds(),
		},
	}, nil
}

// fallbackChain degrades a document after primary attempts are exhausted:
// sectioned regeneration first, static default last. Always returns a
// document.
func (o *Orchestrator) fallbackChain(ctx context.Context, projectID string, t DocumentType, m Methodology, project sanitizer.SanitizedProject, rc ResearchContext, started time.Time, cause error) GeneratedDocument {
	if ctx.Err() == nil && !errors.Is(cause, providers.ErrStructuredUnsupported) {
		section, err := GenerateBySections(ctx, o.provider, t, project, rc)
		if err == nil && len(section.Degraded) == len(sectionSpecs(t)) {
			// Every section fell back to its default; the static default
			// document says so honestly instead of masquerading as generated.
			err = errors.New("no section produced model content")
		}
		if err == nil {
			o.logger.Info("orchestrator: document recovered via sectioned generation",
				"document", t.Key(), "degraded_sections", section.Degraded)
			o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseFallback, DurationMs: time.Since(started).Milliseconds()})
			return GeneratedDocument{
				Content: section.Content,
				Metadata: Metadata{
					Type:             t,
					Methodology:      m,
					Provider:         o.provider.Name(),
					Model:            section.Model,
					PromptTokens:     section.Usage.PromptTokens,
					CompletionTokens: section.Usage.CompletionTokens,
					TotalTokens:      section.Usage.TotalTokens,
					CostUSD:          section.Usage.CostUSD,
					DurationMs:       time.Since(started).Milliseconds(),
					Fallback:         FallbackSections,
					DegradedSections: section.Degraded,
					StartedAt:        started,
					CompletedAt:      time.Now(),
				},
			}
		} else {
			o.logger.Warn("orchestrator: sectioned generation failed", "document", t.Key(), "error", err)
		}
	}
	doc := o.defaultDocument(projectID, t, m, started, cause)
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	o.emit(Event{ProjectID: projectID, DocumentType: t, Phase: PhaseFallback, DurationMs: time.Since(started).Milliseconds(), Error: detail})
	return doc
}

// defaultDocument returns the static schema-valid default, flagged as an
// error so billing and audit can tell it apart from generated content.
func (o *Orchestrator) defaultDocument(projectID string, t DocumentType, m Methodology, started time.Time, cause error) GeneratedDocument {
	content, err := json.Marshal(DefaultContent(t))
	if err != nil {
		// Defaults are static and marshal by construction.
		o.logger.Error("orchestrator: default content failed to marshal", "document", t.Key(), "error", err)
		content = json.RawMessage(`{}`)
	}
	o.logger.Warn("orchestrator: document degraded to static default",
		"project", projectID, "document", t.Key(), "cause", cause)
	return GeneratedDocument{
		Content: content,
		Metadata: Metadata{
			Type:        t,
			Methodology: m,
			Provider:    o.provider.Name(),
			Error:       true,
			Fallback:    FallbackDefault,
			DurationMs:  time.Since(started).Milliseconds(),
			StartedAt:   started,
			CompletedAt: time.Now(),
		},
	}
}

func (o *Orchestrator) inlineBackoff(retries int) time.Duration {
	delay := o.settings.RetryBase
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= o.settings.RetryCap {
			return o.settings.RetryCap
		}
	}
	if delay > o.settings.RetryCap {
		return o.settings.RetryCap
	}
	return delay
}

// sleep waits for d or until ctx is done; reports whether the full wait
// elapsed.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.notify != nil {
		o.notify(ev)
	}
}

// retryable classifies primary-attempt errors. Structured-output-unsupported
// and context cancellation never improve on retry.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, providers.ErrStructuredUnsupported):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
