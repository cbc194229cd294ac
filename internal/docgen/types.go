// File path: internal/docgen/types.go
package docgen

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Methodology selects the document set generated for a project.
type Methodology string

const (
	MethodologyAgile   Methodology = "agile"
	MethodologyPrince2 Methodology = "prince2"
	MethodologyHybrid  Methodology = "hybrid"
)

// ParseMethodology normalizes the profile's methodology tag, defaulting to
// hybrid when the tag is unrecognized.
func ParseMethodology(raw string) Methodology {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "agile", "scrum":
		return MethodologyAgile
	case "prince2", "prince 2":
		return MethodologyPrince2
	default:
		return MethodologyHybrid
	}
}

// DocumentType is the closed set of artifacts the generator can produce.
// Each variant carries its own prompt, schema, sections, and default content
// so dispatch is exhaustive at compile time.
type DocumentType int

const (
	DocProjectCharter DocumentType = iota
	DocProductBacklog
	DocSprintPlan
	DocProjectInitiation
	DocBusinessCase
	DocRiskRegister
	DocProjectPlan
	DocQualityStrategy
	DocCommunicationPlan
	DocTechnicalLandscape
	DocComparableProjects
)

// AllDocumentTypes lists every variant, in canonical presentation order.
var AllDocumentTypes = []DocumentType{
	DocProjectCharter,
	DocProductBacklog,
	DocSprintPlan,
	DocProjectInitiation,
	DocBusinessCase,
	DocRiskRegister,
	DocProjectPlan,
	DocQualityStrategy,
	DocCommunicationPlan,
	DocTechnicalLandscape,
	DocComparableProjects,
}

// Key returns the stable wire identifier for the type.
func (t DocumentType) Key() string {
	switch t {
	case DocProjectCharter:
		return "project_charter"
	case DocProductBacklog:
		return "product_backlog"
	case DocSprintPlan:
		return "sprint_plan"
	case DocProjectInitiation:
		return "project_initiation_document"
	case DocBusinessCase:
		return "business_case"
	case DocRiskRegister:
		return "risk_register"
	case DocProjectPlan:
		return "project_plan"
	case DocQualityStrategy:
		return "quality_management_strategy"
	case DocCommunicationPlan:
		return "communication_plan"
	case DocTechnicalLandscape:
		return "technical_landscape"
	case DocComparableProjects:
		return "comparable_projects"
	default:
		return "unknown"
	}
}

// DisplayName returns the human label for the type.
func (t DocumentType) DisplayName() string {
	switch t {
	case DocProjectCharter:
		return "Project Charter"
	case DocProductBacklog:
		return "Product Backlog"
	case DocSprintPlan:
		return "Sprint Plan"
	case DocProjectInitiation:
		return "Project Initiation Document"
	case DocBusinessCase:
		return "Business Case"
	case DocRiskRegister:
		return "Risk Register"
	case DocProjectPlan:
		return "Project Plan"
	case DocQualityStrategy:
		return "Quality Management Strategy"
	case DocCommunicationPlan:
		return "Communication Plan"
	case DocTechnicalLandscape:
		return "Technical Landscape"
	case DocComparableProjects:
		return "Comparable Projects"
	default:
		return "Unknown"
	}
}

// IsResearch reports whether the document feeds the stage-one research pass.
func (t DocumentType) IsResearch() bool {
	return t == DocTechnicalLandscape || t == DocComparableProjects
}

// ParseDocumentType resolves a caller-supplied selection entry, accepting
// either the wire key or the display name.
func ParseDocumentType(raw string) (DocumentType, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range AllDocumentTypes {
		if needle == t.Key() || needle == strings.ToLower(t.DisplayName()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown document type %q", raw)
}

func (t DocumentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Key())
}

func (t *DocumentType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDocumentType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FallbackKind records which degradation path produced a document.
type FallbackKind string

const (
	FallbackNone     FallbackKind = ""
	FallbackSections FallbackKind = "sections"
	FallbackDefault  FallbackKind = "default"
)

// Metadata describes how a document was produced.
type Metadata struct {
	Type             DocumentType `json:"type"`
	Methodology      Methodology  `json:"methodology"`
	Provider         string       `json:"provider"`
	Model            string       `json:"model,omitempty"`
	PromptTokens     int64        `json:"prompt_tokens"`
	CompletionTokens int64        `json:"completion_tokens"`
	TotalTokens      int64        `json:"total_tokens"`
	CostUSD          float64      `json:"cost_usd"`
	DurationMs       int64        `json:"duration_ms"`
	Error            bool         `json:"error"`
	Fallback         FallbackKind `json:"fallback,omitempty"`
	DegradedSections []string     `json:"degraded_sections,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      time.Time    `json:"completed_at"`
}

// GeneratedDocument pairs document content with its generation metadata.
// Content stays sanitized until the orchestrator's single rehydration pass.
type GeneratedDocument struct {
	Content  json.RawMessage `json:"content"`
	Metadata Metadata        `json:"metadata"`
}

// Clone deep-copies the document so cache and caller never share buffers.
func (d GeneratedDocument) Clone() GeneratedDocument {
	out := d
	if d.Content != nil {
		out.Content = append(json.RawMessage(nil), d.Content...)
	}
	if d.Metadata.DegradedSections != nil {
		out.Metadata.DegradedSections = append([]string(nil), d.Metadata.DegradedSections...)
	}
	return out
}

// RunMetrics aggregates billing across one generation run. Only documents
// whose content came from a model call are counted; pure static defaults
// incur no cost and are excluded.
type RunMetrics struct {
	Documents        int           `json:"documents"`
	BilledDocuments  int           `json:"billed_documents"`
	PromptTokens     int64         `json:"prompt_tokens"`
	CompletionTokens int64         `json:"completion_tokens"`
	TotalTokens      int64         `json:"total_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	WallClock        time.Duration `json:"wall_clock_ns"`
}

// RunResult is what a caller receives for one generation run.
type RunResult struct {
	Documents []GeneratedDocument `json:"documents"`
	Metrics   RunMetrics          `json:"metrics"`
	CacheHit  bool                `json:"cache_hit"`
}

// Phase tags lifecycle events emitted toward the progress sink.
type Phase string

const (
	PhaseAttempt  Phase = "attempt"
	PhaseSuccess  Phase = "success"
	PhaseFailure  Phase = "failure"
	PhaseFallback Phase = "fallback-used"
)

// Event is the stable progress shape forwarded to external notifiers.
type Event struct {
	ProjectID    string       `json:"project_id"`
	DocumentType DocumentType `json:"document_type"`
	Phase        Phase        `json:"phase"`
	Attempt      int          `json:"attempt"`
	DurationMs   int64        `json:"duration_ms,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Notifier receives lifecycle events. Implementations must be safe for
// concurrent calls and must not block.
type Notifier func(Event)
