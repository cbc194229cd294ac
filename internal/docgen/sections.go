// File path: internal/docgen/sections.go
package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/sanitizer"
)

// SectionSpec names one independently generated slice of a document: the
// top-level JSON keys it owns and a check that the slice is usable on its own.
type SectionSpec struct {
	Name      string
	Keys      []string
	MaxTokens int
	Check     func(Validator) error
}

// SectionResult is the assembled output of a sectioned generation pass.
type SectionResult struct {
	Content  json.RawMessage
	Degraded []string
	Usage    llm.Usage
	Model    string
}

// maxParallelSections bounds concurrent section calls for one document.
const maxParallelSections = 2

// GenerateBySections regenerates a document one section at a time, running up
// to maxParallelSections calls concurrently. A section that fails generation,
// decoding, or its check is replaced by the matching slice of the static
// default and recorded as degraded; one bad section never aborts its
// siblings. The method fails outright only when the assembled document cannot
// satisfy the schema, which the caller treats as a signal to fall back to the
// full default.
func GenerateBySections(ctx context.Context, provider llm.Provider, t DocumentType, project sanitizer.SanitizedProject, rc ResearchContext) (*SectionResult, error) {
	specs := sectionSpecs(t)
	fragments, err := defaultFragments(t)
	if err != nil {
		return nil, fmt.Errorf("default fragments for %s: %w", t.Key(), err)
	}

	type outcome struct {
		fields map[string]json.RawMessage
		comp   *llm.Completion
		err    error
	}
	outcomes := make([]outcome, len(specs))

	limit := maxParallelSections
	if provider.RateLimited() {
		limit = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, spec := range specs {
		i, spec := i, spec
		group.Go(func() error {
			fields, comp, err := generateSection(groupCtx, provider, t, project, rc, spec)
			// Failures degrade to defaults rather than cancelling siblings.
			outcomes[i] = outcome{fields: fields, comp: comp, err: err}
			return nil
		})
	}
	_ = group.Wait()

	logger := common.Logger()
	result := &SectionResult{}
	merged := make(map[string]json.RawMessage, len(fragments))
	for i, spec := range specs {
		out := outcomes[i]
		if out.err != nil {
			logger.Warn("docgen: section degraded to default",
				"document", t.Key(), "section", spec.Name, "error", out.err)
			for _, key := range spec.Keys {
				merged[key] = fragments[key]
			}
			result.Degraded = append(result.Degraded, spec.Name)
			continue
		}
		for _, key := range spec.Keys {
			merged[key] = out.fields[key]
		}
		result.Usage.PromptTokens += out.comp.Usage.PromptTokens
		result.Usage.CompletionTokens += out.comp.Usage.CompletionTokens
		result.Usage.TotalTokens += out.comp.Usage.TotalTokens
		result.Usage.CostUSD += out.comp.Usage.CostUSD
		result.Model = out.comp.Model
	}

	content, err := assembleSections(t, merged)
	if err != nil {
		return nil, err
	}
	result.Content = content
	return result, nil
}

// generateSection runs one section's model call and verifies its slice of the
// schema in isolation.
func generateSection(ctx context.Context, provider llm.Provider, t DocumentType, project sanitizer.SanitizedProject, rc ResearchContext, spec SectionSpec) (map[string]json.RawMessage, *llm.Completion, error) {
	prompt, err := BuildPrompt(t, project, rc, strings.Join(spec.Keys, ", "), spec.MaxTokens)
	if err != nil {
		return nil, nil, err
	}
	fields := make(map[string]json.RawMessage)
	comp, err := provider.GenerateJSON(ctx, prompt, &fields)
	if err != nil {
		return nil, nil, err
	}
	for _, key := range spec.Keys {
		if _, ok := fields[key]; !ok {
			return nil, nil, fmt.Errorf("response missing key %q", key)
		}
	}
	if spec.Check != nil {
		partial, err := decodeFields(t, fields, spec.Keys)
		if err != nil {
			return nil, nil, err
		}
		if err := spec.Check(partial); err != nil {
			return nil, nil, err
		}
	}
	return fields, comp, nil
}

// assembleSections folds the merged key map back through the typed schema so
// the final content is guaranteed to validate.
func assembleSections(t DocumentType, merged map[string]json.RawMessage) (json.RawMessage, error) {
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	content := t.NewContent()
	if err := json.Unmarshal(raw, content); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", t.Key(), err)
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("assembled %s invalid: %w", t.Key(), err)
	}
	return json.Marshal(content)
}

// decodeFields projects a subset of top-level keys into the typed schema so a
// section check can inspect typed fields.
func decodeFields(t DocumentType, fields map[string]json.RawMessage, keys []string) (Validator, error) {
	subset := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		subset[key] = fields[key]
	}
	raw, err := json.Marshal(subset)
	if err != nil {
		return nil, err
	}
	content := t.NewContent()
	if err := json.Unmarshal(raw, content); err != nil {
		return nil, fmt.Errorf("decode section fields: %w", err)
	}
	return content, nil
}

// defaultFragments splits the static default document into its top-level keys
// so degraded sections can borrow exactly their slice.
func defaultFragments(t DocumentType) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(DefaultContent(t))
	if err != nil {
		return nil, err
	}
	fragments := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return nil, err
	}
	return fragments, nil
}

const (
	sectionMaxTokens = 1500
	wholeMaxTokens   = 3000
)

// sectionSpecs partitions a document's top-level keys. Large documents split
// into a few coherent slices; everything else regenerates as a single section,
// which still buys a smaller, more focused prompt than the primary attempt.
func sectionSpecs(t DocumentType) []SectionSpec {
	switch t {
	case DocProjectCharter:
		return []SectionSpec{
			{
				Name: "overview", Keys: []string{"overview", "objectives", "success_criteria"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					c := v.(*CharterContent)
					if strings.TrimSpace(c.Overview) == "" || len(c.Objectives) == 0 {
						return errors.New("overview and objectives required")
					}
					return nil
				},
			},
			{
				Name: "scope", Keys: []string{"scope"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					if len(v.(*CharterContent).Scope.InScope) == 0 {
						return errors.New("in-scope items required")
					}
					return nil
				},
			},
			{
				Name: "governance", Keys: []string{"stakeholders", "milestones"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					c := v.(*CharterContent)
					if len(c.Stakeholders) == 0 || len(c.Milestones) == 0 {
						return errors.New("stakeholders and milestones required")
					}
					return nil
				},
			},
		}
	case DocProjectInitiation:
		return []SectionSpec{
			{
				Name: "definition", Keys: []string{"project_definition"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					d := v.(*PIDContent).ProjectDefinition
					if strings.TrimSpace(d.Background) == "" || len(d.Objectives) == 0 {
						return errors.New("background and objectives required")
					}
					return nil
				},
			},
			{
				Name: "organization", Keys: []string{"business_case_summary", "organization"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					c := v.(*PIDContent)
					if strings.TrimSpace(c.BusinessCaseSummary) == "" || len(c.Organization.Board) == 0 {
						return errors.New("business case summary and project board required")
					}
					return nil
				},
			},
			{
				Name: "approach", Keys: []string{"quality_expectations", "tailoring"},
				MaxTokens: sectionMaxTokens,
			},
		}
	case DocBusinessCase:
		return []SectionSpec{
			{
				Name: "justification", Keys: []string{"executive_summary", "reasons"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					c := v.(*BusinessCaseContent)
					if strings.TrimSpace(c.ExecutiveSummary) == "" || len(c.Reasons) == 0 {
						return errors.New("executive summary and reasons required")
					}
					return nil
				},
			},
			{
				Name: "options", Keys: []string{"options", "costs", "timescale"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					if len(v.(*BusinessCaseContent).Options) == 0 {
						return errors.New("options required")
					}
					return nil
				},
			},
			{
				Name: "benefits", Keys: []string{"expected_benefits", "major_risks"},
				MaxTokens: sectionMaxTokens,
				Check: func(v Validator) error {
					if len(v.(*BusinessCaseContent).ExpectedBenefits) == 0 {
						return errors.New("expected benefits required")
					}
					return nil
				},
			},
		}
	default:
		keys := topLevelKeys(t)
		return []SectionSpec{{
			Name:      "document",
			Keys:      keys,
			MaxTokens: wholeMaxTokens,
			Check: func(v Validator) error {
				return v.Validate()
			},
		}}
	}
}

// topLevelKeys lists a type's schema keys, derived from the default document
// so the list can never drift from the structs.
func topLevelKeys(t DocumentType) []string {
	fragments, err := defaultFragments(t)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(fragments))
	for key := range fragments {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
