// File path: internal/docgen/sections_test.go
package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/sanitizer"
)

func testProject() sanitizer.SanitizedProject {
	return sanitizer.SanitizedProject{
		Name:        "Atlas Rollout",
		Description: "Logistics platform rollout led by [PROJECT_MANAGER].",
		Sector:      "logistics",
		Methodology: "hybrid",
	}
}

func TestGenerateBySectionsAllSucceed(t *testing.T) {
	provider := &fakeProvider{usage: llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, CostUSD: 0.01}}
	result, err := GenerateBySections(context.Background(), provider, DocProjectCharter, testProject(), ResearchContext{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Degraded) != 0 {
		t.Fatalf("degraded sections: %v", result.Degraded)
	}
	content := &CharterContent{}
	if err := json.Unmarshal(result.Content, content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if err := content.Validate(); err != nil {
		t.Fatalf("assembled content invalid: %v", err)
	}
	// Three charter sections, three calls, usage summed across them.
	if provider.callCount() != 3 {
		t.Fatalf("calls = %d, want 3", provider.callCount())
	}
	if result.Usage.TotalTokens != 90 {
		t.Fatalf("total tokens = %d, want 90", result.Usage.TotalTokens)
	}
}

func TestGenerateBySectionsIsolatesFailure(t *testing.T) {
	provider := &fakeProvider{
		fail: func(prompt llm.Prompt) error {
			if strings.Contains(prompt.User, `these top-level keys and omit all others: scope`) {
				return errors.New("scope call failed")
			}
			return nil
		},
	}
	result, err := GenerateBySections(context.Background(), provider, DocProjectCharter, testProject(), ResearchContext{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Degraded) != 1 || result.Degraded[0] != "scope" {
		t.Fatalf("degraded = %v, want [scope]", result.Degraded)
	}
	content := &CharterContent{}
	if err := json.Unmarshal(result.Content, content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if err := content.Validate(); err != nil {
		t.Fatalf("assembled content invalid despite default substitution: %v", err)
	}
	// Sibling sections were still attempted.
	if provider.callCount() != 3 {
		t.Fatalf("calls = %d, want 3", provider.callCount())
	}
}

func TestGenerateBySectionsAllFail(t *testing.T) {
	provider := &fakeProvider{
		fail: func(llm.Prompt) error { return errors.New("provider down") },
	}
	result, err := GenerateBySections(context.Background(), provider, DocBusinessCase, testProject(), ResearchContext{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Degraded) != 3 {
		t.Fatalf("degraded = %v, want all three sections", result.Degraded)
	}
	content := &BusinessCaseContent{}
	if err := json.Unmarshal(result.Content, content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if err := content.Validate(); err != nil {
		t.Fatalf("all-default assembly invalid: %v", err)
	}
	if result.Usage.TotalTokens != 0 {
		t.Fatalf("usage = %+v for all-default assembly", result.Usage)
	}
}

func TestSectionSpecsCoverSchemaKeys(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		fragments, err := defaultFragments(dt)
		if err != nil {
			t.Fatalf("%s fragments: %v", dt.Key(), err)
		}
		covered := make(map[string]bool)
		for _, spec := range sectionSpecs(dt) {
			for _, key := range spec.Keys {
				if covered[key] {
					t.Fatalf("%s key %q owned by two sections", dt.Key(), key)
				}
				covered[key] = true
				if _, ok := fragments[key]; !ok {
					t.Fatalf("%s section %s names unknown key %q", dt.Key(), spec.Name, key)
				}
			}
		}
		for key := range fragments {
			if !covered[key] {
				t.Fatalf("%s key %q not owned by any section", dt.Key(), key)
			}
		}
	}
}
