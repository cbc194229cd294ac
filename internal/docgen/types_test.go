// File path: internal/docgen/types_test.go
package docgen

import (
	"encoding/json"
	"testing"
)

func TestParseMethodology(t *testing.T) {
	cases := map[string]Methodology{
		"agile":     MethodologyAgile,
		"Scrum":     MethodologyAgile,
		"PRINCE2":   MethodologyPrince2,
		"prince 2":  MethodologyPrince2,
		"hybrid":    MethodologyHybrid,
		"":          MethodologyHybrid,
		"waterfall": MethodologyHybrid,
	}
	for raw, want := range cases {
		if got := ParseMethodology(raw); got != want {
			t.Errorf("ParseMethodology(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseDocumentTypeAcceptsKeyAndDisplayName(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		byKey, err := ParseDocumentType(dt.Key())
		if err != nil {
			t.Fatalf("parse key %q: %v", dt.Key(), err)
		}
		byName, err := ParseDocumentType(dt.DisplayName())
		if err != nil {
			t.Fatalf("parse name %q: %v", dt.DisplayName(), err)
		}
		if byKey != dt || byName != dt {
			t.Fatalf("%s resolved to %s / %s", dt.Key(), byKey.Key(), byName.Key())
		}
	}
	if _, err := ParseDocumentType("weekly timesheet"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestDocumentTypeJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(DocProjectInitiation)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"project_initiation_document"` {
		t.Fatalf("marshal = %s", data)
	}
	var dt DocumentType
	if err := json.Unmarshal(data, &dt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dt != DocProjectInitiation {
		t.Fatalf("round trip = %s", dt.Key())
	}
}

func TestDocumentSetsStartWithResearch(t *testing.T) {
	for _, m := range []Methodology{MethodologyAgile, MethodologyPrince2, MethodologyHybrid} {
		set := DocumentSet(m)
		if len(set) == 0 {
			t.Fatalf("%s set empty", m)
		}
		if !set[0].IsResearch() || !set[1].IsResearch() {
			t.Fatalf("%s set does not lead with research documents: %v", m, set)
		}
		for _, dt := range set[2:] {
			if dt.IsResearch() {
				t.Fatalf("%s set has research document after main documents", m)
			}
		}
	}
}

func TestResolveSelection(t *testing.T) {
	// Key and display name resolve to the same document, duplicates collapse.
	resolved, err := ResolveSelection(MethodologyAgile, []string{
		"Project Charter", "project_charter", "product_backlog",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 || resolved[0] != DocProjectCharter || resolved[1] != DocProductBacklog {
		t.Fatalf("resolved = %v", resolved)
	}

	// Empty selection means the full methodology set.
	full, err := ResolveSelection(MethodologyPrince2, nil)
	if err != nil {
		t.Fatalf("resolve empty: %v", err)
	}
	if len(full) != len(DocumentSet(MethodologyPrince2)) {
		t.Fatalf("empty selection resolved to %d documents", len(full))
	}

	// A document outside the methodology set is rejected.
	if _, err := ResolveSelection(MethodologyAgile, []string{"business_case"}); err == nil {
		t.Fatal("expected error for out-of-set document")
	}
	if _, err := ResolveSelection(MethodologyAgile, []string{"nonsense"}); err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestSplitResearch(t *testing.T) {
	research, main := SplitResearch(DocumentSet(MethodologyHybrid))
	if len(research) != 2 {
		t.Fatalf("research = %v", research)
	}
	if len(main) != 4 {
		t.Fatalf("main = %v", main)
	}
	for _, dt := range main {
		if dt.IsResearch() {
			t.Fatalf("research document %s in main set", dt.Key())
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := GeneratedDocument{
		Content:  json.RawMessage(`{"a":1}`),
		Metadata: Metadata{DegradedSections: []string{"scope"}},
	}
	clone := doc.Clone()
	clone.Content[1] = 'x'
	clone.Metadata.DegradedSections[0] = "changed"
	if string(doc.Content) != `{"a":1}` {
		t.Fatalf("content shared: %s", doc.Content)
	}
	if doc.Metadata.DegradedSections[0] != "scope" {
		t.Fatal("degraded sections shared")
	}
}
