// File path: internal/docgen/schema_test.go
package docgen

import (
	"encoding/json"
	"testing"
)

func TestDefaultsSatisfySchemas(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		content := DefaultContent(dt)
		if content == nil {
			t.Fatalf("%s has no default content", dt.Key())
		}
		if err := content.Validate(); err != nil {
			t.Fatalf("%s default invalid: %v", dt.Key(), err)
		}
	}
}

func TestNewContentCoversAllTypes(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		if dt.NewContent() == nil {
			t.Fatalf("%s has no content schema", dt.Key())
		}
	}
}

func TestDefaultsRoundTripThroughSchema(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		raw, err := json.Marshal(DefaultContent(dt))
		if err != nil {
			t.Fatalf("%s marshal: %v", dt.Key(), err)
		}
		content := dt.NewContent()
		if err := json.Unmarshal(raw, content); err != nil {
			t.Fatalf("%s unmarshal: %v", dt.Key(), err)
		}
		if err := content.Validate(); err != nil {
			t.Fatalf("%s decoded default invalid: %v", dt.Key(), err)
		}
	}
}

func TestCharterValidateRejectsEmpty(t *testing.T) {
	var c CharterContent
	if err := c.Validate(); err == nil {
		t.Fatal("empty charter should not validate")
	}
}

func TestRiskRegisterValidateRequiresMitigation(t *testing.T) {
	c := RiskRegisterContent{Risks: []Risk{{Description: "vendor delay"}}}
	if err := c.Validate(); err == nil {
		t.Fatal("risk without mitigation should not validate")
	}
	c.Risks[0].Mitigation = "second vendor on standby"
	if err := c.Validate(); err != nil {
		t.Fatalf("valid register rejected: %v", err)
	}
}

func TestProjectPlanValidateRejectsInvertedStage(t *testing.T) {
	c := ProjectPlanContent{Stages: []PlanStage{{Name: "Build", StartWeek: 5, EndWeek: 2}}}
	if err := c.Validate(); err == nil {
		t.Fatal("stage ending before start should not validate")
	}
}
