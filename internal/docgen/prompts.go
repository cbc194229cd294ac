// File path: internal/docgen/prompts.go
package docgen

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/sanitizer"
)

const systemPrompt = "You are an experienced project management consultant producing formal project documentation. " +
	"Respond with a single JSON object matching the requested structure exactly. " +
	"No prose, no markdown fences, no commentary outside the JSON. " +
	"Preserve placeholder tokens such as [PROJECT_MANAGER] or [STAKEHOLDER_1] verbatim; never invent names for them."

const researchSystemPrompt = "You are a technology and delivery research analyst. " +
	"Respond with a single JSON object matching the requested structure exactly. " +
	"Base your analysis on the sector and project description; do not fabricate named organizations."

// briefTemplate renders the sanitized project profile into prompt form.
// Executed with the GoTemplate format so field access reads naturally.
var briefTemplate = prompts.PromptTemplate{
	Template: `Project profile:
Name: {{.name}}
Sector: {{.sector}}
Methodology: {{.methodology}}
Budget: {{.budget}}
Timeline: {{.timeline}}
Vision: {{.vision}}
Business case: {{.business_case}}
Description: {{.description}}
Stakeholders:
{{.stakeholders}}`,
	InputVariables: []string{
		"name", "sector", "methodology", "budget", "timeline",
		"vision", "business_case", "description", "stakeholders",
	},
	TemplateFormat: prompts.TemplateFormatGoTemplate,
}

var taskTemplate = prompts.PromptTemplate{
	Template: `{{.brief}}
{{.research}}
Produce the {{.document}} for this project.
{{.focus}}
Return a JSON object with exactly this structure:
{{.structure}}`,
	InputVariables: []string{"brief", "research", "document", "focus", "structure"},
	TemplateFormat: prompts.TemplateFormatGoTemplate,
}

// defaultMaxTokens is generous enough for the largest single document.
const defaultMaxTokens = 4000

// BuildPrompt assembles the full generation prompt for one document type.
// The profile must already be sanitized; the prompt never sees raw names.
// An empty focus requests the whole document; a non-empty focus narrows the
// model to a subset of top-level keys for sectioned generation.
func BuildPrompt(t DocumentType, project sanitizer.SanitizedProject, rc ResearchContext, focus string, maxTokens int) (llm.Prompt, error) {
	brief, err := renderBrief(project)
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("render project brief: %w", err)
	}

	research := ""
	if !t.IsResearch() {
		research = renderContext(rc)
	}

	focusLine := ""
	if focus != "" {
		focusLine = "Focus exclusively on these top-level keys and omit all others: " + focus + "."
	}

	user, err := taskTemplate.Format(map[string]any{
		"brief":     brief,
		"research":  research,
		"document":  t.DisplayName(),
		"focus":     focusLine,
		"structure": structureHint(t),
	})
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("render %s prompt: %w", t.Key(), err)
	}

	system := systemPrompt
	if t.IsResearch() {
		system = researchSystemPrompt
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return llm.Prompt{
		System:    system,
		User:      collapseBlankLines(user),
		MaxTokens: maxTokens,
	}, nil
}

func renderBrief(project sanitizer.SanitizedProject) (string, error) {
	var sb strings.Builder
	for _, sh := range project.Stakeholders {
		sb.WriteString("- ")
		sb.WriteString(sh.Name)
		if sh.Role != "" {
			sb.WriteString(" (")
			sb.WriteString(sh.Role)
			sb.WriteString(")")
		}
		if sh.Organization != "" {
			sb.WriteString(", ")
			sb.WriteString(sh.Organization)
		}
		sb.WriteString("\n")
	}
	stakeholders := strings.TrimRight(sb.String(), "\n")
	if stakeholders == "" {
		stakeholders = "- none listed"
	}
	return briefTemplate.Format(map[string]any{
		"name":          project.Name,
		"sector":        orUnspecified(project.Sector),
		"methodology":   orUnspecified(project.Methodology),
		"budget":        orUnspecified(project.Budget),
		"timeline":      orUnspecified(project.Timeline),
		"vision":        orUnspecified(project.Vision),
		"business_case": orUnspecified(project.BusinessCase),
		"description":   orUnspecified(project.Description),
		"stakeholders":  stakeholders,
	})
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// structureHint returns the JSON skeleton the model must fill for the type.
// Key names mirror the schema structs exactly.
func structureHint(t DocumentType) string {
	switch t {
	case DocProjectCharter:
		return `{
  "overview": "string",
  "objectives": ["string"],
  "scope": {"in_scope": ["string"], "out_of_scope": ["string"]},
  "stakeholders": [{"role": "string", "name": "string", "responsibility": "string"}],
  "milestones": [{"name": "string", "target": "string"}],
  "success_criteria": ["string"]
}`
	case DocProductBacklog:
		return `{
  "epics": [{
    "title": "string",
    "description": "string",
    "priority": "high|medium|low",
    "stories": [{
      "title": "string",
      "description": "As a ..., I want ..., so that ...",
      "story_points": 1,
      "priority": "high|medium|low",
      "acceptance_criteria": ["string"]
    }]
  }]
}`
	case DocSprintPlan:
		return `{
  "sprint_length_weeks": 2,
  "ceremonies": ["string"],
  "definition_of_done": ["string"],
  "sprints": [{"number": 1, "goal": "string", "items": ["string"]}]
}`
	case DocProjectInitiation:
		return `{
  "project_definition": {"background": "string", "objectives": ["string"], "scope": ["string"], "exclusions": ["string"]},
  "business_case_summary": "string",
  "organization": {"board": [{"role": "string", "name": "string", "responsibility": "string"}], "teams": ["string"]},
  "quality_expectations": ["string"],
  "tailoring": ["string"]
}`
	case DocBusinessCase:
		return `{
  "executive_summary": "string",
  "reasons": ["string"],
  "options": [{"name": "string", "description": "string", "cost": "string"}],
  "expected_benefits": ["string"],
  "major_risks": ["string"],
  "costs": {"development": "string", "operations": "string", "total": "string"},
  "timescale": "string"
}`
	case DocRiskRegister:
		return `{
  "risks": [{
    "id": "R-001",
    "description": "string",
    "category": "technical|commercial|organizational|external",
    "probability": "high|medium|low",
    "impact": "high|medium|low",
    "mitigation": "string",
    "owner": "string"
  }]
}`
	case DocProjectPlan:
		return `{
  "stages": [{"name": "string", "start_week": 1, "end_week": 4, "products": ["string"]}],
  "dependencies": ["string"],
  "tolerances": {"time": "string", "cost": "string"}
}`
	case DocQualityStrategy:
		return `{
  "quality_criteria": ["string"],
  "methods": ["string"],
  "responsibilities": ["string"],
  "review_cadence": "string"
}`
	case DocCommunicationPlan:
		return `{
  "audiences": [{"stakeholder": "string", "interest": "string", "frequency": "string", "channel": "string"}],
  "escalation_path": ["string"]
}`
	case DocTechnicalLandscape:
		return `{
  "current_trends": ["string"],
  "key_technologies": ["string"],
  "challenges": ["string"],
  "opportunities": ["string"]
}`
	case DocComparableProjects:
		return `{
  "projects": [{"name": "string", "sector": "string", "outcome": "string", "lessons": ["string"]}],
  "success_factors": ["string"],
  "common_pitfalls": ["string"]
}`
	default:
		return "{}"
	}
}
