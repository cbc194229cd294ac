// File path: internal/docgen/research.go
package docgen

import (
	"encoding/json"
	"strings"

	"github.com/planforge/planforge/internal/common"
)

const maxInsightsPerList = 8

// ResearchContext is the distilled output of the stage-one research documents,
// injected into every stage-two prompt.
type ResearchContext struct {
	IndustryInsights []string `json:"industry_insights"`
	SuccessFactors   []string `json:"success_factors"`
	BestPractices    []string `json:"best_practices"`
}

// Empty reports whether the context carries nothing worth injecting.
func (rc ResearchContext) Empty() bool {
	return len(rc.IndustryInsights) == 0 && len(rc.SuccessFactors) == 0 && len(rc.BestPractices) == 0
}

// ShouldRunResearch reports whether the selection needs a stage-one pass.
// Research runs exactly when research documents were resolved into the
// selection; stage two reuses whatever context that pass produced.
func ShouldRunResearch(research []DocumentType) bool {
	return len(research) > 0
}

// ExtractContext distills generated research documents into prompt-sized
// insight lists. Decoding is deliberately tolerant: a malformed or
// default-substituted research document contributes nothing rather than
// aborting the run.
func ExtractContext(docs []GeneratedDocument) ResearchContext {
	var rc ResearchContext
	for _, doc := range docs {
		switch doc.Metadata.Type {
		case DocTechnicalLandscape:
			var content TechnicalLandscapeContent
			if err := json.Unmarshal(doc.Content, &content); err != nil {
				common.Logger().Warn("docgen: skipping unreadable landscape content", "error", err)
				continue
			}
			rc.IndustryInsights = appendCapped(rc.IndustryInsights, content.CurrentTrends...)
			rc.IndustryInsights = appendCapped(rc.IndustryInsights, content.KeyTechnologies...)
			rc.BestPractices = appendCapped(rc.BestPractices, content.Opportunities...)
		case DocComparableProjects:
			var content ComparableProjectsContent
			if err := json.Unmarshal(doc.Content, &content); err != nil {
				common.Logger().Warn("docgen: skipping unreadable comparable projects content", "error", err)
				continue
			}
			rc.SuccessFactors = appendCapped(rc.SuccessFactors, content.SuccessFactors...)
			rc.BestPractices = appendCapped(rc.BestPractices, content.CommonPitfalls...)
			for _, p := range content.Projects {
				rc.IndustryInsights = appendCapped(rc.IndustryInsights, p.Lessons...)
			}
		}
	}
	return rc
}

func appendCapped(dst []string, items ...string) []string {
	for _, item := range items {
		if len(dst) >= maxInsightsPerList {
			return dst
		}
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		dst = append(dst, item)
	}
	return dst
}

// renderContext formats the research context as a prompt block.
func renderContext(rc ResearchContext) string {
	if rc.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Research context from preliminary analysis:\n")
	writeList := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(heading)
		b.WriteString(":\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	writeList("Industry insights", rc.IndustryInsights)
	writeList("Success factors from comparable projects", rc.SuccessFactors)
	writeList("Best practices", rc.BestPractices)
	return b.String()
}
