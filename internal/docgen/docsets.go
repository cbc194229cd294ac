// File path: internal/docgen/docsets.go
package docgen

import "fmt"

// DocumentSet returns the methodology's full document list in canonical
// order, research documents first so stage one can run ahead of the main set.
func DocumentSet(m Methodology) []DocumentType {
	switch m {
	case MethodologyAgile:
		return []DocumentType{
			DocTechnicalLandscape,
			DocComparableProjects,
			DocProjectCharter,
			DocProductBacklog,
			DocSprintPlan,
		}
	case MethodologyPrince2:
		return []DocumentType{
			DocTechnicalLandscape,
			DocComparableProjects,
			DocProjectInitiation,
			DocBusinessCase,
			DocRiskRegister,
			DocProjectPlan,
			DocQualityStrategy,
			DocCommunicationPlan,
		}
	default:
		return []DocumentType{
			DocTechnicalLandscape,
			DocComparableProjects,
			DocProjectCharter,
			DocRiskRegister,
			DocProductBacklog,
			DocProjectPlan,
		}
	}
}

// ResolveSelection narrows the methodology set to the caller's selection.
// Entries match by wire key or display name and resolve to the same type
// either way; requested order is preserved, duplicates collapse to the first
// occurrence. An empty selection means the full set.
func ResolveSelection(m Methodology, selection []string) ([]DocumentType, error) {
	available := DocumentSet(m)
	if len(selection) == 0 {
		return available, nil
	}
	inSet := make(map[DocumentType]struct{}, len(available))
	for _, t := range available {
		inSet[t] = struct{}{}
	}
	seen := make(map[DocumentType]struct{}, len(selection))
	resolved := make([]DocumentType, 0, len(selection))
	for _, raw := range selection {
		t, err := ParseDocumentType(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := inSet[t]; !ok {
			return nil, fmt.Errorf("document %q not part of the %s set", raw, m)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		resolved = append(resolved, t)
	}
	return resolved, nil
}

// SplitResearch partitions a resolved selection into stage-one research
// documents and the main stage-two set, preserving order in both halves.
func SplitResearch(types []DocumentType) (research, main []DocumentType) {
	for _, t := range types {
		if t.IsResearch() {
			research = append(research, t)
		} else {
			main = append(main, t)
		}
	}
	return research, main
}
