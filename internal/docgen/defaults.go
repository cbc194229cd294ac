// File path: internal/docgen/defaults.go
package docgen

// DefaultContent returns the static, schema-valid fallback document for the
// type. Defaults are deliberately generic; they carry placeholder tokens
// untouched so rehydration still applies.
func DefaultContent(t DocumentType) Validator {
	switch t {
	case DocProjectCharter:
		return &CharterContent{
			Overview:   "This charter frames the project at a high level. Content could not be generated automatically and should be refined by the project team.",
			Objectives: []string{"Deliver the agreed scope within budget and timeline", "Establish clear governance and decision paths"},
			Scope: ScopeSection{
				InScope:    []string{"Core deliverables described in the project profile"},
				OutOfScope: []string{"Work not covered by the approved business case"},
			},
			Stakeholders: []StakeholderEntry{
				{Role: "Project Manager", Name: "[PROJECT_MANAGER]", Responsibility: "Day-to-day delivery management"},
				{Role: "Project Executive", Name: "[PROJECT_EXECUTIVE]", Responsibility: "Overall accountability and funding"},
			},
			Milestones: []Milestone{
				{Name: "Project kickoff", Target: "Week 1"},
				{Name: "First delivery review", Target: "Mid-project"},
				{Name: "Project closure", Target: "End of timeline"},
			},
			SuccessCriteria: []string{"Deliverables accepted by the senior user", "Budget tolerance respected"},
		}
	case DocProductBacklog:
		return &BacklogContent{
			Epics: []Epic{{
				Title:       "Foundation",
				Description: "Initial setup and core capability work. Replace with generated backlog content.",
				Priority:    "high",
				Stories: []Story{{
					Title:              "Establish the delivery foundation",
					Description:        "Set up the environments, tooling, and working agreements the team needs.",
					StoryPoints:        5,
					Priority:           "high",
					AcceptanceCriteria: []string{"Team can deliver an increment end to end"},
				}},
			}},
		}
	case DocSprintPlan:
		return &SprintPlanContent{
			SprintLengthWeeks: 2,
			Ceremonies:        []string{"Sprint planning", "Daily standup", "Sprint review", "Retrospective"},
			DefinitionOfDone:  []string{"Code reviewed", "Tests passing", "Accepted by the product owner"},
			Sprints: []SprintEntry{{
				Number: 1,
				Goal:   "Establish the delivery foundation",
				Items:  []string{"Environment setup", "Backlog refinement"},
			}},
		}
	case DocProjectInitiation:
		return &PIDContent{
			ProjectDefinition: ProjectDefinition{
				Background: "Initiation details could not be generated automatically. This document records the baseline structure for the project board to refine.",
				Objectives: []string{"Deliver the approved scope", "Maintain agreed tolerances"},
				Scope:      []string{"Deliverables named in the project profile"},
				Exclusions: []string{"Anything outside the approved business case"},
			},
			BusinessCaseSummary: "The project is justified by the approved business case; see the business case document for detail.",
			Organization: OrganizationStructure{
				Board: []StakeholderEntry{
					{Role: "Executive", Name: "[PROJECT_EXECUTIVE]", Responsibility: "Business assurance"},
					{Role: "Senior User", Name: "[SENIOR_USER]", Responsibility: "User assurance"},
				},
				Teams: []string{"Delivery team"},
			},
			QualityExpectations: []string{"Deliverables meet the acceptance criteria agreed at initiation"},
			Tailoring:           []string{"Processes tailored to project scale"},
		}
	case DocBusinessCase:
		return &BusinessCaseContent{
			ExecutiveSummary: "A generated business case was not available; this baseline records the standard options for board review.",
			Reasons:          []string{"Address the business need described in the project profile"},
			Options: []BusinessOption{
				{Name: "Do nothing", Description: "Accept the status quo and its costs", Cost: "None"},
				{Name: "Do the project", Description: "Deliver the proposed scope", Cost: "Per approved budget"},
			},
			ExpectedBenefits: []string{"Benefits as outlined in the project profile"},
			MajorRisks:       []string{"Delivery risk pending detailed assessment"},
			Costs:            CostBreakdown{Development: "Per approved budget", Operations: "To be assessed", Total: "Per approved budget"},
			Timescale:        "Per the project timeline",
		}
	case DocRiskRegister:
		return &RiskRegisterContent{
			Risks: []Risk{{
				ID:          "R-001",
				Description: "Automated risk analysis was unavailable; a full risk workshop is required.",
				Category:    "process",
				Probability: "medium",
				Impact:      "medium",
				Mitigation:  "Run a risk identification workshop with the project board",
				Owner:       "[PROJECT_MANAGER]",
			}},
		}
	case DocProjectPlan:
		return &ProjectPlanContent{
			Stages: []PlanStage{
				{Name: "Initiation", StartWeek: 1, EndWeek: 2, Products: []string{"Initiation documentation"}},
				{Name: "Delivery", StartWeek: 3, EndWeek: 10, Products: []string{"Core deliverables"}},
				{Name: "Closure", StartWeek: 11, EndWeek: 12, Products: []string{"Closure report"}},
			},
			Dependencies: []string{"Stage approvals from the project board"},
			Tolerances:   Tolerances{Time: "+/- 1 week per stage", Cost: "+/- 10%"},
		}
	case DocQualityStrategy:
		return &QualityStrategyContent{
			QualityCriteria:  []string{"Deliverables meet their acceptance criteria"},
			Methods:          []string{"Peer review", "Acceptance testing"},
			Responsibilities: []string{"[PROJECT_MANAGER] coordinates quality reviews"},
			ReviewCadence:    "Per stage boundary",
		}
	case DocCommunicationPlan:
		return &CommunicationPlanContent{
			Audiences: []Audience{{
				Stakeholder: "[PROJECT_EXECUTIVE]",
				Interest:    "Delivery status and exceptions",
				Frequency:   "Weekly",
				Channel:     "Status report",
			}},
			EscalationPath: []string{"Project Manager", "Project Executive"},
		}
	case DocTechnicalLandscape:
		return &TechnicalLandscapeContent{
			CurrentTrends:   []string{"Landscape research was unavailable for this run"},
			KeyTechnologies: []string{"To be assessed by the delivery team"},
			Challenges:      []string{"Research pass did not complete"},
			Opportunities:   []string{"Re-run research once the provider is available"},
		}
	case DocComparableProjects:
		return &ComparableProjectsContent{
			Projects: []ComparableProject{{
				Name:    "Comparable project research unavailable",
				Sector:  "unknown",
				Outcome: "n/a",
				Lessons: []string{"Re-run research once the provider is available"},
			}},
			SuccessFactors: []string{"Clear scope and engaged stakeholders"},
			CommonPitfalls: []string{"Underestimated integration effort"},
		}
	default:
		return nil
	}
}
