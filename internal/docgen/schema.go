// File path: internal/docgen/schema.go
package docgen

import (
	"errors"
	"fmt"
	"strings"
)

// Validator is implemented by every document content schema.
type Validator interface {
	Validate() error
}

// NewContent returns an empty content value for the type. The switch is
// exhaustive over the DocumentType variants.
func (t DocumentType) NewContent() Validator {
	switch t {
	case DocProjectCharter:
		return &CharterContent{}
	case DocProductBacklog:
		return &BacklogContent{}
	case DocSprintPlan:
		return &SprintPlanContent{}
	case DocProjectInitiation:
		return &PIDContent{}
	case DocBusinessCase:
		return &BusinessCaseContent{}
	case DocRiskRegister:
		return &RiskRegisterContent{}
	case DocProjectPlan:
		return &ProjectPlanContent{}
	case DocQualityStrategy:
		return &QualityStrategyContent{}
	case DocCommunicationPlan:
		return &CommunicationPlanContent{}
	case DocTechnicalLandscape:
		return &TechnicalLandscapeContent{}
	case DocComparableProjects:
		return &ComparableProjectsContent{}
	default:
		return nil
	}
}

type Milestone struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

type ScopeSection struct {
	InScope    []string `json:"in_scope"`
	OutOfScope []string `json:"out_of_scope"`
}

type StakeholderEntry struct {
	Role           string `json:"role"`
	Name           string `json:"name"`
	Responsibility string `json:"responsibility"`
}

type CharterContent struct {
	Overview        string             `json:"overview"`
	Objectives      []string           `json:"objectives"`
	Scope           ScopeSection       `json:"scope"`
	Stakeholders    []StakeholderEntry `json:"stakeholders"`
	Milestones      []Milestone        `json:"milestones"`
	SuccessCriteria []string           `json:"success_criteria"`
}

func (c *CharterContent) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Overview) == "" {
		errs = append(errs, errors.New("charter overview required"))
	}
	if len(c.Objectives) == 0 {
		errs = append(errs, errors.New("charter objectives required"))
	}
	if len(c.Scope.InScope) == 0 {
		errs = append(errs, errors.New("charter in-scope items required"))
	}
	if len(c.Stakeholders) == 0 {
		errs = append(errs, errors.New("charter stakeholders required"))
	}
	if len(c.Milestones) == 0 {
		errs = append(errs, errors.New("charter milestones required"))
	}
	return errors.Join(errs...)
}

type Story struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	StoryPoints        int      `json:"story_points"`
	Priority           string   `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

type Epic struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Stories     []Story `json:"stories"`
}

type BacklogContent struct {
	Epics []Epic `json:"epics"`
}

func (c *BacklogContent) Validate() error {
	if len(c.Epics) == 0 {
		return errors.New("backlog requires at least one epic")
	}
	for i, epic := range c.Epics {
		if strings.TrimSpace(epic.Title) == "" {
			return fmt.Errorf("backlog epic %d missing title", i+1)
		}
		if len(epic.Stories) == 0 {
			return fmt.Errorf("backlog epic %q has no stories", epic.Title)
		}
	}
	return nil
}

type SprintEntry struct {
	Number int      `json:"number"`
	Goal   string   `json:"goal"`
	Items  []string `json:"items"`
}

type SprintPlanContent struct {
	SprintLengthWeeks int           `json:"sprint_length_weeks"`
	Ceremonies        []string      `json:"ceremonies"`
	DefinitionOfDone  []string      `json:"definition_of_done"`
	Sprints           []SprintEntry `json:"sprints"`
}

func (c *SprintPlanContent) Validate() error {
	var errs []error
	if c.SprintLengthWeeks <= 0 {
		errs = append(errs, errors.New("sprint length must be positive"))
	}
	if len(c.Sprints) == 0 {
		errs = append(errs, errors.New("sprint plan requires sprints"))
	}
	if len(c.DefinitionOfDone) == 0 {
		errs = append(errs, errors.New("definition of done required"))
	}
	return errors.Join(errs...)
}

type ProjectDefinition struct {
	Background string   `json:"background"`
	Objectives []string `json:"objectives"`
	Scope      []string `json:"scope"`
	Exclusions []string `json:"exclusions"`
}

type OrganizationStructure struct {
	Board []StakeholderEntry `json:"board"`
	Teams []string           `json:"teams"`
}

type PIDContent struct {
	ProjectDefinition   ProjectDefinition     `json:"project_definition"`
	BusinessCaseSummary string                `json:"business_case_summary"`
	Organization        OrganizationStructure `json:"organization"`
	QualityExpectations []string              `json:"quality_expectations"`
	Tailoring           []string              `json:"tailoring"`
}

func (c *PIDContent) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ProjectDefinition.Background) == "" {
		errs = append(errs, errors.New("pid background required"))
	}
	if len(c.ProjectDefinition.Objectives) == 0 {
		errs = append(errs, errors.New("pid objectives required"))
	}
	if strings.TrimSpace(c.BusinessCaseSummary) == "" {
		errs = append(errs, errors.New("pid business case summary required"))
	}
	if len(c.Organization.Board) == 0 {
		errs = append(errs, errors.New("pid project board required"))
	}
	return errors.Join(errs...)
}

type BusinessOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        string `json:"cost"`
}

type CostBreakdown struct {
	Development string `json:"development"`
	Operations  string `json:"operations"`
	Total       string `json:"total"`
}

type BusinessCaseContent struct {
	ExecutiveSummary string           `json:"executive_summary"`
	Reasons          []string         `json:"reasons"`
	Options          []BusinessOption `json:"options"`
	ExpectedBenefits []string         `json:"expected_benefits"`
	MajorRisks       []string         `json:"major_risks"`
	Costs            CostBreakdown    `json:"costs"`
	Timescale        string           `json:"timescale"`
}

func (c *BusinessCaseContent) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ExecutiveSummary) == "" {
		errs = append(errs, errors.New("business case executive summary required"))
	}
	if len(c.Reasons) == 0 {
		errs = append(errs, errors.New("business case reasons required"))
	}
	if len(c.Options) == 0 {
		errs = append(errs, errors.New("business case options required"))
	}
	if len(c.ExpectedBenefits) == 0 {
		errs = append(errs, errors.New("business case benefits required"))
	}
	return errors.Join(errs...)
}

type Risk struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Impact      string `json:"impact"`
	Mitigation  string `json:"mitigation"`
	Owner       string `json:"owner"`
}

type RiskRegisterContent struct {
	Risks []Risk `json:"risks"`
}

func (c *RiskRegisterContent) Validate() error {
	if len(c.Risks) == 0 {
		return errors.New("risk register requires at least one risk")
	}
	for i, r := range c.Risks {
		if strings.TrimSpace(r.Description) == "" {
			return fmt.Errorf("risk %d missing description", i+1)
		}
		if strings.TrimSpace(r.Mitigation) == "" {
			return fmt.Errorf("risk %d missing mitigation", i+1)
		}
	}
	return nil
}

type PlanStage struct {
	Name      string   `json:"name"`
	StartWeek int      `json:"start_week"`
	EndWeek   int      `json:"end_week"`
	Products  []string `json:"products"`
}

type Tolerances struct {
	Time string `json:"time"`
	Cost string `json:"cost"`
}

type ProjectPlanContent struct {
	Stages       []PlanStage `json:"stages"`
	Dependencies []string    `json:"dependencies"`
	Tolerances   Tolerances  `json:"tolerances"`
}

func (c *ProjectPlanContent) Validate() error {
	if len(c.Stages) == 0 {
		return errors.New("project plan requires stages")
	}
	for _, s := range c.Stages {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New("project plan stage missing name")
		}
		if s.EndWeek < s.StartWeek {
			return fmt.Errorf("stage %q ends before it starts", s.Name)
		}
	}
	return nil
}

type QualityStrategyContent struct {
	QualityCriteria  []string `json:"quality_criteria"`
	Methods          []string `json:"methods"`
	Responsibilities []string `json:"responsibilities"`
	ReviewCadence    string   `json:"review_cadence"`
}

func (c *QualityStrategyContent) Validate() error {
	var errs []error
	if len(c.QualityCriteria) == 0 {
		errs = append(errs, errors.New("quality criteria required"))
	}
	if len(c.Methods) == 0 {
		errs = append(errs, errors.New("quality methods required"))
	}
	return errors.Join(errs...)
}

type Audience struct {
	Stakeholder string `json:"stakeholder"`
	Interest    string `json:"interest"`
	Frequency   string `json:"frequency"`
	Channel     string `json:"channel"`
}

type CommunicationPlanContent struct {
	Audiences      []Audience `json:"audiences"`
	EscalationPath []string   `json:"escalation_path"`
}

func (c *CommunicationPlanContent) Validate() error {
	if len(c.Audiences) == 0 {
		return errors.New("communication plan requires audiences")
	}
	return nil
}

type TechnicalLandscapeContent struct {
	CurrentTrends   []string `json:"current_trends"`
	KeyTechnologies []string `json:"key_technologies"`
	Challenges      []string `json:"challenges"`
	Opportunities   []string `json:"opportunities"`
}

func (c *TechnicalLandscapeContent) Validate() error {
	if len(c.CurrentTrends) == 0 && len(c.KeyTechnologies) == 0 {
		return errors.New("technical landscape requires trends or technologies")
	}
	return nil
}

type ComparableProject struct {
	Name    string   `json:"name"`
	Sector  string   `json:"sector"`
	Outcome string   `json:"outcome"`
	Lessons []string `json:"lessons"`
}

type ComparableProjectsContent struct {
	Projects       []ComparableProject `json:"projects"`
	SuccessFactors []string            `json:"success_factors"`
	CommonPitfalls []string            `json:"common_pitfalls"`
}

func (c *ComparableProjectsContent) Validate() error {
	if len(c.Projects) == 0 {
		return errors.New("comparable projects requires at least one project")
	}
	return nil
}
