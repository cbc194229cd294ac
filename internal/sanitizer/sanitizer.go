// File path: internal/sanitizer/sanitizer.go
package sanitizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/planforge/planforge/internal/common"
)

// Stakeholder is one named party in the project profile.
type Stakeholder struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organization string `json:"organization,omitempty"`
}

// ProjectProfile is the raw caller-supplied input. It is treated as immutable
// once passed to Sanitize.
type ProjectProfile struct {
	Name         string        `json:"name"`
	Vision       string        `json:"vision"`
	BusinessCase string        `json:"business_case"`
	Description  string        `json:"description"`
	Sector       string        `json:"sector"`
	Budget       string        `json:"budget"`
	Timeline     string        `json:"timeline"`
	Methodology  string        `json:"methodology"`
	Stakeholders []Stakeholder `json:"stakeholders"`
}

// SanitizedProject is a ProjectProfile whose personally identifying values
// have been replaced by placeholder tokens. Never mutated after creation.
type SanitizedProject ProjectProfile

// Canonical governance roles get readable tokens; everything else falls back
// to numbered stakeholder tokens.
var roleTokens = map[string]string{
	"project executive": "[PROJECT_EXECUTIVE]",
	"executive":         "[PROJECT_EXECUTIVE]",
	"senior user":       "[SENIOR_USER]",
	"senior supplier":   "[SENIOR_SUPPLIER]",
	"project manager":   "[PROJECT_MANAGER]",
	"product owner":     "[PRODUCT_OWNER]",
	"scrum master":      "[SCRUM_MASTER]",
	"project sponsor":   "[PROJECT_SPONSOR]",
	"sponsor":           "[PROJECT_SPONSOR]",
}

// Sanitize tokenizes stakeholder names and organizations across every
// free-text field of the profile. Tokenization is stable: the same original
// value always maps to the same token within the returned table.
func Sanitize(profile ProjectProfile) (SanitizedProject, *MappingTable, error) {
	builder := newTableBuilder()

	for i, sh := range profile.Stakeholders {
		name := strings.TrimSpace(sh.Name)
		if len(name) < 2 {
			continue
		}
		token := builder.roleToken(sh.Role)
		if token == "" {
			token = fmt.Sprintf("[STAKEHOLDER_%d]", i+1)
		}
		if err := builder.bind(token, name); err != nil {
			return SanitizedProject{}, nil, err
		}
		if org := strings.TrimSpace(sh.Organization); len(org) >= 2 {
			if _, ok := builder.tokenFor(org); !ok {
				orgToken := fmt.Sprintf("[ORGANIZATION_%d]", builder.orgCount()+1)
				if err := builder.bind(orgToken, org); err != nil {
					return SanitizedProject{}, nil, err
				}
			}
		}
	}

	table, err := builder.table()
	if err != nil {
		return SanitizedProject{}, nil, err
	}

	replace := table.sanitizeReplacer()
	sanitized := SanitizedProject{
		Name:         replace.Replace(profile.Name),
		Vision:       replace.Replace(profile.Vision),
		BusinessCase: replace.Replace(profile.BusinessCase),
		Description:  replace.Replace(profile.Description),
		Sector:       profile.Sector,
		Budget:       profile.Budget,
		Timeline:     profile.Timeline,
		Methodology:  profile.Methodology,
	}
	for _, sh := range profile.Stakeholders {
		sanitized.Stakeholders = append(sanitized.Stakeholders, Stakeholder{
			Name:         replace.Replace(sh.Name),
			Role:         sh.Role,
			Organization: replace.Replace(sh.Organization),
		})
	}
	return sanitized, table, nil
}

// Rehydrate restores original values for every token present in text.
func Rehydrate(text string, table *MappingTable) string {
	if table == nil || table.Len() == 0 || text == "" {
		return text
	}
	return table.rehydrateReplacer().Replace(text)
}

// RehydrateJSON substitutes tokens inside serialized JSON content and
// re-parses the result. If substitution breaks the document (an original
// value containing quotes, say), the sanitized original is returned instead
// of failing: degraded output beats no output.
func RehydrateJSON(raw json.RawMessage, table *MappingTable) json.RawMessage {
	if table == nil || table.Len() == 0 || len(raw) == 0 {
		return raw
	}
	replaced := table.rehydrateReplacer().Replace(string(raw))
	if !json.Valid([]byte(replaced)) {
		common.Logger().Warn("sanitizer: rehydrated content failed to parse, returning sanitized form")
		return raw
	}
	return json.RawMessage(replaced)
}

type tableBuilder struct {
	bindings   []Binding
	byToken    map[string]string
	byValue    map[string]string
	usedTokens map[string]struct{}
	orgs       int
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{
		byToken:    make(map[string]string),
		byValue:    make(map[string]string),
		usedTokens: make(map[string]struct{}),
	}
}

func (b *tableBuilder) roleToken(role string) string {
	token, ok := roleTokens[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return ""
	}
	if _, taken := b.usedTokens[token]; taken {
		return ""
	}
	return token
}

func (b *tableBuilder) tokenFor(value string) (string, bool) {
	token, ok := b.byValue[value]
	return token, ok
}

func (b *tableBuilder) orgCount() int { return b.orgs }

func (b *tableBuilder) bind(token, value string) error {
	if existing, ok := b.byValue[value]; ok && existing != token {
		// Same value appearing twice keeps its first token.
		return nil
	}
	if _, ok := b.byValue[value]; ok {
		return nil
	}
	if existing, ok := b.byToken[token]; ok && existing != value {
		return fmt.Errorf("token %s already bound to a different value", token)
	}
	b.byToken[token] = value
	b.byValue[value] = token
	b.usedTokens[token] = struct{}{}
	b.bindings = append(b.bindings, Binding{Token: token, Value: value})
	if strings.HasPrefix(token, "[ORGANIZATION_") {
		b.orgs++
	}
	return nil
}

func (b *tableBuilder) table() (*MappingTable, error) {
	return NewMappingTable(b.bindings)
}

// Binding is one token/value pair, the persistence unit of a mapping table.
type Binding struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

// MappingTable is the reversible token map produced by Sanitize. It is
// read-only after creation and therefore safe to share across goroutines.
type MappingTable struct {
	bindings []Binding
	byToken  map[string]string
}

// NewMappingTable validates and builds a table from stored bindings. A token
// bound to two different values is a programmer error and fails immediately.
func NewMappingTable(bindings []Binding) (*MappingTable, error) {
	byToken := make(map[string]string, len(bindings))
	ordered := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		token := strings.TrimSpace(b.Token)
		if token == "" {
			return nil, fmt.Errorf("empty token in mapping table")
		}
		if existing, ok := byToken[token]; ok {
			if existing == b.Value {
				continue
			}
			return nil, fmt.Errorf("malformed mapping table: token %s bound to two values", token)
		}
		byToken[token] = b.Value
		ordered = append(ordered, Binding{Token: token, Value: b.Value})
	}
	return &MappingTable{bindings: ordered, byToken: byToken}, nil
}

// Value resolves a token back to its original value.
func (t *MappingTable) Value(token string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.byToken[token]
	return v, ok
}

// Bindings returns a copy of the table content for persistence.
func (t *MappingTable) Bindings() []Binding {
	if t == nil {
		return nil
	}
	out := make([]Binding, len(t.bindings))
	copy(out, t.bindings)
	return out
}

func (t *MappingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bindings)
}

// sanitizeReplacer replaces original values with tokens, longest value first
// so a name that contains another name is matched whole.
func (t *MappingTable) sanitizeReplacer() *strings.Replacer {
	pairs := make([]Binding, len(t.bindings))
	copy(pairs, t.bindings)
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].Value) > len(pairs[j].Value)
	})
	args := make([]string, 0, len(pairs)*2)
	for _, b := range pairs {
		args = append(args, b.Value, b.Token)
	}
	return strings.NewReplacer(args...)
}

func (t *MappingTable) rehydrateReplacer() *strings.Replacer {
	args := make([]string, 0, len(t.bindings)*2)
	for _, b := range t.bindings {
		args = append(args, b.Token, b.Value)
	}
	return strings.NewReplacer(args...)
}
