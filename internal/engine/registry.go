package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"finmentor/internal/domain"
)

//go:embed registry.json
var defaultRegistryJSON []byte

// Band is one step of a banded severity policy. Bands are ordered by
// ascending threshold; a metric below the threshold takes the band's
// severity. A nil threshold marks the open-ended final band.
type Band struct {
	Threshold *float64        `json:"threshold"`
	Severity  domain.Severity `json:"severity"`
}

// SeverityRule is one step of a threshold severity policy: a compact
// condition string such as ">= 0.5" paired with the severity it grants.
type SeverityRule struct {
	Condition string          `json:"condition"`
	Severity  domain.Severity `json:"severity"`
}

// SeverityPolicy decides how hard a triggered rule should hit.
type SeverityPolicy struct {
	Type   string          `json:"type"`
	Value  domain.Severity `json:"value,omitempty"`
	Metric string          `json:"metric,omitempty"`
	Bands  []Band          `json:"bands,omitempty"`
	Rules  []SeverityRule  `json:"rules,omitempty"`
}

// RuleDefinition is one declarative rule from the registry document.
type RuleDefinition struct {
	ID               string         `json:"id"`
	Bucket           string         `json:"bucket"`
	Name             string         `json:"name"`
	Enabled          bool           `json:"enabled"`
	Priority         int            `json:"priority"`
	Weight           float64        `json:"weight"`
	Condition        Condition      `json:"condition"`
	Severity         SeverityPolicy `json:"severity"`
	Params           map[string]any `json:"params"`
	MessageTemplate  string         `json:"message_template"`
	DataRefs         []string       `json:"data_refs"`
	RecommendationID string         `json:"recommendation_id,omitempty"`
}

// UnmarshalJSON seeds omitted fields with the registry defaults before
// decoding: rules are enabled, priority 5, weight 1.
func (r *RuleDefinition) UnmarshalJSON(data []byte) error {
	type plain RuleDefinition
	tmp := plain{Enabled: true, Priority: 5, Weight: 1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Params == nil {
		tmp.Params = map[string]any{}
	}
	if tmp.DataRefs == nil {
		tmp.DataRefs = []string{}
	}
	*r = RuleDefinition(tmp)
	return nil
}

// RuleGroup names a bucket of related rules for presentation.
type RuleGroup struct {
	Name  string   `json:"name"`
	Rules []string `json:"rules"`
}

type registryFile struct {
	Rules      []RuleDefinition     `json:"rules"`
	RuleGroups map[string]RuleGroup `json:"rule_groups"`
}

// Registry holds the validated rule set and its grouping metadata.
type Registry struct {
	rules  []RuleDefinition
	byID   map[string]int
	groups map[string]RuleGroup
}

// ParseRegistry decodes and validates a registry document. Every rule
// id must be unique, every condition tree well formed and every
// severity policy of a known type; a broken registry is rejected whole.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc registryFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule registry: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule registry contains no rules")
	}

	reg := &Registry{
		rules:  doc.Rules,
		byID:   make(map[string]int, len(doc.Rules)),
		groups: doc.RuleGroups,
	}
	if reg.groups == nil {
		reg.groups = map[string]RuleGroup{}
	}

	for i, rule := range reg.rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule at index %d: missing id", i)
		}
		if _, dup := reg.byID[rule.ID]; dup {
			return nil, fmt.Errorf("rule %s: duplicate id", rule.ID)
		}
		if err := rule.Condition.validate(); err != nil {
			return nil, fmt.Errorf("rule %s: condition: %w", rule.ID, err)
		}
		if err := validateSeverityPolicy(rule.Severity); err != nil {
			return nil, fmt.Errorf("rule %s: severity: %w", rule.ID, err)
		}
		reg.byID[rule.ID] = i
	}

	for key, group := range reg.groups {
		for _, id := range group.Rules {
			if _, ok := reg.byID[id]; !ok {
				return nil, fmt.Errorf("rule group %s: unknown rule id %s", key, id)
			}
		}
	}
	return reg, nil
}

// LoadRegistry reads a registry document from disk.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule registry: %w", err)
	}
	return ParseRegistry(data)
}

// DefaultRegistry parses the registry document embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultRegistryJSON)
}

func validateSeverityPolicy(p SeverityPolicy) error {
	switch p.Type {
	case "fixed":
		if p.Value != "" && !p.Value.IsValid() {
			return fmt.Errorf("fixed: invalid severity %q", p.Value)
		}
	case "banded":
		if p.Metric == "" {
			return fmt.Errorf("banded: metric is required")
		}
		if len(p.Bands) == 0 {
			return fmt.Errorf("banded: at least one band is required")
		}
		prev := math.Inf(-1)
		for i, band := range p.Bands {
			if !band.Severity.IsValid() {
				return fmt.Errorf("banded: band %d: invalid severity %q", i, band.Severity)
			}
			if band.Threshold == nil {
				if i != len(p.Bands)-1 {
					return fmt.Errorf("banded: open-ended band must be last")
				}
				continue
			}
			if *band.Threshold <= prev {
				return fmt.Errorf("banded: thresholds must be strictly ascending")
			}
			prev = *band.Threshold
		}
	case "threshold":
		if p.Metric == "" {
			return fmt.Errorf("threshold: metric is required")
		}
		if len(p.Rules) == 0 {
			return fmt.Errorf("threshold: at least one severity rule is required")
		}
		for i, rule := range p.Rules {
			if _, _, err := parseThresholdCondition(rule.Condition); err != nil {
				return fmt.Errorf("threshold: rule %d: %w", i, err)
			}
			if !rule.Severity.IsValid() {
				return fmt.Errorf("threshold: rule %d: invalid severity %q", i, rule.Severity)
			}
		}
	default:
		return fmt.Errorf("unknown policy type %q", p.Type)
	}
	return nil
}

// EnabledRules returns the enabled rules in evaluation order: ascending
// priority, ties broken by id.
func (r *Registry) EnabledRules() []RuleDefinition {
	out := make([]RuleDefinition, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Rule looks a rule up by id, enabled or not.
func (r *Registry) Rule(id string) (RuleDefinition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return RuleDefinition{}, false
	}
	return r.rules[i], true
}

// Rules returns every rule in document order.
func (r *Registry) Rules() []RuleDefinition {
	out := make([]RuleDefinition, len(r.rules))
	copy(out, r.rules)
	return out
}

// RulesByBucket returns the enabled rules carrying the given bucket tag.
func (r *Registry) RulesByBucket(bucket string) []RuleDefinition {
	var out []RuleDefinition
	for _, rule := range r.rules {
		if rule.Enabled && rule.Bucket == bucket {
			out = append(out, rule)
		}
	}
	return out
}

// Groups returns the rule grouping table from the registry document.
func (r *Registry) Groups() map[string]RuleGroup {
	out := make(map[string]RuleGroup, len(r.groups))
	for key, group := range r.groups {
		group.Rules = append([]string(nil), group.Rules...)
		out[key] = group
	}
	return out
}

// Len reports the total number of rules, enabled or not.
func (r *Registry) Len() int {
	return len(r.rules)
}
