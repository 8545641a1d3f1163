// Package rules applies declarative condition→tag rules to product specs.
// Rules are data, not code: the default set ships compiled in and deployments
// can override it with a YAML file.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Op string

const (
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpEQ  Op = "=="
)

type Condition struct {
	Field string `yaml:"field" json:"field"`
	Op    Op     `yaml:"op" json:"op"`
	Value any    `yaml:"value" json:"value"`
}

type Rule struct {
	Label      string      `yaml:"label" json:"label"`
	Tags       []string    `yaml:"tags" json:"tags"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
}

type Result struct {
	Tags         []string
	MatchedRules []Rule
}

// Apply evaluates every rule against the spec. A rule matches when all of its
// conditions hold. Tags of matching rules union with duplicates removed,
// preserving first-seen order.
func Apply(spec map[string]any, ruleSet []Rule) Result {
	res := Result{Tags: []string{}}
	seen := map[string]struct{}{}
	for _, r := range ruleSet {
		if !matches(spec, r) {
			continue
		}
		res.MatchedRules = append(res.MatchedRules, r)
		for _, tag := range r.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			res.Tags = append(res.Tags, tag)
		}
	}
	return res
}

// Category returns the label of the first matching rule in declaration order,
// or "" when nothing matches. Declaration order is the documented tie-break.
func Category(spec map[string]any, ruleSet []Rule) string {
	for _, r := range ruleSet {
		if matches(spec, r) {
			return r.Label
		}
	}
	return ""
}

func matches(spec map[string]any, r Rule) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !holds(spec, c) {
			return false
		}
	}
	return true
}

// holds evaluates one condition. Numeric operators require the field value to
// be numeric; absent or non-numeric fields fail the condition, no coercion.
func holds(spec map[string]any, c Condition) bool {
	val, ok := spec[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpGTE, OpLTE:
		fv, ok := asNumber(val)
		if !ok {
			return false
		}
		cv, ok := asNumber(c.Value)
		if !ok {
			return false
		}
		if c.Op == OpGTE {
			return fv >= cv
		}
		return fv <= cv
	case OpEQ:
		if fv, ok := asNumber(val); ok {
			if cv, ok := asNumber(c.Value); ok {
				return fv == cv
			}
			return false
		}
		if fb, ok := val.(bool); ok {
			cb, ok := c.Value.(bool)
			return ok && fb == cb
		}
		if fs, ok := val.(string); ok {
			cs, ok := c.Value.(string)
			return ok && fs == cs
		}
		return false
	default:
		return false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// LoadFile reads a YAML rule set, replacing the default one.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s declares no rules", path)
	}
	for i, r := range doc.Rules {
		if r.Label == "" {
			return nil, fmt.Errorf("rule %d has no label", i)
		}
		for _, c := range r.Conditions {
			switch c.Op {
			case OpGTE, OpLTE, OpEQ:
			default:
				return nil, fmt.Errorf("rule %q: unsupported operator %q", r.Label, c.Op)
			}
		}
	}
	return doc.Rules, nil
}

// Default is the compiled-in rule set, in declaration order. The first
// matching label doubles as the category.
func Default() []Rule {
	return []Rule{
		{
			Label: "large-capacity",
			Tags:  []string{"large-capacity", "travel"},
			Conditions: []Condition{
				{Field: "capacity", Op: OpGTE, Value: 20000},
			},
		},
		{
			Label: "high-output",
			Tags:  []string{"high-output", "pd"},
			Conditions: []Condition{
				{Field: "outputPower", Op: OpGTE, Value: 30},
			},
		},
		{
			Label: "lightweight",
			Tags:  []string{"lightweight", "portable"},
			Conditions: []Condition{
				{Field: "weight", Op: OpLTE, Value: 200},
				{Field: "capacity", Op: OpGTE, Value: 5000},
			},
		},
		{
			Label: "type-c",
			Tags:  []string{"usb-c"},
			Conditions: []Condition{
				{Field: "hasTypeC", Op: OpEQ, Value: true},
			},
		},
	}
}
