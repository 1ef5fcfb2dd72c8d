// Package scoring turns CRM entities into weighted relevance scores.
// Rules are CEL predicates over the entity's property map, grouped into
// per-type tables and compiled once at load. The agent consults the
// score cache before computing and supports live weight updates and
// rules-file reloads without a restart.
package scoring

import (
	_ "embed"
	"os"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/errors"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultBaseScore seeds every score before signal contributions when a
// rules file does not name its own base.
const DefaultBaseScore = 0.5

// Component names for routing a rule's contribution.
const (
	ComponentCRM      = "crm"
	ComponentIndustry = "industry"
)

var (
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

// ruleEnv returns the shared CEL environment. Rules see a single
// variable e, the entity property map.
func ruleEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(cel.Variable("e", cel.DynType))
	})
	return celEnv, celEnvErr
}

// Rule is one weighted signal predicate.
type Rule struct {
	Name      string  `yaml:"name"`
	Weight    float64 `yaml:"weight"`
	Component string  `yaml:"component"`
	When      string  `yaml:"when"`

	prg cel.Program
}

// Fires evaluates the predicate over an entity property map. Missing
// fields must be guarded with has() in the predicate itself; any
// evaluation error is returned so the caller can decide whether the
// rule simply does not fire.
func (r *Rule) Fires(props map[string]any) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{"e": props})
	if err != nil {
		return false, err
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, errors.Newf("rule %s returned %T, want bool", r.Name, out.Value())
	}
	return fired, nil
}

// RuleSet is a compiled set of rule tables keyed by entity type.
type RuleSet struct {
	BaseScore float64
	Tables    map[string][]Rule
}

// ruleFile is the YAML document shape. BaseScore is a pointer so an
// omitted base falls back to the default rather than zero.
type ruleFile struct {
	BaseScore *float64          `yaml:"base_score"`
	Tables    map[string][]Rule `yaml:"tables"`
}

// Compile parses a YAML rule document and compiles every predicate.
func Compile(data []byte) (*RuleSet, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.Wrap(err, "parse rules")
	}
	if len(rf.Tables) == 0 {
		return nil, errors.New("rules define no tables")
	}

	base := DefaultBaseScore
	if rf.BaseScore != nil {
		base = *rf.BaseScore
	}
	if base < 0 || base > 1 {
		return nil, errors.Newf("base_score %v must be between 0 and 1", base)
	}

	env, err := ruleEnv()
	if err != nil {
		return nil, errors.Wrap(err, "cel environment")
	}

	rs := &RuleSet{BaseScore: base, Tables: make(map[string][]Rule, len(rf.Tables))}
	for table, rules := range rf.Tables {
		compiled := make([]Rule, 0, len(rules))
		seen := make(map[string]bool, len(rules))
		for _, r := range rules {
			if r.Name == "" {
				return nil, errors.Newf("table %s has a rule with no name", table)
			}
			if seen[r.Name] {
				return nil, errors.Newf("table %s repeats rule %s", table, r.Name)
			}
			seen[r.Name] = true
			if r.Weight < 0 || r.Weight > 1 {
				return nil, errors.Newf("rule %s weight %v must be between 0 and 1", r.Name, r.Weight)
			}
			switch r.Component {
			case "":
				r.Component = ComponentCRM
			case ComponentCRM, ComponentIndustry:
			default:
				return nil, errors.Newf("rule %s has unknown component %s", r.Name, r.Component)
			}
			if r.When == "" {
				return nil, errors.Newf("rule %s has no predicate", r.Name)
			}

			ast, iss := env.Compile(r.When)
			if iss != nil && iss.Err() != nil {
				return nil, errors.Wrapf(iss.Err(), "compile rule %s", r.Name)
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, errors.Wrapf(err, "program rule %s", r.Name)
			}
			r.prg = prg
			compiled = append(compiled, r)
		}
		rs.Tables[table] = compiled
	}
	return rs, nil
}

// LoadRules reads and compiles a YAML rules file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rules %s", path)
	}
	rs, err := Compile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "rules %s", path)
	}
	return rs, nil
}

// DefaultRules compiles the embedded rule tables.
func DefaultRules() (*RuleSet, error) {
	return Compile(defaultRulesYAML)
}

// TableFor selects the rule table for an entity type. Deals fall back
// to the company table when no deal table is defined. The second return
// is false when the type had to fall back to company scoring outside
// that documented case, which callers surface as a warning.
func (rs *RuleSet) TableFor(entityType crm.EntityType) ([]Rule, bool) {
	if rules, ok := rs.Tables[string(entityType)]; ok {
		return rules, true
	}
	if entityType == crm.TypeDeal {
		return rs.Tables[string(crm.TypeCompany)], true
	}
	return rs.Tables[string(crm.TypeCompany)], false
}

// Weights flattens rule weights across tables by rule name.
func (rs *RuleSet) Weights() map[string]float64 {
	out := make(map[string]float64)
	for _, rules := range rs.Tables {
		for _, r := range rules {
			out[r.Name] = r.Weight
		}
	}
	return out
}

// WithBaseScore returns a copy of the rule set scoring from a
// different base.
func (rs *RuleSet) WithBaseScore(base float64) *RuleSet {
	out := rs.clone()
	out.BaseScore = base
	return out
}

// clone copies the rule set deeply enough that weight edits on the copy
// cannot touch the original. Compiled programs are shared; they are
// immutable.
func (rs *RuleSet) clone() *RuleSet {
	out := &RuleSet{BaseScore: rs.BaseScore, Tables: make(map[string][]Rule, len(rs.Tables))}
	for name, rules := range rs.Tables {
		out.Tables[name] = append([]Rule(nil), rules...)
	}
	return out
}

// setWeight updates every rule named name across all tables, returning
// false when no rule matched.
func (rs *RuleSet) setWeight(name string, weight float64) bool {
	found := false
	for _, rules := range rs.Tables {
		for i := range rules {
			if rules[i].Name == name {
				rules[i].Weight = weight
				found = true
			}
		}
	}
	return found
}
