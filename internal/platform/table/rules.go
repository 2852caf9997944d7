package table

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Field names a semantic column independent of how a file spells it.
type Field string

const (
	FieldPatientID   Field = "patient_id"
	FieldPatientName Field = "patient_name"
	FieldAge         Field = "age"
	FieldGender      Field = "gender"
	FieldCondition   Field = "condition"
	FieldAlert       Field = "alert"
	FieldReason      Field = "reason"
	FieldDay         Field = "day"
	FieldExercises   Field = "exercises"
	FieldRecovery    Field = "recovery"
	FieldLoggedIn    Field = "logged_in"
)

// Rule is the lookup policy for one field.
type Rule struct {
	Field    Field    `yaml:"field" json:"field"`
	Aliases  []string `yaml:"aliases" json:"aliases"`
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules is an ordered rule table keyed by field.
type Rules struct {
	order   []Field
	byField map[Field]Rule
}

// NewRules builds a rule table from rules in the given order. A later rule
// for the same field replaces the earlier one in place.
func NewRules(rules ...Rule) *Rules {
	r := &Rules{byField: make(map[Field]Rule, len(rules))}
	r.Merge(rules...)
	return r
}

// DefaultRules returns the embedded rule table.
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded column rules: %v", err))
	}
	return NewRules(rules...)
}

// ParseRules decodes a YAML list of rules.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode column rules: %w", err)
	}
	for i, rule := range rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("column rule %d: field is required", i)
		}
		if len(rule.Aliases) == 0 && len(rule.Contains) == 0 {
			return nil, fmt.Errorf("column rule %q: needs aliases or contains", rule.Field)
		}
	}
	return rules, nil
}

// LoadRules returns the default rules overlaid with the rules in path. An
// empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column rules: %w", err)
	}
	overrides, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	rules.Merge(overrides...)
	return rules, nil
}

// Merge adds or replaces rules.
func (r *Rules) Merge(rules ...Rule) {
	for _, rule := range rules {
		if _, ok := r.byField[rule.Field]; !ok {
			r.order = append(r.order, rule.Field)
		}
		r.byField[rule.Field] = rule
	}
}

// Fields lists the fields in rule order.
func (r *Rules) Fields() []Field {
	return append([]Field(nil), r.order...)
}

// Rule returns the rule for a field.
func (r *Rules) Rule(f Field) (Rule, bool) {
	rule, ok := r.byField[f]
	return rule, ok
}

// Resolve returns the header on t that carries field f.
func (r *Rules) Resolve(t *Table, f Field) (string, bool) {
	rule, ok := r.byField[f]
	if !ok {
		return "", false
	}
	return Resolve(t, rule.Aliases, rule.Contains)
}

// Require resolves every field and returns a *ColumnError naming all of the
// ones that could not be found.
func (r *Rules) Require(t *Table, fields ...Field) (map[Field]string, error) {
	out := make(map[Field]string, len(fields))
	var missing []Field
	for _, f := range fields {
		h, ok := r.Resolve(t, f)
		if !ok {
			missing = append(missing, f)
			continue
		}
		out[f] = h
	}
	if len(missing) > 0 {
		name := ""
		if t != nil {
			name = t.Name
		}
		return out, &ColumnError{Table: name, Fields: missing}
	}
	return out, nil
}
