package guestentries

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/duncanmcclean/guest-entries/internal/common"
)

// Validator is a custom rule set a form opts into through _request.
type Validator interface {
	Validate(ctx context.Context, fields map[string]any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, fields map[string]any) error

func (f ValidatorFunc) Validate(ctx context.Context, fields map[string]any) error {
	return f(ctx, fields)
}

type rule struct {
	name string
	arg  string
}

// RuleSet validates top-level fields against declarative rules such as
// "required", "max:255" or "in:a,b".
type RuleSet struct {
	fields []string
	rules  map[string][]rule
}

var knownRules = map[string]bool{
	"required": true,
	"string":   true,
	"numeric":  true,
	"email":    true,
	"url":      true,
	"min":      true,
	"max":      true,
	"in":       true,
}

// NewRuleSet compiles field => rules. Unknown rules and bad arguments are
// configuration errors.
func NewRuleSet(spec map[string][]string) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[string][]rule, len(spec))}
	for field, rules := range spec {
		for _, raw := range rules {
			name, arg, _ := strings.Cut(strings.TrimSpace(raw), ":")
			if !knownRules[name] {
				return nil, fmt.Errorf("%w: unknown rule %q on %s", common.ErrConfiguration, raw, field)
			}
			if name == "min" || name == "max" {
				if _, err := strconv.ParseFloat(arg, 64); err != nil {
					return nil, fmt.Errorf("%w: rule %q on %s needs a number", common.ErrConfiguration, raw, field)
				}
			}
			rs.rules[field] = append(rs.rules[field], rule{name: name, arg: arg})
		}
		rs.fields = append(rs.fields, field)
	}
	sort.Strings(rs.fields)
	return rs, nil
}

func (rs *RuleSet) Validate(_ context.Context, fields map[string]any) error {
	verr := &common.ValidationError{}
	for _, field := range rs.fields {
		rules := rs.rules[field]
		value, present := fields[field]
		if !present || isBlank(value) {
			if hasRule(rules, "required") {
				verr.Add(field, fmt.Sprintf("The %s field is required.", field))
			}
			continue
		}
		numeric := hasRule(rules, "numeric")
		for _, r := range rules {
			if msg := checkRule(field, r, value, numeric); msg != "" {
				verr.Add(field, msg)
			}
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func checkRule(field string, r rule, value any, numeric bool) string {
	s, isString := value.(string)
	switch r.name {
	case "string":
		if !isString {
			return fmt.Sprintf("The %s field must be a string.", field)
		}
	case "numeric":
		if _, err := strconv.ParseFloat(s, 64); !isString || err != nil {
			return fmt.Sprintf("The %s field must be a number.", field)
		}
	case "email":
		addr, err := mail.ParseAddress(s)
		if !isString || err != nil || addr.Address != s {
			return fmt.Sprintf("The %s field must be a valid email address.", field)
		}
	case "url":
		u, err := url.ParseRequestURI(s)
		if !isString || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("The %s field must be a valid URL.", field)
		}
	case "in":
		for _, option := range strings.Split(r.arg, ",") {
			if isString && s == option {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "min", "max":
		limit, _ := strconv.ParseFloat(r.arg, 64)
		size, unit := measure(value, numeric)
		if r.name == "min" && size < limit {
			return fmt.Sprintf("The %s field must be at least %s%s.", field, r.arg, unit)
		}
		if r.name == "max" && size > limit {
			return fmt.Sprintf("The %s field must not be greater than %s%s.", field, r.arg, unit)
		}
	}
	return ""
}

// measure sizes value the way min and max compare it: numbers by value,
// strings by characters, lists by items and files by kilobytes.
func measure(value any, numeric bool) (float64, string) {
	switch v := value.(type) {
	case string:
		if numeric {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return n, ""
			}
		}
		return float64(utf8.RuneCountInString(v)), " characters"
	case []any:
		return float64(len(v)), " items"
	case map[string]any:
		return float64(len(v)), " items"
	case *UploadedFile:
		return float64(v.Size()) / 1024, " kilobytes"
	default:
		return 0, ""
	}
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func hasRule(rules []rule, name string) bool {
	for _, r := range rules {
		if r.name == name {
			return true
		}
	}
	return false
}

// ValidatorRegistry maps _request names to validators.
type ValidatorRegistry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{validators: make(map[string]Validator)}
}

func (r *ValidatorRegistry) Register(name string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = v
}

// RegisterRules compiles and registers a declarative rule set.
func (r *ValidatorRegistry) RegisterRules(name string, spec map[string][]string) error {
	rs, err := NewRuleSet(spec)
	if err != nil {
		return fmt.Errorf("validator %s: %w", name, err)
	}
	r.Register(name, rs)
	return nil
}

// Get returns the validator registered as name. An unknown name is a
// configuration error: the form references a validator that is not there.
func (r *ValidatorRegistry) Get(name string) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	if !ok {
		return nil, fmt.Errorf("%w: validator %q is not registered", common.ErrConfiguration, name)
	}
	return v, nil
}
