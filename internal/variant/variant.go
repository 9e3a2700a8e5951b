package variant

import (
	"fmt"
	"sort"
	"strings"
)

// Variant is one concrete assignment of build-configuration variables:
// variable name to value, where a value is a scalar or a nested mapping
// (e.g. pin_run_as_build keyed by package name).
type Variant map[string]interface{}

// Reserved keys that configure the engine rather than name a package.
const (
	KeyExtendKeys     = "extend_keys"
	KeyPinRunAsBuild  = "pin_run_as_build"
	KeyIgnoreVersion  = "ignore_version"
	KeyTargetPlatform = "target_platform"
)

// PinPolicy is a min/max truncation policy for pin_run_as_build entries.
// Each pin is either empty (no bound) or a dotted pattern like "x.x".
type PinPolicy struct {
	MinPin string `yaml:"min_pin" json:"min_pin"`
	MaxPin string `yaml:"max_pin" json:"max_pin"`
}

// Clone returns a deep copy of the variant. Every per-job variant is an
// independent copy from the moment it is bound; clones never alias a
// sibling's nested configuration.
func (v Variant) Clone() Variant {
	clone := make(Variant, len(v))
	for key, value := range v {
		clone[key] = deepCopyValue(value)
	}
	return clone
}

func deepCopyValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		copied := make(map[string]interface{}, len(typed))
		for k, val := range typed {
			copied[k] = deepCopyValue(val)
		}
		return copied
	case Variant:
		// yaml.v3 decodes mappings nested inside a Variant as Variant
		// too, not map[string]interface{}
		return typed.Clone()
	case []interface{}:
		copied := make([]interface{}, len(typed))
		for i, val := range typed {
			copied[i] = deepCopyValue(val)
		}
		return copied
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// StringValue returns the variant's value for a key rendered as a
// string. List values collapse to their first element.
func (v Variant) StringValue(key string) string {
	value, exists := v[key]
	if !exists {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case []interface{}:
		if len(typed) > 0 {
			return fmt.Sprintf("%v", typed[0])
		}
		return ""
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// Has reports whether the variant carries a value for key.
func (v Variant) Has(key string) bool {
	_, exists := v[key]
	return exists
}

// Project returns the subset of the variant restricted to the given
// keys.
func (v Variant) Project(keys []string) Variant {
	projected := make(Variant, len(keys))
	for _, key := range keys {
		if value, exists := v[key]; exists {
			projected[key] = deepCopyValue(value)
		}
	}
	return projected
}

// ExtendKeys returns the variant's extend_keys set: keys whose values
// accumulate across variants instead of constraining a match.
func (v Variant) ExtendKeys() map[string]bool {
	keys := make(map[string]bool)
	raw, exists := v[KeyExtendKeys]
	if !exists {
		return keys
	}
	for _, item := range toStringSlice(raw) {
		keys[item] = true
	}
	return keys
}

// IgnoreVersions returns the variant's declared "ignore version" package
// names.
func (v Variant) IgnoreVersions() []string {
	return toStringSlice(v[KeyIgnoreVersion])
}

// PinRunAsBuild returns the variant's pin_run_as_build table. A single
// pattern string is shorthand for using the same pattern as both the
// min and max pin.
func (v Variant) PinRunAsBuild() map[string]PinPolicy {
	table := make(map[string]PinPolicy)
	raw, exists := v[KeyPinRunAsBuild]
	if !exists {
		return table
	}
	nested := nestedMap(raw)
	if nested == nil {
		return table
	}
	for name, entry := range nested {
		if pattern, ok := entry.(string); ok {
			table[name] = PinPolicy{MinPin: pattern, MaxPin: pattern}
			continue
		}
		typed := nestedMap(entry)
		if typed == nil {
			continue
		}
		policy := PinPolicy{}
		if minPin, ok := typed["min_pin"].(string); ok {
			policy.MinPin = minPin
		}
		if maxPin, ok := typed["max_pin"].(string); ok {
			policy.MaxPin = maxPin
		}
		table[name] = policy
	}
	return table
}

// nestedMap normalizes a nested mapping value to its underlying map
// form, covering both hand-built variants and configs decoded by
// yaml.v3, which types inner mappings as Variant.
func nestedMap(raw interface{}) map[string]interface{} {
	switch typed := raw.(type) {
	case map[string]interface{}:
		return typed
	case Variant:
		return typed
	}
	return nil
}

// SetPinRunAsBuild stores a pin table on the variant in the canonical
// nested-mapping form.
func (v Variant) SetPinRunAsBuild(table map[string]PinPolicy) {
	nested := make(map[string]interface{}, len(table))
	for name, policy := range table {
		nested[name] = map[string]interface{}{
			"min_pin": policy.MinPin,
			"max_pin": policy.MaxPin,
		}
	}
	v[KeyPinRunAsBuild] = nested
}

// Match reports whether two variants are consistent: every shared
// non-extend key must carry an equal value. Keys present on only one
// side do not conflict.
func Match(first, second Variant) bool {
	extend := first.ExtendKeys()
	for key := range second.ExtendKeys() {
		extend[key] = true
	}
	for key, firstValue := range first {
		if key == KeyExtendKeys || extend[key] {
			continue
		}
		secondValue, exists := second[key]
		if !exists {
			continue
		}
		if fmt.Sprintf("%v", firstValue) != fmt.Sprintf("%v", secondValue) {
			return false
		}
	}
	return true
}

// UsedVariableTuple renders the ordered (variable, value) pairs for the
// given used-variable names, the job-identity component that keeps
// re-expansion idempotent.
func (v Variant) UsedVariableTuple(usedVars []string) string {
	ordered := append([]string(nil), usedVars...)
	sort.Strings(ordered)
	pairs := make([]string, 0, len(ordered))
	for _, key := range ordered {
		pairs = append(pairs, key+"="+v.StringValue(key))
	}
	return strings.Join(pairs, ",")
}

// NormalizeName strips dashes and underscores so variant keys can be
// compared against spec names loosely.
func NormalizeName(name string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

func toStringSlice(raw interface{}) []string {
	switch typed := raw.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), typed...)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return items
	case string:
		return []string{typed}
	default:
		return nil
	}
}
