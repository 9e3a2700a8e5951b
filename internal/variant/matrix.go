package variant

import (
	"fmt"
	"sort"
)

// Matrix is an ordered sequence of variants. All variants in a matrix
// share the same key set.
type Matrix []Variant

// Validate checks the shared-key-set invariant.
func (m Matrix) Validate() error {
	if len(m) < 2 {
		return nil
	}
	reference := m[0].sortedKeys()
	for i, v := range m[1:] {
		keys := v.sortedKeys()
		if len(keys) != len(reference) {
			return fmt.Errorf("variant %d has %d keys, expected %d", i+1, len(keys), len(reference))
		}
		for j, key := range keys {
			if key != reference[j] {
				return fmt.Errorf("variant %d carries key %q not shared by the matrix", i+1, key)
			}
		}
	}
	return nil
}

func (v Variant) sortedKeys() []string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies every variant in the matrix.
func (m Matrix) Clone() Matrix {
	cloned := make(Matrix, len(m))
	for i, v := range m {
		cloned[i] = v.Clone()
	}
	return cloned
}

// FilterByKeyValue keeps the variants whose value for key renders equal
// to value. Variants lacking the key are kept.
func FilterByKeyValue(m Matrix, key, value string) Matrix {
	filtered := make(Matrix, 0, len(m))
	for _, v := range m {
		if !v.Has(key) || v.StringValue(key) == value {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Projection pairs a distinct used-variable projection with the first
// full variant that produced it.
type Projection struct {
	Values         Variant
	Representative Variant
}

// DistinctProjections reduces the matrix to the distinct projections
// onto the used-variable set, in first-seen order. Two full variants
// that agree on every used variable collapse to one projection.
func DistinctProjections(m Matrix, usedVars []string) []Projection {
	seen := make(map[string]bool)
	projections := make([]Projection, 0, len(m))
	for _, v := range m {
		key := v.UsedVariableTuple(usedVars)
		if seen[key] {
			continue
		}
		seen[key] = true
		projections = append(projections, Projection{
			Values:         v.Project(usedVars),
			Representative: v,
		})
	}
	return projections
}
