package version

import (
	"fmt"
	"strings"
)

// ApplyPinExpressions turns a concrete version plus a min/max pin
// policy into a requirement range. Each pin is either empty (no bound)
// or a dotted pattern such as "x.x.x" whose dot-count means "keep that
// many leading segments of the flattened version", with the upper bound
// incrementing the last kept segment to form the floor of the next
// release. Example: version 1.2.3 with min_pin and max_pin "x.x" yields
// ">=1.2,<1.3".
func ApplyPinExpressions(rawVersion, minPin, maxPin string) (string, error) {
	literal := strings.TrimSuffix(strings.TrimSuffix(rawVersion, ".*"), "*")
	parsed, err := Parse(literal)
	if err != nil {
		return "", fmt.Errorf("cannot pin version %q: %w", rawVersion, err)
	}
	flat := parsed.segments

	var bounds [2]string
	if minPin != "" {
		keep := pinPlaces(minPin)
		if keep > len(flat) {
			keep = len(flat)
		}
		bounds[0] = render(flat[:keep])
	}
	if maxPin != "" {
		keep := pinPlaces(maxPin)
		if keep > len(flat) {
			keep = len(flat)
		}
		kept := append([]segment(nil), flat[:keep]...)
		kept[keep-1] = increment(kept[keep-1])
		bounds[1] = render(kept)
	}

	var parts []string
	if bounds[0] != "" {
		lower, err := Parse(bounds[0])
		if err != nil {
			return "", fmt.Errorf("cannot parse computed lower bound %q: %w", bounds[0], err)
		}
		if Compare(parsed, lower) < 0 {
			// Pre-release build: the truncated floor would exceed the
			// literal version, so the literal version is the lower bound.
			parts = append(parts, ">="+literal)
		} else {
			parts = append(parts, ">="+bounds[0])
		}
	}
	if bounds[1] != "" {
		parts = append(parts, "<"+bounds[1])
	}
	return strings.Join(parts, ","), nil
}

// pinPlaces is the number of version segments a dotted pin pattern
// keeps.
func pinPlaces(pin string) int {
	return len(strings.Split(pin, "."))
}

// increment computes the next value of a segment: numbers add one,
// alphabetic segments increment their final character (a -> b).
func increment(seg segment) segment {
	if !seg.alpha {
		return segment{num: seg.num + 1, attached: seg.attached}
	}
	next := []byte(seg.str)
	next[len(next)-1]++
	return segment{str: string(next), alpha: true, attached: seg.attached}
}
