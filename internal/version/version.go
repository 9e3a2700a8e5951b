// Package version implements dependency-version parsing and ordering,
// and the pin-expression evaluation used to turn a resolved build-time
// version into a requirement range.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one numeric or alphabetic piece of a version component.
// attached segments render without a leading dot: they were glued to
// the previous segment inside one dotted component (e.g. the "n" in
// "1.0.2n").
type segment struct {
	num      int
	str      string
	alpha    bool
	attached bool
}

// Version is a parsed version string. Pre-release segments are
// flattened in place, not re-ordered.
type Version struct {
	raw      string
	segments []segment
}

// Parse decomposes a version string into its flattened
// numeric/alphabetic segment list per standard dependency-version
// ordering rules.
func Parse(raw string) (Version, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return Version{}, fmt.Errorf("empty version string")
	}
	// Strip an epoch prefix like "1!".
	if idx := strings.Index(cleaned, "!"); idx >= 0 {
		cleaned = cleaned[idx+1:]
	}
	cleaned = strings.NewReplacer("-", ".", "_", ".").Replace(cleaned)

	var segments []segment
	for _, component := range strings.Split(cleaned, ".") {
		if component == "" {
			segments = append(segments, segment{num: 0})
			continue
		}
		first := true
		for len(component) > 0 {
			run := digitRun(component)
			var seg segment
			if run != "" {
				n, err := strconv.Atoi(run)
				if err != nil {
					return Version{}, fmt.Errorf("invalid numeric segment %q in %q", run, raw)
				}
				seg = segment{num: n}
			} else {
				run = alphaRun(component)
				if run == "" {
					return Version{}, fmt.Errorf("unparseable character %q in version %q", component[0], raw)
				}
				seg = segment{str: run, alpha: true}
			}
			seg.attached = !first
			segments = append(segments, seg)
			component = component[len(run):]
			first = false
		}
	}
	return Version{raw: raw, segments: segments}, nil
}

func digitRun(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func alphaRun(s string) string {
	i := 0
	for i < len(s) && !(s[i] >= '0' && s[i] <= '9') {
		i++
	}
	return s[:i]
}

// String returns the version as originally supplied.
func (v Version) String() string { return v.raw }

// render joins the first n flattened segments back into a version
// string, honoring attachment (no dot before a glued segment).
func render(segments []segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 && !seg.attached {
			b.WriteByte('.')
		}
		if seg.alpha {
			b.WriteString(seg.str)
		} else {
			b.WriteString(strconv.Itoa(seg.num))
		}
	}
	return b.String()
}

// Compare orders two parsed versions. Alphabetic segments sort before
// numeric ones at the same position (pre-release semantics), so
// 1.2.3a < 1.2.3 and 3.9 < 3.10.
func Compare(a, b Version) int {
	for i := 0; i < len(a.segments) || i < len(b.segments); i++ {
		as := segmentAt(a.segments, i)
		bs := segmentAt(b.segments, i)
		if as.alpha != bs.alpha {
			// alpha is a pre-release marker, ordered below any number
			if as.alpha {
				return -1
			}
			return 1
		}
		if as.alpha {
			if as.str != bs.str {
				if as.str < bs.str {
					return -1
				}
				return 1
			}
			continue
		}
		if as.num != bs.num {
			if as.num < bs.num {
				return -1
			}
			return 1
		}
	}
	return 0
}

func segmentAt(segments []segment, i int) segment {
	if i < len(segments) {
		return segments[i]
	}
	return segment{num: 0}
}

// CompareStrings parses and orders two raw version strings. Unparseable
// inputs order lexically as a last resort.
func CompareStrings(a, b string) int {
	av, aerr := Parse(a)
	bv, berr := Parse(b)
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	return Compare(av, bv)
}
