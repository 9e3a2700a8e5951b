package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSpec(t *testing.T) {
	name, version, build := SplitSpec("zlib 1.2.11 h123_0")
	assert.Equal(t, "zlib", name)
	assert.Equal(t, "1.2.11", version)
	assert.Equal(t, "h123_0", build)

	name, version, build = SplitSpec("zlib")
	assert.Equal(t, "zlib", name)
	assert.Empty(t, version)
	assert.Empty(t, build)

	name, _, _ = SplitSpec("")
	assert.Empty(t, name)
}

func TestStripChannel(t *testing.T) {
	assert.Equal(t, "zlib 1.2", StripChannel("conda-forge::zlib 1.2"))
	assert.Equal(t, "zlib 1.2", StripChannel("zlib 1.2"))
}

func TestEnsureValidSpec(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare version gets star", "zlib 1.2", "zlib 1.2.*"},
		{"already starred", "zlib 1.2.*", "zlib 1.2.*"},
		{"exact pin untouched", "zlib 1.2.11 h123_0", "zlib 1.2.11 h123_0"},
		{"bare name untouched", "zlib", "zlib"},
		{"operator untouched", "zlib >=1.2", "zlib >=1.2"},
		{"python sentinel untouched", "python x.x", "python x.x"},
		{"numpy sentinel untouched", "numpy x.x", "numpy x.x"},
		{"x.x on other names starred", "foo x.x", "foo x.x.*"},
		{"alphanumeric version starred", "openssl 1.0.2n", "openssl 1.0.2n.*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureValidSpec(tt.in))
		})
	}
}

func TestUnionSpecs(t *testing.T) {
	merged := UnionSpecs([]string{"a 1", "b"}, []string{"b", "c 2", "a 1"})
	assert.Equal(t, []string{"a 1", "b", "c 2"}, merged)

	assert.Empty(t, UnionSpecs(nil, nil))
	assert.Equal(t, []string{"a"}, UnionSpecs(nil, []string{"a", "", "a"}))
}

func TestRunExportSetMerge(t *testing.T) {
	first := RunExportSet{ExportWeak: {"libgcc-ng >=7"}}
	second := RunExportSet{
		ExportWeak:   {"libgcc-ng >=7", "zlib"},
		ExportStrong: {"libstdcxx-ng >=7"},
	}
	merged := first.Merge(second)
	// concatenation preserves duplicates; dedup belongs to UnionSpecs
	assert.Equal(t, []string{"libgcc-ng >=7", "libgcc-ng >=7", "zlib"}, merged.Get(ExportWeak))
	assert.Equal(t, []string{"libstdcxx-ng >=7"}, merged.Get(ExportStrong))
	assert.Nil(t, merged.Get(ExportNoarch))
}

func TestResolvedRecordRendering(t *testing.T) {
	rec := ResolvedRecord{Name: "zlib", Version: "1.2.11", Build: "h123_0"}
	assert.Equal(t, "zlib 1.2.11 h123_0", rec.Requirement())
	assert.Equal(t, "zlib-1.2.11-h123_0", rec.Dist())
}
