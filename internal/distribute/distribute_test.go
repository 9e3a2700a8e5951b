package distribute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/variant"
)

// fakeTemplate renders a fixed requirement set, substituting nothing. A
// skipValue declines matching variants with ErrSkip.
type fakeTemplate struct {
	name      string
	version   string
	noarch    bool
	usedVars  []string
	reqs      *model.RequirementsSection
	outputs   []recipe.Output
	skipKey   string
	skipValue string
}

func (f fakeTemplate) Name() string                   { return f.name }
func (f fakeTemplate) Version() string                { return f.version }
func (f fakeTemplate) Noarch() bool                   { return f.noarch }
func (f fakeTemplate) Dir() string                    { return "." }
func (f fakeTemplate) Outputs() []recipe.Output       { return f.outputs }
func (f fakeTemplate) IgnoreRunExports() []string     { return nil }
func (f fakeTemplate) IgnoreRunExportsFrom() []string { return nil }
func (f fakeTemplate) NeedsSourceForRender() bool     { return false }
func (f fakeTemplate) VariantInSource() bool          { return false }

func (f fakeTemplate) UsedVariables(variant.Matrix) []string { return f.usedVars }

func (f fakeTemplate) Render(v variant.Variant) (*recipe.Rendered, error) {
	if f.skipKey != "" && v.StringValue(f.skipKey) == f.skipValue {
		return nil, recipe.ErrSkip
	}
	reqs := f.reqs
	if reqs == nil {
		reqs = &model.RequirementsSection{}
	}
	return &recipe.Rendered{Requirements: reqs.Clone()}, nil
}

func (f fakeTemplate) RenderOutput(name string, v variant.Variant) (*recipe.Rendered, bool, error) {
	for _, out := range f.outputs {
		if out.Name == name {
			reqs := out.Requirements
			if reqs == nil {
				reqs = &model.RequirementsSection{}
			}
			return &recipe.Rendered{Requirements: reqs.Clone()}, true, nil
		}
	}
	return nil, false, nil
}

func pythonZlibMatrix() variant.Matrix {
	return variant.Matrix{
		{"python": "3.9", "zlib": "1.2"},
		{"python": "3.9", "zlib": "1.3"},
		{"python": "3.10", "zlib": "1.2"},
		{"python": "3.10", "zlib": "1.3"},
	}
}

func TestDistributeOneJobPerDistinctProjection(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", usedVars: []string{"python"}}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	require.Len(t, jobs, 2, "four variants collapse to two python projections")
	assert.Equal(t, "3.9", jobs[0].Variant.StringValue("python"))
	assert.Equal(t, "3.10", jobs[1].Variant.StringValue("python"))
}

func TestDistributeUnusedMatrixCollapsesToOneJob(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0"}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestDistributeIsIdempotent(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", usedVars: []string{"python", "zlib"}}

	first, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	second, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)

	require.Len(t, first, 4)
	require.Len(t, second, 4)
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestDistributeNoarchReducesToNewestPython(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", noarch: true, usedVars: []string{"python"}}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	// 3.10 is numerically newer than 3.9
	assert.Equal(t, "3.10", jobs[0].Variant.StringValue("python"))
	assert.True(t, jobs[0].Noarch)
}

func TestDistributeNoarchKeepsBuildQualifiedPython(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", noarch: true, usedVars: []string{"python"}}
	matrix := variant.Matrix{
		{"python": "3.9 *_cpython"},
		{"python": "3.10 *_cpython"},
	}

	jobs, err := d.Distribute(context.Background(), tmpl, matrix)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "3.10 *_cpython", jobs[0].Variant.StringValue("python"))
}

func TestDistributeSkippedVariantsDropSilently(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{
		name: "pkg", version: "1.0", usedVars: []string{"python"},
		skipKey: "python", skipValue: "3.9",
	}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "3.10", jobs[0].Variant.StringValue("python"))
}

func TestDistributeBoundVariantsAreIndependent(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", usedVars: []string{"python"}}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	jobs[0].Variant["python"] = "mutated"
	assert.Equal(t, "3.10", jobs[1].Variant.StringValue("python"))
}

func TestDistributeInjectsNumpyPinPolicy(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{
		name: "pkg", version: "1.0", usedVars: []string{"numpy"},
		reqs: &model.RequirementsSection{Build: []string{"numpy x.x"}, Run: []string{"numpy x.x"}},
	}
	matrix := variant.Matrix{{"numpy": "1.21"}}

	jobs, err := d.Distribute(context.Background(), tmpl, matrix)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	policy := jobs[0].Variant.PinRunAsBuild()["numpy"]
	assert.Equal(t, variant.PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, policy)
}

func TestDistributeTargetPlatform(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{name: "pkg", version: "1.0", usedVars: []string{variant.KeyTargetPlatform}}
	matrix := variant.Matrix{
		{variant.KeyTargetPlatform: "osx-arm64"},
	}

	jobs, err := d.Distribute(context.Background(), tmpl, matrix)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "osx-arm64", jobs[0].TargetPlatform)

	jobs, err = d.Distribute(context.Background(), tmpl, variant.Matrix{{variant.KeyTargetPlatform: ""}})
	require.NoError(t, err)
	assert.Equal(t, "linux-64", jobs[0].TargetPlatform)
}

func TestDistributeEmptyMatrixFails(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	_, err := d.Distribute(context.Background(), fakeTemplate{name: "pkg", version: "1.0"}, nil)
	require.Error(t, err)
}

func TestExpandOutputs(t *testing.T) {
	d := &Distributor{Platform: "linux-64"}
	tmpl := fakeTemplate{
		name: "pkg", version: "1.0", usedVars: []string{"python"},
		outputs: []recipe.Output{
			{Name: "pkg-core", Requirements: &model.RequirementsSection{Run: []string{"zlib"}}},
			{Name: "pkg-tools"},
		},
	}

	jobs, err := d.Distribute(context.Background(), tmpl, pythonZlibMatrix())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	expanded, err := ExpandOutputs(tmpl, jobs)
	require.NoError(t, err)
	require.Len(t, expanded, 4, "two outputs across two python projections")

	names := map[string]int{}
	for _, job := range expanded {
		names[job.Name]++
	}
	assert.Equal(t, map[string]int{"pkg-core": 2, "pkg-tools": 2}, names)
}

func TestExpandOutputsPassThroughWithoutOutputs(t *testing.T) {
	tmpl := fakeTemplate{name: "pkg", version: "1.0"}
	jobs := []*model.BuildJob{{Name: "pkg", Version: "1.0"}}
	expanded, err := ExpandOutputs(tmpl, jobs)
	require.NoError(t, err)
	assert.Equal(t, jobs, expanded)
}
