package finalize

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/variant"
)

func crossJob() *model.BuildJob {
	v := variant.Variant{"python": "3.9", "zlib": "1.2"}
	v.SetPinRunAsBuild(map[string]variant.PinPolicy{
		"zlib":   {MinPin: "x.x", MaxPin: "x.x"},
		"python": {MinPin: "x.x", MaxPin: "x.x"},
	})
	return &model.BuildJob{
		Name:    "mypkg",
		Version: "1.0",
		Requirements: &model.RequirementsSection{
			Build: []string{"gcc_linux-64"},
			Host:  []string{"zlib 1.2.*", "python"},
			Run:   []string{"zlib", "python"},
		},
		TestRequires: []string{"pytest"},
		Variant:      v,
	}
}

func TestFinalizePinsRunAgainstHostVersions(t *testing.T) {
	f := newFinalizer(exportIndex(), true, false)
	job := crossJob()

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, false)
	require.NoError(t, err)

	assert.True(t, job.Final)
	assert.Empty(t, job.BuildUnsat)
	assert.Empty(t, job.HostUnsat)

	assert.Equal(t, []string{"gcc_linux-64 7.5.0 b0"}, job.Requirements.Build)
	assert.Contains(t, job.Requirements.Host, "zlib 1.2.13 h1")
	assert.Contains(t, job.Requirements.Host, "python 3.9.7 hp0")

	assert.Contains(t, job.Requirements.Run, "zlib >=1.2,<1.3")
	assert.Contains(t, job.Requirements.Run, "python >=3.9,<3.10")
	assert.Contains(t, job.Requirements.Run, "libzlib >=1.2.13,<1.3")
	assert.Contains(t, job.Requirements.Run, "libgcc-ng >=7.5")
}

func TestFinalizeTestRequiresPinnedToo(t *testing.T) {
	idx := exportIndex()
	f := newFinalizer(idx, true, false)
	job := crossJob()
	job.TestRequires = []string{"pytest", "zlib"}

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, false)
	require.NoError(t, err)

	assert.Contains(t, job.TestRequires, "pytest")
	assert.Contains(t, job.TestRequires, "zlib >=1.2,<1.3")
}

func TestFinalizeToleratedUnsatLeavesJobNonFinal(t *testing.T) {
	f := newFinalizer(exportIndex(), true, false)
	job := crossJob()
	job.Requirements.Host = append(job.Requirements.Host, "no-such-package")

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, true)
	require.NoError(t, err)

	assert.False(t, job.Final)
	assert.NotEmpty(t, job.HostUnsat)
	assert.Contains(t, job.HostUnsat, "no-such-package")
}

func TestFinalizeUntoleratedUnsatFails(t *testing.T) {
	f := newFinalizer(exportIndex(), true, false)
	job := crossJob()
	job.Requirements.Host = append(job.Requirements.Host, "no-such-package")

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, false)
	require.Error(t, err)
}

func TestFinalizeResolvesRelativeSourcePaths(t *testing.T) {
	f := newFinalizer(exportIndex(), true, false)
	job := crossJob()
	job.RecipeDir = "/recipes/mypkg"
	job.Sources = []model.Source{
		{Path: "patches"},
		{Path: "/absolute/src"},
		{GitURL: "../sibling-checkout"},
		{GitURL: "https://example.invalid/repo.git"},
	}

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/recipes/mypkg", "patches"), job.Sources[0].Path)
	assert.Equal(t, "/absolute/src", job.Sources[1].Path)
	assert.Equal(t, filepath.Join("/recipes/mypkg", "../sibling-checkout"), job.Sources[2].GitURL)
	assert.Equal(t, "https://example.invalid/repo.git", job.Sources[3].GitURL)
}

func TestFinalizeIgnoreVersionExcludesFromResolution(t *testing.T) {
	f := newFinalizer(exportIndex(), true, false)
	job := crossJob()
	// not present in the index; excluded names must never reach the solver
	job.Requirements.Build = append(job.Requirements.Build, "custom-toolchain")
	job.Variant[variant.KeyIgnoreVersion] = []interface{}{"custom-toolchain"}

	err := f.Finalize(context.Background(), job, fakeTemplate{name: "mypkg", version: "1.0"}, nil, false)
	require.NoError(t, err)
	assert.True(t, job.Final)
	assert.Contains(t, job.Requirements.Build, "custom-toolchain")
}

func TestSiblingSpecs(t *testing.T) {
	job := &model.BuildJob{
		Name:    "mypkg-tools",
		Version: "1.0",
		Requirements: &model.RequirementsSection{
			Run: []string{"mypkg-core", "zlib"},
		},
		Variant: variant.Variant{"python": "3.9"},
	}
	siblings := []*model.BuildJob{
		job,
		{
			Name: "mypkg-core", Version: "1.0",
			Requirements: &model.RequirementsSection{Run: []string{"mypkg-common"}},
			Variant:      variant.Variant{"python": "3.9"},
		},
		{
			Name: "mypkg-common", Version: "1.0",
			Requirements: &model.RequirementsSection{},
			Variant:      variant.Variant{"python": "3.9"},
		},
		{
			// same output for a different interpreter never co-installs
			Name: "mypkg-core", Version: "1.0",
			Requirements: &model.RequirementsSection{},
			Variant:      variant.Variant{"python": "3.10"},
		},
		{
			// unreferenced sibling stays out
			Name: "mypkg-docs", Version: "1.0",
			Requirements: &model.RequirementsSection{},
			Variant:      variant.Variant{"python": "3.9"},
		},
	}

	specs := siblingSpecs(job, siblings)
	assert.ElementsMatch(t, []string{"mypkg-core 1.0", "mypkg-common 1.0"}, specs)
}
