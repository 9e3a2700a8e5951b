package exports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sourceplane/pkgforge/internal/model"
)

func writePayload(t *testing.T, pkgDir, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(pkgDir, "info"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "info", file), []byte(content), 0o644))
}

func TestReadFromPackageYAML(t *testing.T) {
	pkgDir := t.TempDir()
	writePayload(t, pkgDir, "run_exports.yaml", "weak:\n  - libzlib >=1.2.11,<1.3\nstrong:\n  - libgcc-ng >=7\n")

	set, err := ReadFromPackage(pkgDir, "zlib")
	require.NoError(t, err)
	assert.Equal(t, []string{"libzlib >=1.2.11,<1.3"}, set.Get(model.ExportWeak))
	assert.Equal(t, []string{"libgcc-ng >=7"}, set.Get(model.ExportStrong))
}

func TestReadFromPackageJSON(t *testing.T) {
	pkgDir := t.TempDir()
	writePayload(t, pkgDir, "run_exports.json", `{"weak_constrains": ["openmp <5"]}`)

	set, err := ReadFromPackage(pkgDir, "llvm")
	require.NoError(t, err)
	assert.Equal(t, []string{"openmp <5"}, set.Get(model.ExportWeakConstrains))
}

func TestReadFromPackageLegacyText(t *testing.T) {
	pkgDir := t.TempDir()
	writePayload(t, pkgDir, "run_exports", "zlib >=1.2.11,<1.3\nzlib\n\nlibpng >=1.6\n")

	set, err := ReadFromPackage(pkgDir, "zlib")
	require.NoError(t, err)
	// every legacy entry is weak; the package's own self-pins are dropped
	assert.Equal(t, []string{"libpng >=1.6"}, set.Get(model.ExportWeak))
	assert.Nil(t, set.Get(model.ExportStrong))
}

func TestReadFromPackagePrefersStructuredEncodings(t *testing.T) {
	pkgDir := t.TempDir()
	writePayload(t, pkgDir, "run_exports", "legacy-entry\n")
	writePayload(t, pkgDir, "run_exports.yaml", "strong:\n  - modern-entry\n")

	set, err := ReadFromPackage(pkgDir, "pkg")
	require.NoError(t, err)
	assert.Equal(t, []string{"modern-entry"}, set.Get(model.ExportStrong))
	assert.Nil(t, set.Get(model.ExportWeak))
}

func TestReadFromPackageMissingPayload(t *testing.T) {
	set, err := ReadFromPackage(t.TempDir(), "pkg")
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestReadFromPackageGarbledDocumentIsNotFatal(t *testing.T) {
	pkgDir := t.TempDir()
	writePayload(t, pkgDir, "run_exports.json", "{not json")

	set, err := ReadFromPackage(pkgDir, "pkg")
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestFilter(t *testing.T) {
	set := model.RunExportSet{
		model.ExportWeak:   {"libzlib >=1.2", "libpng >=1.6"},
		model.ExportStrong: {"libgcc-ng >=7"},
	}

	filtered := Filter(set, []string{"libzlib"})
	assert.Equal(t, []string{"libpng >=1.6"}, filtered.Get(model.ExportWeak))
	assert.Equal(t, []string{"libgcc-ng >=7"}, filtered.Get(model.ExportStrong))

	filtered = Filter(set, []string{"libpng >=1.6"})
	assert.Equal(t, []string{"libzlib >=1.2"}, filtered.Get(model.ExportWeak))

	filtered = Filter(set, []string{"*"})
	assert.Empty(t, filtered.Get(model.ExportWeak))
	assert.Empty(t, filtered.Get(model.ExportStrong))

	assert.Equal(t, set, Filter(set, nil))
}
