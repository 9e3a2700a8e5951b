package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/variant"
	"gopkg.in/yaml.v3"
)

// File is a YAML-backed template implementation. It supports
// "{{ key }}" variant substitution in requirement specs, the version
// field and source entries, and a "{{ git_describe }}" token resolved
// from fetched source metadata. Anything richer belongs to a real
// templating collaborator.
type File struct {
	doc fileDoc
	dir string

	// GitDescribe resolves the git_describe token from a checked-out
	// source directory. Left nil, templates using the token fail to
	// render until source is provided.
	GitDescribe func(dir string) (string, error)
}

type fileDoc struct {
	Package struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"package"`
	Build struct {
		Noarch               bool     `yaml:"noarch"`
		Skip                 []string `yaml:"skip"`
		IgnoreRunExports     []string `yaml:"ignore_run_exports"`
		IgnoreRunExportsFrom []string `yaml:"ignore_run_exports_from"`
	} `yaml:"build"`
	Requirements *model.RequirementsSection `yaml:"requirements"`
	Test         struct {
		Requires []string `yaml:"requires"`
	} `yaml:"test"`
	Outputs []Output       `yaml:"outputs"`
	Source  []model.Source `yaml:"source"`
}

const recipeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["package"],
  "properties": {
    "package": {
      "type": "object",
      "required": ["name", "version"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "version": {"type": "string", "minLength": 1}
      }
    },
    "requirements": {
      "type": "object",
      "properties": {
        "build": {"type": "array", "items": {"type": "string"}},
        "host": {"type": "array", "items": {"type": "string"}},
        "run": {"type": "array", "items": {"type": "string"}},
        "run_constrained": {"type": "array", "items": {"type": "string"}}
      }
    },
    "outputs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {"name": {"type": "string", "minLength": 1}}
      }
    }
  }
}`

var compiledRecipeSchema = jsonschema.MustCompileString("recipe.schema.json", recipeSchema)

// Load reads, validates and parses a recipe file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var document interface{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse recipe YAML: %w", err)
	}
	jsonData, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipe: %w", err)
	}
	var jsonDocument interface{}
	if err := json.Unmarshal(jsonData, &jsonDocument); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	if err := compiledRecipeSchema.Validate(jsonDocument); err != nil {
		return nil, fmt.Errorf("recipe failed schema validation: %w", err)
	}

	f := &File{}
	if err := yaml.Unmarshal(data, &f.doc); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		dir = filepath.Dir(path)
	}
	f.dir = dir
	return f, nil
}

func (f *File) Name() string    { return f.doc.Package.Name }
func (f *File) Version() string { return f.doc.Package.Version }
func (f *File) Noarch() bool    { return f.doc.Build.Noarch }
func (f *File) Dir() string     { return f.dir }

func (f *File) Outputs() []Output              { return f.doc.Outputs }
func (f *File) IgnoreRunExports() []string     { return f.doc.Build.IgnoreRunExports }
func (f *File) IgnoreRunExportsFrom() []string { return f.doc.Build.IgnoreRunExportsFrom }

const gitDescribeToken = "git_describe"

// NeedsSourceForRender reports whether the version string depends on
// source control metadata.
func (f *File) NeedsSourceForRender() bool {
	return strings.Contains(f.doc.Package.Version, gitDescribeToken)
}

// VariantInSource reports whether a variant variable appears in any
// source entry.
func (f *File) VariantInSource() bool {
	for _, src := range f.doc.Source {
		if tokenPattern.MatchString(src.Path) || tokenPattern.MatchString(src.GitURL) || tokenPattern.MatchString(src.GitRev) {
			return true
		}
	}
	return false
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// UsedVariables is the unbound render pass: variant keys referenced via
// "{{ key }}" tokens anywhere in the template, plus keys whose
// normalized name matches an unversioned dependency spec.
func (f *File) UsedVariables(matrix variant.Matrix) []string {
	if len(matrix) == 0 {
		return nil
	}
	referenced := make(map[string]bool)
	for _, text := range f.allText() {
		for _, match := range tokenPattern.FindAllStringSubmatch(text, -1) {
			referenced[match[1]] = true
		}
	}

	bareDeps := make(map[string]bool)
	for _, spec := range f.allSpecLists() {
		name, ver, _ := model.SplitSpec(spec)
		if ver == "" || ver == "x.x" {
			bareDeps[variant.NormalizeName(name)] = true
		}
	}

	var used []string
	for key := range matrix[0] {
		switch key {
		case variant.KeyExtendKeys, variant.KeyPinRunAsBuild, variant.KeyIgnoreVersion, variant.KeyTargetPlatform:
			continue
		}
		if referenced[key] || bareDeps[variant.NormalizeName(key)] {
			used = append(used, key)
		}
	}
	return used
}

func (f *File) allText() []string {
	texts := []string{f.doc.Package.Version}
	texts = append(texts, f.allSpecLists()...)
	for _, src := range f.doc.Source {
		texts = append(texts, src.Path, src.GitURL, src.GitRev)
	}
	return texts
}

func (f *File) allSpecLists() []string {
	var specs []string
	sections := []*model.RequirementsSection{f.doc.Requirements}
	for _, out := range f.doc.Outputs {
		sections = append(sections, out.Requirements)
	}
	for _, section := range sections {
		if section == nil {
			continue
		}
		specs = append(specs, section.Build...)
		specs = append(specs, section.Host...)
		specs = append(specs, section.Run...)
		specs = append(specs, section.RunConstrained...)
	}
	specs = append(specs, f.doc.Test.Requires...)
	return specs
}

// Render is the bound render pass for the template's own package.
func (f *File) Render(v variant.Variant) (*Rendered, error) {
	if err := f.checkSkip(v); err != nil {
		return nil, err
	}
	requirements := f.doc.Requirements
	if out, found := f.findOutput(f.Name()); found && out.Requirements != nil {
		requirements = out.Requirements
	}
	return f.renderSections(requirements, v)
}

// RenderOutput renders one named sub-output.
func (f *File) RenderOutput(name string, v variant.Variant) (*Rendered, bool, error) {
	out, found := f.findOutput(name)
	if !found {
		return nil, false, nil
	}
	requirements := out.Requirements
	if requirements == nil {
		requirements = &model.RequirementsSection{}
	}
	rendered, err := f.renderSections(requirements, v)
	return rendered, true, err
}

func (f *File) findOutput(name string) (Output, bool) {
	for _, out := range f.doc.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

func (f *File) renderSections(requirements *model.RequirementsSection, v variant.Variant) (*Rendered, error) {
	section := requirements.Clone()
	var err error
	for _, env := range []string{model.EnvBuild, model.EnvHost, model.EnvRun, model.EnvRunConstrained} {
		specs := section.Get(env)
		for i, spec := range specs {
			if specs[i], err = f.substitute(spec, v); err != nil {
				return nil, err
			}
		}
	}

	rendered := &Rendered{Requirements: section}
	for _, spec := range f.doc.Test.Requires {
		substituted, err := f.substitute(spec, v)
		if err != nil {
			return nil, err
		}
		rendered.TestRequires = append(rendered.TestRequires, substituted)
	}
	for _, src := range f.doc.Source {
		if src.Path, err = f.substitute(src.Path, v); err != nil {
			return nil, err
		}
		if src.GitURL, err = f.substitute(src.GitURL, v); err != nil {
			return nil, err
		}
		if src.GitRev, err = f.substitute(src.GitRev, v); err != nil {
			return nil, err
		}
		rendered.Sources = append(rendered.Sources, src)
	}
	return rendered, nil
}

// checkSkip evaluates build.skip selectors of the form "key=value"
// against the variant.
func (f *File) checkSkip(v variant.Variant) error {
	for _, selector := range f.doc.Build.Skip {
		if selector == "true" {
			return ErrSkip
		}
		key, value, found := strings.Cut(selector, "=")
		if !found {
			continue
		}
		if v.StringValue(strings.TrimSpace(key)) == strings.TrimSpace(value) {
			return ErrSkip
		}
	}
	return nil
}

func (f *File) substitute(text string, v variant.Variant) (string, error) {
	if text == "" || !strings.Contains(text, "{{") {
		return text, nil
	}
	var substErr error
	result := tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := tokenPattern.FindStringSubmatch(token)[1]
		if key == gitDescribeToken {
			described, err := f.describeSource()
			if err != nil {
				substErr = err
			}
			return described
		}
		if !v.Has(key) {
			substErr = fmt.Errorf("recipe references undefined variant variable %q", key)
			return token
		}
		return v.StringValue(key)
	})
	return result, substErr
}

// RenderedVersion resolves the package version for a variant, including
// source-control tokens once source is available.
func (f *File) RenderedVersion(v variant.Variant) (string, error) {
	return f.substitute(f.doc.Package.Version, v)
}

func (f *File) describeSource() (string, error) {
	if f.GitDescribe == nil {
		return "", fmt.Errorf("recipe version needs source control metadata but no source is provided")
	}
	for _, src := range f.doc.Source {
		if src.GitURL != "" {
			return f.GitDescribe(src.GitURL)
		}
	}
	return f.GitDescribe(f.dir)
}
