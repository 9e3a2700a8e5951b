package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCloneIsDeep(t *testing.T) {
	original := Variant{
		"python": "3.9",
		KeyPinRunAsBuild: map[string]interface{}{
			"zlib": map[string]interface{}{"min_pin": "x.x", "max_pin": "x.x"},
		},
		KeyIgnoreVersion: []interface{}{"cmake"},
	}
	clone := original.Clone()
	clone["python"] = "3.10"
	clone[KeyPinRunAsBuild].(map[string]interface{})["zlib"].(map[string]interface{})["min_pin"] = "x"
	clone[KeyIgnoreVersion].([]interface{})[0] = "make"

	assert.Equal(t, "3.9", original.StringValue("python"))
	assert.Equal(t, PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, original.PinRunAsBuild()["zlib"])
	assert.Equal(t, []string{"cmake"}, original.IgnoreVersions())
}

func TestStringValueCollapsesLists(t *testing.T) {
	v := Variant{
		"python": []interface{}{"3.9", "3.10"},
		"zlib":   "1.2",
		"count":  7,
	}
	assert.Equal(t, "3.9", v.StringValue("python"))
	assert.Equal(t, "1.2", v.StringValue("zlib"))
	assert.Equal(t, "7", v.StringValue("count"))
	assert.Empty(t, v.StringValue("missing"))
}

func TestPinRunAsBuildShorthand(t *testing.T) {
	v := Variant{
		KeyPinRunAsBuild: map[string]interface{}{
			"zlib":    "x.x",
			"openssl": map[string]interface{}{"min_pin": "x.x.x", "max_pin": "x.x"},
		},
	}
	table := v.PinRunAsBuild()
	assert.Equal(t, PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, table["zlib"])
	assert.Equal(t, PinPolicy{MinPin: "x.x.x", MaxPin: "x.x"}, table["openssl"])
}

func TestPinRunAsBuildFromDecodedYAML(t *testing.T) {
	// yaml.v3 types mappings nested inside a Variant as Variant, not
	// map[string]interface{}; the pin table must read both forms
	var v Variant
	require.NoError(t, yaml.Unmarshal([]byte(`
pin_run_as_build:
  zlib: x.x
  openssl:
    min_pin: x.x.x
    max_pin: x.x
`), &v))

	table := v.PinRunAsBuild()
	assert.Equal(t, PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, table["zlib"])
	assert.Equal(t, PinPolicy{MinPin: "x.x.x", MaxPin: "x.x"}, table["openssl"])
}

func TestCloneCopiesDecodedNestedMappings(t *testing.T) {
	var original Variant
	require.NoError(t, yaml.Unmarshal([]byte(`
python: "3.9"
pin_run_as_build:
  zlib: x.x
`), &original))

	clone := original.Clone()
	nested := nestedMap(clone[KeyPinRunAsBuild])
	require.NotNil(t, nested)
	nested["zlib"] = "x"

	assert.Equal(t, PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, original.PinRunAsBuild()["zlib"])
}

func TestSetPinRunAsBuildRoundTrip(t *testing.T) {
	v := Variant{}
	v.SetPinRunAsBuild(map[string]PinPolicy{"numpy": {MinPin: "x.x", MaxPin: "x.x"}})
	assert.Equal(t, PinPolicy{MinPin: "x.x", MaxPin: "x.x"}, v.PinRunAsBuild()["numpy"])
}

func TestMatch(t *testing.T) {
	first := Variant{"python": "3.9", "zlib": "1.2"}
	second := Variant{"python": "3.9", "openssl": "1.1"}
	assert.True(t, Match(first, second))

	third := Variant{"python": "3.10"}
	assert.False(t, Match(first, third))

	// extend keys never constrain a match
	fourth := Variant{"python": "3.10", KeyExtendKeys: []interface{}{"python"}}
	assert.True(t, Match(first, fourth))
}

func TestDistinctProjections(t *testing.T) {
	matrix := Matrix{
		{"python": "3.9", "zlib": "1.2"},
		{"python": "3.9", "zlib": "1.3"},
		{"python": "3.10", "zlib": "1.2"},
	}

	// a template using only python collapses the zlib axis
	projections := DistinctProjections(matrix, []string{"python"})
	require.Len(t, projections, 2)
	assert.Equal(t, "3.9", projections[0].Representative.StringValue("python"))
	assert.Equal(t, "3.10", projections[1].Representative.StringValue("python"))

	// using both axes keeps all three distinct combinations
	projections = DistinctProjections(matrix, []string{"python", "zlib"})
	assert.Len(t, projections, 3)

	// using nothing yields a single job
	projections = DistinctProjections(matrix, nil)
	assert.Len(t, projections, 1)
}

func TestFilterByKeyValue(t *testing.T) {
	matrix := Matrix{
		{"python": "3.9"},
		{"python": "3.10"},
		{"zlib": "1.2"},
	}
	filtered := FilterByKeyValue(matrix, "python", "3.9")
	require.Len(t, filtered, 2)
	assert.Equal(t, "3.9", filtered[0].StringValue("python"))
	// the variant without the key survives filtering
	assert.Equal(t, "1.2", filtered[1].StringValue("zlib"))
}

func TestMatrixValidate(t *testing.T) {
	valid := Matrix{
		{"python": "3.9", "zlib": "1.2"},
		{"python": "3.10", "zlib": "1.2"},
	}
	require.NoError(t, valid.Validate())

	invalid := Matrix{
		{"python": "3.9"},
		{"zlib": "1.2"},
	}
	assert.Error(t, invalid.Validate())
}
