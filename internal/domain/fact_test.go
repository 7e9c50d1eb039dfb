package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactUnmarshal_KeepsUnknownKeys(t *testing.T) {
	var f Fact
	err := json.Unmarshal([]byte(`{"role":"witness","date":"2021","text":"A","status":"SECURED","sources":["s1","s2"],"meta":{"n":1}}`), &f)
	require.NoError(t, err)

	assert.Equal(t, "A", f.Text)
	assert.Equal(t, "2021", f.Date)
	assert.Equal(t, StatusSecured, f.Status)
	assert.Equal(t, []string{"s1", "s2"}, f.Sources)
	require.Len(t, f.Extra, 2)
	assert.JSONEq(t, `"witness"`, string(f.Extra["role"]))
	assert.JSONEq(t, `{"n":1}`, string(f.Extra["meta"]))
}

func TestFactUnmarshal_RejectsNonObjects(t *testing.T) {
	for _, in := range []string{`[]`, `"text"`, `42`, `null`} {
		var f Fact
		assert.Error(t, json.Unmarshal([]byte(in), &f), in)
	}
}

func TestFactUnmarshal_RejectsWrongFieldTypes(t *testing.T) {
	var f Fact
	assert.Error(t, json.Unmarshal([]byte(`{"text":"A","sources":"s1"}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"text":5}`), &f))
}

func TestFactUnmarshal_NullFieldsAreEmpty(t *testing.T) {
	var f Fact
	require.NoError(t, json.Unmarshal([]byte(`{"text":"A","date":null,"sources":null}`), &f))
	assert.Equal(t, "", f.Date)
	assert.Nil(t, f.Sources)
}

func TestFactMarshal_WritesExtraBack(t *testing.T) {
	in := `{"role":"witness","date":"2021","text":"<A & B>","status":"UNCONFIRMED","sources":[]}`
	var f Fact
	require.NoError(t, json.Unmarshal([]byte(in), &f))

	out, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Contains(t, string(out), "<A & B>")
}

func TestFactMarshal_NilSourcesBecomeEmptyArray(t *testing.T) {
	out, err := Fact{Text: "x"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"x","date":"","status":"","sources":[]}`, string(out))
}

func TestFactCanonical(t *testing.T) {
	f := Fact{Text: "A", Date: "2021", Status: StatusSecured}
	assert.Equal(t, "SECURED | 2021 | A", f.Canonical())
	assert.Equal(t, " |  | ", Fact{}.Canonical())
}

func TestStatusKnown(t *testing.T) {
	assert.True(t, StatusSecured.Known())
	assert.True(t, StatusUnconfirmed.Known())
	assert.False(t, Status("RUMOR").Known())
	assert.False(t, Status("secured").Known())
}
