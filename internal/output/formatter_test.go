package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendRow struct {
	Name      string
	Available bool
}

var backendColumns = []Column{
	{Name: "Name", Key: "Name"},
	{Name: "Available", Key: "Available"},
}

func TestJSONListEnvelope(t *testing.T) {
	var out bytes.Buffer
	f := &jsonFormatter{out: &out, errOut: &bytes.Buffer{}}

	items := []backendRow{{Name: "keyring", Available: true}}
	require.NoError(t, f.PrintList(items, backendColumns))

	var envelope struct {
		Data  []backendRow `json:"data"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Count)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "keyring", envelope.Data[0].Name)
}

func TestJSONListResultsOnly(t *testing.T) {
	var out bytes.Buffer
	f := &jsonFormatter{resultsOnly: true, out: &out, errOut: &bytes.Buffer{}}

	items := []backendRow{
		{Name: "keyring", Available: true},
		{Name: "pass", Available: false},
	}
	require.NoError(t, f.PrintList(items, backendColumns))

	// Bare array, no envelope.
	var rows []backendRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "pass", rows[1].Name)
	assert.NotContains(t, out.String(), `"count"`)
}

func TestJSONErrorAndHint(t *testing.T) {
	var errOut bytes.Buffer
	f := &jsonFormatter{out: &bytes.Buffer{}, errOut: &errOut}

	f.PrintError(errors.New("vault locked"))
	f.PrintHint("run unlock first")

	var obj map[string]string
	require.NoError(t, json.Unmarshal(errOut.Bytes(), &obj))
	assert.Equal(t, "vault locked", obj["error"])
	assert.NotContains(t, errOut.String(), "run unlock first", "hints stay out of JSON stderr")
}

func TestPlainList(t *testing.T) {
	var out bytes.Buffer
	f := &plainFormatter{out: &out, errOut: &bytes.Buffer{}}

	items := []backendRow{
		{Name: "keyring", Available: true},
		{Name: "bitwarden", Available: false},
	}
	require.NoError(t, f.PrintList(items, backendColumns))

	assert.Equal(t, "Name\tAvailable\nkeyring\ttrue\nbitwarden\tfalse\n", out.String())
}

func TestPlainListRejectsNonSlice(t *testing.T) {
	f := &plainFormatter{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	assert.Error(t, f.PrintList(backendRow{Name: "keyring"}, backendColumns))
}

func TestPlainPrintStruct(t *testing.T) {
	var out bytes.Buffer
	f := &plainFormatter{out: &out, errOut: &bytes.Buffer{}}

	require.NoError(t, f.Print(backendRow{Name: "pass", Available: true}))
	assert.Equal(t, "Name\tpass\nAvailable\ttrue\n", out.String())
}

func TestRowValuesMissingField(t *testing.T) {
	rows, err := rowValues([]backendRow{{Name: "keyring"}}, []Column{
		{Name: "Name", Key: "Name"},
		{Name: "Gone", Key: "NoSuchField"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"keyring", ""}, rows[0])
}

func TestNewSelectsMode(t *testing.T) {
	_, ok := New("json").(*jsonFormatter)
	assert.True(t, ok)
	_, ok = New("plain").(*plainFormatter)
	assert.True(t, ok)
	_, ok = New("rich").(*richFormatter)
	assert.True(t, ok)

	jf, ok := NewJSON(true).(*jsonFormatter)
	require.True(t, ok)
	assert.True(t, jf.resultsOnly)
}
