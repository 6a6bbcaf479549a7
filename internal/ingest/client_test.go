package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedFixture is a trimmed genary.json payload: two coal units, one solar
// unit, a subtotal row, a load forecast row and an offline unit.
const feedFixture = `{
	"aaData": [
		["<b>燃煤(Coal)</b>", "", "小計", "", "3,200.0", "", ""],
		["<b>燃煤(Coal)</b>", "", "林口#1", "800.0", "1,750.5", "", ""],
		["<b>燃煤(Coal)</b>", "", "林口#2", "800.0", "1,449.5", "", ""],
		["<b>太陽能(Solar)</b>", "", "彰濱", "100.0", "82.3", "", ""],
		["<b>儲能(Energy Storage System)</b>", "", "龍潭", "60.0", "12.0", "", ""],
		["<b>太陽能(Solar)</b>", "", "離島", "5.0", "N/A", "", ""],
		["<b>Load</b>", "", "預估", "", "30,000", "", ""]
	]
}`

func TestParseGenerationRowsFoldsUnitsIntoFuelTotals(t *testing.T) {
	var response generationResponse
	require.NoError(t, json.Unmarshal([]byte(feedFixture), &response))

	snapshot := ParseGenerationRows(response.AaData)

	// Subtotal, offline and load rows are excluded; two coal units fold
	// into one total.
	assert.Equal(t, 4, snapshot.Units)
	assert.InDelta(t, 3200.0, snapshot.GenerationMW["Coal"], 0.001)
	assert.InDelta(t, 82.3, snapshot.GenerationMW["Solar"], 0.001)
	assert.InDelta(t, 12.0, snapshot.GenerationMW["Storage"], 0.001)
	assert.NotContains(t, snapshot.GenerationMW, "Load")
}

func TestParseGenerationRowsSlotAlignment(t *testing.T) {
	snapshot := ParseGenerationRows([][]string{
		{"<b>燃氣(LNG)</b>", "", "大潭#1", "700.0", "698.2"},
	})

	assert.Zero(t, snapshot.ObservedAt.UTC().Minute()%10)
	assert.Zero(t, snapshot.ObservedAt.Second())
}

func TestParseGenerationRowsUnknownFuelPassesThrough(t *testing.T) {
	snapshot := ParseGenerationRows([][]string{
		{"<b>地熱(Geothermal)</b>", "", "清水", "4.2", "3.9"},
	})

	assert.InDelta(t, 3.9, snapshot.GenerationMW["地熱(Geothermal)"], 0.001)
}

func TestWeatherValueDecoding(t *testing.T) {
	var payload struct {
		A weatherValue `json:"a"`
		B weatherValue `json:"b"`
		C weatherValue `json:"c"`
		D weatherValue `json:"d"`
	}
	raw := `{"a": "27.5", "b": 3.1, "c": "-99", "d": "T"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.True(t, payload.A.Valid)
	assert.InDelta(t, 27.5, payload.A.Value, 0.001)
	assert.True(t, payload.B.Valid)
	assert.InDelta(t, 3.1, payload.B.Value, 0.001)
	assert.False(t, payload.C.Valid, "sentinel -99 means missing")
	assert.False(t, payload.D.Valid, "trace markers are not numbers")
}
