package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	forward := []struct{ from, to DealStage }{
		{StageFind, StageAnalysis},
		{StageAnalysis, StageOffer},
		{StageOffer, StageUnderContract},
		{StageUnderContract, StageReno},
		{StageReno, StageListed},
		{StageListed, StageSold},
	}
	for _, tc := range forward {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	// No skipping, no going back
	assert.False(t, CanTransition(StageFind, StageOffer))
	assert.False(t, CanTransition(StageOffer, StageFind))
	assert.False(t, CanTransition(StageSold, StageListed))
}

func TestCanTransitionToDead(t *testing.T) {
	for _, from := range []DealStage{StageFind, StageAnalysis, StageOffer, StageUnderContract, StageReno, StageListed} {
		assert.True(t, CanTransition(from, StageDead), "%s -> dead", from)
	}

	// Terminal stages stay terminal
	assert.False(t, CanTransition(StageSold, StageDead))
	assert.False(t, CanTransition(StageDead, StageDead))
	assert.False(t, CanTransition(StageDead, StageFind))
}

func TestCanTransitionUnknownStages(t *testing.T) {
	assert.False(t, CanTransition("bogus", StageAnalysis))
	assert.False(t, CanTransition(StageFind, "bogus"))
	assert.False(t, ValidStage("bogus"))
	assert.True(t, ValidStage(StageUnderContract))
}

func TestRenovationSelectionsRoundTrip(t *testing.T) {
	selections := RenovationSelections{
		{Key: "kitchen", Option: &RenovationOption{Selected: true, Cost: 25000, ValueAddPercent: 6}},
		{Key: "bathroom", Option: &RenovationOption{Selected: false, Cost: 15000, ValueAddPercent: 4}},
		{Key: "custom_deck", Option: nil},
	}

	value, err := selections.Value()
	require.NoError(t, err)

	var decoded RenovationSelections
	require.NoError(t, decoded.Scan(value))

	// Order and content survive the JSON column
	require.Len(t, decoded, 3)
	assert.Equal(t, "kitchen", decoded[0].Key)
	assert.True(t, decoded[0].Option.Selected)
	assert.Equal(t, "bathroom", decoded[1].Key)
	assert.Nil(t, decoded[2].Option)
}

func TestRenovationSelectionsScanNil(t *testing.T) {
	var s RenovationSelections
	require.NoError(t, s.Scan(nil))
	assert.Nil(t, s)

	require.NoError(t, s.Scan([]byte{}))
	assert.Nil(t, s)

	assert.Error(t, s.Scan(42))
}

func TestRenovationSelectionsGet(t *testing.T) {
	selections := RenovationSelections{
		{Key: "kitchen", Option: &RenovationOption{Selected: true}},
	}
	require.NotNil(t, selections.Get("kitchen"))
	assert.Nil(t, selections.Get("bathroom"))
}
