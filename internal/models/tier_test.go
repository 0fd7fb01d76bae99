package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifficultyTier_String(t *testing.T) {
	assert.Equal(t, "unplaced", TierUnplaced.String())
	assert.Equal(t, "beginner", TierBeginner.String())
	assert.Equal(t, "intermediate", TierIntermediate.String())
	assert.Equal(t, "advanced", TierAdvanced.String())
}

func TestParseDifficultyTier(t *testing.T) {
	tests := []struct {
		in      string
		want    DifficultyTier
		wantErr bool
	}{
		{"", TierUnplaced, false},
		{"unplaced", TierUnplaced, false},
		{"Beginner", TierBeginner, false},
		{" advanced ", TierAdvanced, false},
		{"intermediate", TierIntermediate, false},
		{"expert", TierUnplaced, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDifficultyTier(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDifficultyTier_JSON(t *testing.T) {
	stats := DashboardStats{UserID: 1}
	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tier":"unplaced"`)

	var decoded DashboardStats
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":1,"tier":"advanced"}`), &decoded))
	assert.Equal(t, TierAdvanced, decoded.Tier)

	assert.Error(t, json.Unmarshal([]byte(`{"tier":"guru"}`), &decoded))
}

func TestParseContentKind(t *testing.T) {
	assert.Equal(t, KindGrammar, ParseContentKind("Grammar"))
	assert.Equal(t, KindVocabulary, ParseContentKind("vocabulary"))
	assert.Equal(t, KindUnclassified, ParseContentKind("listening"))
	assert.Equal(t, KindUnclassified, ParseContentKind(""))
}
