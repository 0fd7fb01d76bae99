package main

import (
	"os"
	"path/filepath"
	"testing"

	contextutils "quizinsight/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture_Seed(t *testing.T) {
	fixture, err := loadFixture(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)

	assert.Len(t, fixture.Users, 3)
	assert.Len(t, fixture.Quizzes, 5)
	assert.Len(t, fixture.Answers, 9)
	require.Len(t, fixture.Placements, 2)
	assert.Equal(t, map[int]string{0: "B", 1: "A", 2: "C"}, fixture.Placements[0].Answers)
}

func TestLoadFixture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no users", "users: []\n"},
		{"unknown kind", "users: [a]\nquizzes: [{key: q, kind: maths}]\n"},
		{"unknown difficulty", "users: [a]\nquizzes: [{key: q, kind: grammar, difficulty: expert}]\n"},
		{"duplicate quiz", "users: [a]\nquizzes: [{key: q, kind: grammar}, {key: q, kind: reading}]\n"},
		{"unknown user", "users: [a]\nquizzes: [{key: q, kind: grammar}]\nanswers: [{user: b, quiz: q}]\n"},
		{"unknown quiz", "users: [a]\nanswers: [{user: a, quiz: q}]\n"},
		{"placement user", "users: [a]\nplacements: [{user: b, set_file: x.yaml}]\n"},
		{"not yaml", "users: [a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seed.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))

			_, err := loadFixture(path)
			require.Error(t, err)
			assert.NotEqual(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
		})
	}
}
