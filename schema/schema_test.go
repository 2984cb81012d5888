package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "AnalysisResult", "AnalysisResult"},
		{"dots replaced", "planexe.AnalysisResult", "planexe_AnalysisResult"},
		{"spaces and symbols", "my schema (v2)!", "my_schema__v2"},
		{"trailing underscores stripped", "Result...", "Result"},
		{"truncated to 64", strings64() + "extra", strings64()},
		{"empty falls back", "", "schema"},
		{"only invalid chars falls back", "...", "schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLabel(tt.in))
		})
	}
}

func strings64() string {
	return strings.Repeat("abcd", 16)
}

type fixtureReport struct {
	Title    string   `json:"title"`
	Score    float64  `json:"score"`
	Findings []string `json:"findings,omitempty"`
}

func TestReflect(t *testing.T) {
	entry, err := Reflect[fixtureReport]("")
	require.NoError(t, err)
	assert.Equal(t, "schema.fixtureReport", entry.QualifiedName)
	assert.Equal(t, "schema_fixtureReport", entry.Label)
	assert.Contains(t, string(entry.Schema), `"title"`)
	assert.Contains(t, string(entry.Schema), `"score"`)
}

func TestReflectCustomLabel(t *testing.T) {
	entry, err := Reflect[fixtureReport]("weekly report")
	require.NoError(t, err)
	assert.Equal(t, "weekly_report", entry.Label)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	entry, err := Reflect[fixtureReport]("report")
	require.NoError(t, err)
	reg.Register(entry)

	got, ok := reg.Lookup("report")
	require.True(t, ok)
	assert.Equal(t, entry.QualifiedName, got.QualifiedName)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"report"}, reg.Labels())
}
