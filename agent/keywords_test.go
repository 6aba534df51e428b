package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferFirstMatchWins(t *testing.T) {
	table := KeywordTable{
		{Pattern: "refine", Kind: "refine_outline"},
		{Pattern: "outline", Kind: "create_outline"},
	}

	kind, ok := table.Infer("Please refine the outline for chapter pacing")
	assert.True(t, ok)
	assert.Equal(t, "refine_outline", kind, "earlier rule outranks later overlapping rule")
}

func TestInferIsCaseInsensitive(t *testing.T) {
	table := KeywordTable{{Pattern: "outline", Kind: "create_outline"}}
	kind, ok := table.Infer("Create an OUTLINE for the book")
	assert.True(t, ok)
	assert.Equal(t, "create_outline", kind)
}

func TestInferNoMatch(t *testing.T) {
	table := KeywordTable{{Pattern: "outline", Kind: "create_outline"}}
	_, ok := table.Infer("generate a marketing blurb")
	assert.False(t, ok, "no silent default kind")
}

func TestInferEmptyDescription(t *testing.T) {
	table := KeywordTable{{Pattern: "outline", Kind: "create_outline"}}
	_, ok := table.Infer("")
	assert.False(t, ok)
}

func TestRoleTables(t *testing.T) {
	tests := []struct {
		table       KeywordTable
		description string
		want        string
	}{
		{outlineKeywords, "refine the outline based on feedback", KindRefineOutline},
		{outlineKeywords, "create character profiles", KindCreateCharacters},
		{outlineKeywords, "draft the book outline", KindCreateOutline},
		{narrativeKeywords, "revise chapter 3", KindReviseChapter},
		{narrativeKeywords, "write chapter 1", KindWriteChapter},
		{narrativeKeywords, "chapter 2 please", KindWriteChapter},
		{visualKeywords, "design a cover concept", KindCreateCoverConcept},
		{visualKeywords, "generate the cover art", KindGenerateCoverArt},
		{maestroKeywords, "initialize a new book project", KindInitializeBook},
		{maestroKeywords, "progress report for the book", KindGenerateReport},
	}
	for _, tt := range tests {
		kind, ok := tt.table.Infer(tt.description)
		assert.True(t, ok, tt.description)
		assert.Equal(t, tt.want, kind, tt.description)
	}
}
