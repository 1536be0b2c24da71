package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		title  string
		wantID string
		wantOK bool
	}{
		{"Login broken [bz100]", "100", true},
		{"Login broken [bz100]  ", "100", true},
		{"[bz7]", "7", true},
		{"Mentions [bz1] then [bz2]", "2", true},
		{"Key not at the end [bz100] please", "", false},
		{"Wrong prefix [BZ100]", "", false},
		{"Not digits [bzabc]", "", false},
		{"Empty [bz]", "", false},
		{"Hand-written issue", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			id, ok := ParseKey(tt.title)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestFormatTitle(t *testing.T) {
	assert.Equal(t, "Crash on start [bz42]", FormatTitle("  Crash on start ", "42"))
	assert.Equal(t, "[bz42]", FormatTitle("", "42"))

	id, ok := ParseKey(FormatTitle("anything", "9001"))
	require.True(t, ok)
	assert.Equal(t, "9001", id)
}

func TestCorrelate(t *testing.T) {
	corr := Correlate([]DownstreamItem{
		{Number: 12, Title: "Second copy [bz100]"},
		{Number: 3, Title: "Hand-written tracking issue"},
		{Number: 5, Title: "First copy [bz100]"},
		{Number: 9, Title: "Other bug [bz200]"},
		{Number: 20, Title: "Third copy [bz100]"},
	})

	require.Len(t, corr.ByID, 2)
	assert.Equal(t, 5, corr.ByID["100"].Number, "lowest issue number wins")
	assert.Equal(t, 9, corr.ByID["200"].Number)

	require.Len(t, corr.Duplicates, 2)
	assert.Equal(t, "100", corr.Duplicates[0].ID)
	assert.Contains(t, corr.Duplicates[0].Message, "#12")
	assert.Contains(t, corr.Duplicates[1].Message, "#20")
}

func TestCorrelateEmpty(t *testing.T) {
	corr := Correlate(nil)
	assert.Empty(t, corr.ByID)
	assert.Empty(t, corr.Duplicates)
}
