package fieldparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGender(t *testing.T) {
	assert.Equal(t, "female", *Gender("Female"))
	assert.Equal(t, "male", *Gender("M"))
	assert.Equal(t, "non_binary", *Gender("Non-binary"))
	assert.Nil(t, Gender("N/A"))
	assert.Nil(t, Gender(""))
}

func TestRaceEthnicity(t *testing.T) {
	got := RaceEthnicity("  Asian (Indian) ")
	require.NotNil(t, got)
	assert.Equal(t, "Asian (Indian)", *got)
	assert.Nil(t, RaceEthnicity("prefer not to say"))
}

func TestFlag(t *testing.T) {
	assert.True(t, *Flag("Yes"))
	assert.False(t, *Flag("no"))
	assert.Nil(t, Flag("maybe"))
}

func TestHookMentions(t *testing.T) {
	assert.True(t, MentionsFirstGen("FGLI, URM"))
	assert.True(t, MentionsFirstGen("First-gen"))
	assert.False(t, MentionsFirstGen("None"))
	assert.True(t, MentionsLegacy("Legacy at Penn"))
	assert.False(t, MentionsLegacy("recruited athlete"))
}

func TestLocale(t *testing.T) {
	assert.Equal(t, LocaleSuburban, *Locale("Suburban Ohio"))
	assert.Equal(t, LocaleUrban, *Locale("urban"))
	assert.Equal(t, LocaleRural, *Locale("Rural Montana"))
	assert.Nil(t, Locale("Ohio"))
}

func TestMajor(t *testing.T) {
	got := Major(" Computer Science ")
	require.NotNil(t, got)
	assert.Equal(t, "Computer Science", *got)
	assert.Nil(t, Major("N/A"))

	long := Major(strings.Repeat("a", 150))
	require.NotNil(t, long)
	assert.Len(t, *long, MaxMajorLength)
}
