package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Friends", "friends"},
		{"trimmed", "  Tel Aviv  ", "tel_aviv"},
		{"whitespace run", "tel \t aviv", "tel_aviv"},
		{"slash", "design/ux", "design_ux"},
		{"slash run", "a//b", "a_b"},
		{"mixed", "Work / School", "work___school"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TagID(tt.input))
		})
	}
}

func TestTagID_Idempotent(t *testing.T) {
	for _, s := range []string{"Tel Aviv", "design/ux", " Hi  There "} {
		once := TagID(s)
		assert.Equal(t, once, TagID(once))
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Dana Levi", SearchTerm("LEVI")))
	assert.True(t, ContainsFold("Straße", SearchTerm("STRASSE")))
	assert.False(t, ContainsFold("", SearchTerm("x")))
	assert.True(t, ContainsFold("anything", ""))
}

func TestEqualFold(t *testing.T) {
	assert.True(t, EqualFold(" Dana ", "dana"))
	assert.False(t, EqualFold("Dana", "Dan"))
}

func TestPhoneE164(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"0521234567", "+972521234567", true},
		{"052-123-4567", "+972521234567", true},
		{"+14155552671", "+14155552671", true},
		{"+1 (415) 555-2671", "+14155552671", true},
		{"12345", "", false},
		{"+1234567", "", false},
		{"phone me", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := PhoneE164(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstagramURL(t *testing.T) {
	assert.Equal(t, "https://instagram.com/dana", InstagramURL("@dana"))
	assert.Equal(t, "https://instagram.com/dana", InstagramURL("dana"))
	assert.Equal(t, "https://www.instagram.com/dana", InstagramURL("https://www.instagram.com/dana"))
	assert.Equal(t, "https://instagram.com/dana", InstagramURL("instagram.com/dana"))
	assert.Empty(t, InstagramURL("  "))
}

func TestInstagramHandle(t *testing.T) {
	assert.Equal(t, "dana", InstagramHandle("https://instagram.com/dana/"))
	assert.Equal(t, "dana", InstagramHandle("@dana"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a, ,b c ,"))
	assert.Nil(t, SplitList("  "))
}
