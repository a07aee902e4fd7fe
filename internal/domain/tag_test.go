package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTagDelta(t *testing.T) {
	tests := []struct {
		name        string
		before      []string
		after       []string
		wantAdded   []string
		wantRemoved []string
	}{
		{"no change", []string{"a", "b"}, []string{"b", "a"}, nil, nil},
		{"added", nil, []string{"a", "b"}, []string{"a", "b"}, nil},
		{"removed", []string{"a", "b"}, nil, nil, []string{"a", "b"}},
		{"swap", []string{"a", "b"}, []string{"b", "c"}, []string{"c"}, []string{"a"}},
		{"duplicates collapse", []string{"a", "a"}, []string{"c", "c"}, []string{"c"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ComputeTagDelta(tt.before, tt.after)
			assert.Equal(t, tt.wantAdded, d.Added)
			assert.Equal(t, tt.wantRemoved, d.Removed)
		})
	}
}

func TestTagRefs(t *testing.T) {
	refs := TagRefs{}
	refs.Set(CategoryFrom, []string{"tel_aviv"})
	refs.Set(CategoryField, nil)

	assert.Equal(t, []string{"tel_aviv"}, refs.Get(CategoryFrom))
	assert.NotContains(t, refs, CategoryField)
	assert.True(t, refs.HasAny(CategoryFrom, []string{"haifa", "tel_aviv"}))
	assert.False(t, refs.HasAny(CategoryCharacter, []string{"kind"}))

	clone := refs.Clone()
	clone[CategoryFrom][0] = "haifa"
	assert.Equal(t, "tel_aviv", refs[CategoryFrom][0])
}

func TestEntity_AccessAndViewers(t *testing.T) {
	e := &Entity{OwnerID: "alice"}

	assert.True(t, e.CanView("alice"))
	assert.False(t, e.CanView("bob"))

	assert.True(t, e.AddViewer("bob"))
	assert.False(t, e.AddViewer("bob"))
	assert.False(t, e.AddViewer("alice"))
	assert.True(t, e.CanView("bob"))
	assert.False(t, e.IsOwnedBy("bob"))
}

func TestEntity_RemoveRelation(t *testing.T) {
	e := &Entity{Relations: []string{"x", "y", "x"}}
	assert.True(t, e.RemoveRelation("x"))
	assert.Equal(t, []string{"y"}, e.Relations)
	assert.False(t, e.RemoveRelation("z"))
}

func TestParseEntityType(t *testing.T) {
	assert.Equal(t, EntityGroup, ParseEntityType("group"))
	assert.Equal(t, EntityPerson, ParseEntityType(""))
	assert.Equal(t, EntityPerson, ParseEntityType("alien"))
}

func TestRemoveRef(t *testing.T) {
	rest, empty := RemoveRef([]string{"a", "b"}, "a")
	assert.Equal(t, []string{"b"}, rest)
	assert.False(t, empty)

	_, empty = RemoveRef([]string{"a"}, "a")
	assert.True(t, empty)
}
