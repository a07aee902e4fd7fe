package listing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/store"
)

func ids(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestPlanner_AudienceSelectsStreams(t *testing.T) {
	p := NewPlanner(store.DefaultCapabilities)

	tests := []struct {
		audience Audience
		want     []StreamName
	}{
		{AudienceAll, []StreamName{StreamOwned, StreamShared}},
		{AudienceOwned, []StreamName{StreamOwned}},
		{AudienceShared, []StreamName{StreamShared}},
	}

	for _, tt := range tests {
		t.Run(string(tt.audience), func(t *testing.T) {
			plan := p.Plan("alice", Request{Audience: tt.audience})
			var got []StreamName
			for _, sp := range plan.Streams {
				got = append(got, sp.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanner_FirstCategoryPushdown(t *testing.T) {
	p := NewPlanner(store.DefaultCapabilities)
	f := Filters{Tags: domain.TagRefs{
		domain.CategoryRelationship: {"friend"},
		domain.CategoryField:        {"design", "music"},
	}}

	plan := p.Plan("alice", Request{Audience: AudienceAll, Filters: f})
	require.Len(t, plan.Streams, 2)

	owned := plan.Streams[0]
	assert.Equal(t, domain.CategoryRelationship, owned.Query.TagCategory)
	assert.Equal(t, []string{"friend"}, owned.Query.TagsAny)
	assert.Equal(t, domain.TagRefs{domain.CategoryField: {"design", "music"}}, owned.ClientTags)
	require.NoError(t, owned.Query.Validate(store.DefaultCapabilities))

	shared := plan.Streams[1]
	assert.Empty(t, shared.Query.TagsAny, "shared stream already spends the array predicate")
	assert.Equal(t, f.Tags, shared.ClientTags)
	require.NoError(t, shared.Query.Validate(store.DefaultCapabilities))
}

func TestPlanner_OversizedCategoryFallsThrough(t *testing.T) {
	p := NewPlanner(store.DefaultCapabilities)
	f := Filters{Tags: domain.TagRefs{
		domain.CategoryFrom:      ids(11, "city"),
		domain.CategoryCharacter: {"kind"},
	}}

	owned := p.Plan("alice", Request{Audience: AudienceOwned, Filters: f}).Streams[0]
	assert.Equal(t, domain.CategoryCharacter, owned.Query.TagCategory)
	assert.Len(t, owned.ClientTags[domain.CategoryFrom], 11)
	require.NoError(t, owned.Query.Validate(store.DefaultCapabilities))
}

func TestPlanner_TypesPushdown(t *testing.T) {
	p := NewPlanner(store.Capabilities{MaxArrayPredicates: 1, MaxInValues: 2})

	small := p.Plan("alice", Request{Audience: AudienceOwned, Filters: Filters{
		Types: []domain.EntityType{domain.EntityPerson, domain.EntityGroup},
	}}).Streams[0]
	assert.Len(t, small.Query.TypesIn, 2)
	assert.Empty(t, small.ClientTypes)

	large := p.Plan("alice", Request{Audience: AudienceOwned, Filters: Filters{
		Types: []domain.EntityType{domain.EntityPerson, domain.EntityGroup, domain.EntityOther},
	}}).Streams[0]
	assert.Empty(t, large.Query.TypesIn)
	assert.Len(t, large.ClientTypes, 3)
}

func TestPlanner_WiderBackendPushesSharedTags(t *testing.T) {
	p := NewPlanner(store.Capabilities{MaxArrayPredicates: 2, MaxInValues: 10})
	f := Filters{Tags: domain.TagRefs{domain.CategoryFrom: {"haifa"}}}

	shared := p.Plan("alice", Request{Audience: AudienceShared, Filters: f}).Streams[0]
	assert.Equal(t, []string{"haifa"}, shared.Query.TagsAny)
	assert.Empty(t, shared.ClientTags)
}

func TestMatchesFilters(t *testing.T) {
	e := &domain.Entity{Type: domain.EntityPerson, Tags: domain.TagRefs{
		domain.CategoryFrom:  {"haifa"},
		domain.CategoryField: {"design"},
	}}

	tests := []struct {
		name   string
		filter Filters
		want   bool
	}{
		{"no filters", Filters{}, true},
		{"type match", Filters{Types: []domain.EntityType{domain.EntityPerson}}, true},
		{"type miss", Filters{Types: []domain.EntityType{domain.EntityGroup}}, false},
		{"or within category", Filters{Tags: domain.TagRefs{domain.CategoryFrom: {"tel_aviv", "haifa"}}}, true},
		{"and across categories", Filters{Tags: domain.TagRefs{
			domain.CategoryFrom:  {"haifa"},
			domain.CategoryField: {"music"},
		}}, false},
		{"missing category", Filters{Tags: domain.TagRefs{domain.CategoryCharacter: {"kind"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesFilters(e, tt.filter))
		})
	}
}

func TestParseAudience(t *testing.T) {
	assert.Equal(t, AudienceShared, ParseAudience("shared"))
	assert.Equal(t, AudienceOwned, ParseAudience("owned"))
	assert.Equal(t, AudienceAll, ParseAudience(""))
	assert.Equal(t, AudienceAll, ParseAudience("everyone"))
}
