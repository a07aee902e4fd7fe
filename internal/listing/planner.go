// Package listing composes entity listings from the owned and shared streams.
//
// The backend accepts one array predicate per query and at most ten values per
// "in" set, so a listing request cannot always be pushed down whole. The planner
// decides what each stream's query carries; everything else is filtered here.
package listing

import (
	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/store"
)

// Audience selects which streams a listing reads.
type Audience string

const (
	AudienceAll    Audience = "all"
	AudienceOwned  Audience = "owned"
	AudienceShared Audience = "shared"
)

// ParseAudience maps request input to an Audience; anything unknown means all.
func ParseAudience(s string) Audience {
	switch Audience(s) {
	case AudienceOwned, AudienceShared:
		return Audience(s)
	default:
		return AudienceAll
	}
}

// StreamName identifies one of the two listing streams.
type StreamName string

const (
	StreamOwned  StreamName = "owned"
	StreamShared StreamName = "shared"
)

// Filters are the user's type and tag selections.
// Tags are ANDed across categories and ORed within one.
type Filters struct {
	Types []domain.EntityType
	Tags  domain.TagRefs
}

// Request is a listing request.
type Request struct {
	Audience Audience
	Filters  Filters
	Term     string
	Cursor   string
	Limit    int
}

// StreamPlan is what one stream asks of the backend and what remains to check locally.
type StreamPlan struct {
	Name  StreamName
	Query store.Query

	// ClientTypes is set when the type filter could not be pushed down.
	ClientTypes []domain.EntityType
	// ClientTags holds every selected category that was not pushed down.
	ClientTags domain.TagRefs
}

// Plan is the set of streams for one request.
type Plan struct {
	Streams []StreamPlan
}

// Planner turns requests into backend-legal stream plans.
//
// First-category pushdown: a stream pushes down the first non-empty tag category,
// in category order, whose values fit in one "in" set, provided the stream still
// has an array predicate to spend. The owned stream's audience is an equality
// predicate, so it usually can. The shared stream's audience already spends the
// only array predicate, so with the default capabilities it never pushes tags.
type Planner struct {
	caps store.Capabilities
}

// NewPlanner creates a planner for the given backend limits.
func NewPlanner(caps store.Capabilities) Planner {
	return Planner{caps: caps}
}

// Plan builds the stream plans for userID.
func (p Planner) Plan(userID string, req Request) Plan {
	var plan Plan
	if req.Audience != AudienceShared {
		plan.Streams = append(plan.Streams, p.stream(StreamOwned, store.AudienceOwner, userID, req.Filters))
	}
	if req.Audience != AudienceOwned {
		plan.Streams = append(plan.Streams, p.stream(StreamShared, store.AudienceViewer, userID, req.Filters))
	}
	return plan
}

func (p Planner) stream(name StreamName, audience store.Audience, userID string, f Filters) StreamPlan {
	sp := StreamPlan{
		Name:  name,
		Query: store.Query{Audience: audience, UserID: userID},
	}

	if n := len(f.Types); n > 0 {
		if n <= p.caps.MaxInValues {
			sp.Query.TypesIn = f.Types
		} else {
			sp.ClientTypes = f.Types
		}
	}

	budget := p.caps.MaxArrayPredicates - sp.Query.ArrayPredicates()
	pushed := domain.TagCategory("")
	if budget > 0 {
		for _, c := range domain.TagCategories {
			ids := f.Tags.Get(c)
			if len(ids) == 0 {
				continue
			}
			if len(ids) <= p.caps.MaxInValues {
				pushed = c
				sp.Query.TagCategory = c
				sp.Query.TagsAny = ids
				break
			}
		}
	}

	for _, c := range domain.TagCategories {
		ids := f.Tags.Get(c)
		if len(ids) == 0 || c == pushed {
			continue
		}
		if sp.ClientTags == nil {
			sp.ClientTags = domain.TagRefs{}
		}
		sp.ClientTags[c] = ids
	}
	return sp
}

// Keep reports whether e passes the stream's client-side filters.
func (sp StreamPlan) Keep(e *domain.Entity) bool {
	return MatchesFilters(e, Filters{Types: sp.ClientTypes, Tags: sp.ClientTags})
}
