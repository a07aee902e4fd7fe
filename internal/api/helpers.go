package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/listing"
)

// ListingQuery holds the listing parameters shared by the page and stream endpoints.
type ListingQuery struct {
	Audience     string   `query:"audience" enum:"all,owned,shared" default:"all" doc:"Whose entities to list"`
	Types        []string `query:"types" doc:"Entity types to include (comma separated)"`
	From         []string `query:"from" doc:"Tag IDs in the from category"`
	Relationship []string `query:"relationship" doc:"Tag IDs in the relationship category"`
	Character    []string `query:"character" doc:"Tag IDs in the character category"`
	Field        []string `query:"field" doc:"Tag IDs in the field category"`
	Q            string   `query:"q" maxLength:"200" doc:"Search term; switches the listing to search"`
	Cursor       string   `query:"cursor" doc:"Opaque cursor from a previous page"`
	Limit        int      `query:"limit" minimum:"0" maximum:"200" doc:"Page size (0 uses the server default)"`
}

// Request converts the query into a listing request.
func (q ListingQuery) Request() (listing.Request, error) {
	req := listing.Request{
		Audience: listing.ParseAudience(q.Audience),
		Term:     strings.TrimSpace(q.Q),
		Cursor:   q.Cursor,
		Limit:    q.Limit,
	}

	for _, raw := range q.Types {
		t := domain.EntityType(strings.TrimSpace(raw))
		if !t.Valid() {
			return listing.Request{}, domainerrors.Validationf("unknown entity type %q", raw)
		}
		req.Filters.Types = append(req.Filters.Types, t)
	}

	tags := domain.TagRefs{}
	tags.Set(domain.CategoryFrom, cleanList(q.From))
	tags.Set(domain.CategoryRelationship, cleanList(q.Relationship))
	tags.Set(domain.CategoryCharacter, cleanList(q.Character))
	tags.Set(domain.CategoryField, cleanList(q.Field))
	if len(tags) > 0 {
		req.Filters.Tags = tags
	}

	return req, nil
}

// listingQueryFromValues parses the same parameters for routes outside huma.
// Lists accept both repeated keys and comma separated values.
func listingQueryFromValues(v url.Values) (ListingQuery, error) {
	q := ListingQuery{
		Audience:     v.Get("audience"),
		Types:        splitValues(v["types"]),
		From:         splitValues(v["from"]),
		Relationship: splitValues(v["relationship"]),
		Character:    splitValues(v["character"]),
		Field:        splitValues(v["field"]),
		Q:            v.Get("q"),
		Cursor:       v.Get("cursor"),
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListingQuery{}, domainerrors.Validationf("invalid limit %q", raw)
		}
		q.Limit = n
	}
	return q, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
