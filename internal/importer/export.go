package importer

import (
	"context"
	"encoding/csv"
	"encoding/json/v2"
	"fmt"
	"io"
	"strings"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/store"
)

// Export writes entities visible to userID in the import format, tag ids
// resolved to display names. With no ids it writes every entity userID owns.
// Ids the user cannot see are left out.
func (im *Importer) Export(ctx context.Context, userID string, ids []string, w io.Writer) (int, error) {
	entities, err := im.exportSet(ctx, userID, ids)
	if err != nil {
		return 0, err
	}

	names, err := im.tagNames(ctx, entities)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, e := range entities {
		rec, err := exportRecord(e, names)
		if err != nil {
			return 0, fmt.Errorf("encode entity %s: %w", e.ID, err)
		}
		if err := cw.Write(rec); err != nil {
			return 0, fmt.Errorf("write entity %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	im.logger.Info("export complete", "user_id", userID, "entities", len(entities))
	return len(entities), nil
}

func (im *Importer) exportSet(ctx context.Context, userID string, ids []string) ([]*domain.Entity, error) {
	if len(ids) > 0 {
		found, err := im.store.Entities.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := found[:0]
		for _, e := range found {
			if e.CanView(userID) {
				out = append(out, e)
			}
		}
		return out, nil
	}

	var out []*domain.Entity
	q := store.Query{Audience: store.AudienceOwner, UserID: userID, Limit: store.MaxPageSize}
	for {
		page, err := im.store.QueryEntities(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if !page.HasMore {
			return out, nil
		}
		q.After = page.NextCursor
	}
}

// tagNames maps category and tag id to display name for every referenced tag.
func (im *Importer) tagNames(ctx context.Context, entities []*domain.Entity) (map[domain.TagCategory]map[string]string, error) {
	out := make(map[domain.TagCategory]map[string]string, len(domain.TagCategories))
	for _, c := range domain.TagCategories {
		seen := make(map[string]bool)
		var ids []string
		for _, e := range entities {
			for _, id := range e.Tags.Get(c) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		out[c] = make(map[string]string, len(ids))
		if len(ids) == 0 {
			continue
		}
		tags, err := im.store.GetTagsByIDs(ctx, c, ids)
		if err != nil {
			return nil, fmt.Errorf("load %s tags: %w", c, err)
		}
		for _, t := range tags {
			out[c][t.ID] = t.Name
		}
	}
	return out, nil
}

func exportRecord(e *domain.Entity, names map[domain.TagCategory]map[string]string) ([]string, error) {
	tagCell := func(c domain.TagCategory) string {
		ids := e.Tags.Get(c)
		out := make([]string, len(ids))
		for i, id := range ids {
			if n, ok := names[c][id]; ok {
				out[i] = n
			} else {
				out[i] = id
			}
		}
		return listCell(out)
	}

	addresses := make([]csvAddress, len(e.Addresses))
	for i, a := range e.Addresses {
		addresses[i] = csvAddress{Formatted: a.Formatted, Label: a.Label, PlaceID: a.PlaceID, Lat: a.Lat, Lng: a.Lng}
	}
	addrJSON, err := json.Marshal(addresses)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		if d.Label != "" && d.Date != "" {
			dates = append(dates, d.Label+":"+d.Date)
		}
	}

	typ := e.Type
	if typ == "" {
		typ = domain.EntityPerson
	}

	return []string{
		e.ID,
		e.Name,
		string(typ),
		e.Info,
		tagCell(domain.CategoryFrom),
		tagCell(domain.CategoryRelationship),
		tagCell(domain.CategoryCharacter),
		tagCell(domain.CategoryField),
		listCell(pluck(e.Contact.Phones, func(p domain.Phone) string { return p.E164 })),
		listCell(pluck(e.Contact.Emails, func(m domain.Email) string { return m.Address })),
		listCell(pluck(e.Contact.Instagram, func(l domain.Link) string { return l.URL })),
		listCell(pluck(e.Contact.LinkedIn, func(l domain.Link) string { return l.URL })),
		listCell(pluck(e.Contact.URLs, func(l domain.Link) string { return l.URL })),
		listCell(pluck(e.Contact.Other, func(n domain.Note) string { return n.Text })),
		string(addrJSON),
		listCell(dates),
	}, nil
}

func pluck[T any](items []T, get func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if v := get(it); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func listCell(items []string) string {
	return strings.Join(items, ", ")
}
