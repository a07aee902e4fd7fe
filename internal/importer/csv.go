package importer

import (
	"encoding/csv"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/normalize"
)

// Column names of the interchange format, in export order.
const (
	colEntityID      = "entity_id"
	colName          = "name"
	colType          = "type"
	colInfo          = "info"
	colFrom          = "from"
	colRelationship  = "relationship"
	colCharacter     = "character"
	colField         = "field"
	colPhones        = "phones_e164"
	colEmails        = "emails"
	colInstagram     = "insta_urls"
	colLinkedIn      = "linkedin_urls"
	colURLs          = "urls"
	colOtherContacts = "other_contacts"
	colAddresses     = "addresses"
	colDates         = "dates"
)

// Headers is the full column set, in the order Export writes it.
var Headers = []string{
	colEntityID, colName, colType, colInfo,
	colFrom, colRelationship, colCharacter, colField,
	colPhones, colEmails, colInstagram, colLinkedIn, colURLs, colOtherContacts,
	colAddresses, colDates,
}

const dateLayout = "2006-01-02"

// Row is one parsed data line.
//
// TagNames holds display names as written in the file; they become tag ids
// only when the row is imported.
type Row struct {
	Line      int
	Short     bool // fewer cells than headers; reported as a row error
	EntityID  string
	Name      string
	Type      domain.EntityType
	Info      string
	TagNames  map[domain.TagCategory][]string
	Contact   domain.Contact
	Addresses []domain.Address
	Dates     []domain.DateEntry
}

// label returns the name used when reporting a failed row.
func (r *Row) label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.EntityID != "":
		return r.EntityID
	default:
		return "(no name)"
	}
}

// csvAddress is the JSON shape of one item in the addresses column.
type csvAddress struct {
	Formatted string  `json:"formatted"`
	Label     string  `json:"label,omitempty"`
	PlaceID   string  `json:"placeId,omitempty"`
	Lat       float64 `json:"lat,omitzero"`
	Lng       float64 `json:"lng,omitzero"`
}

// Parse reads a CSV document and parses every data row.
//
// Missing columns and a structured cell that does not parse fail the whole
// document with a MalformedInput error; nothing is returned in that case.
// Rows with too few cells are returned flagged Short.
func Parse(r io.Reader) ([]*Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domainerrors.MalformedInput("empty CSV document")
	}
	if err != nil {
		return nil, domainerrors.MalformedInputf("CSV parse error: %v", err).WithCause(err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	var missing []string
	for _, h := range Headers {
		if _, ok := cols[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, domainerrors.MalformedInputf("missing headers: %s", strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing": missing})
	}

	var rows []*Row
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domainerrors.MalformedInputf("CSV parse error: %v", err).WithCause(err)
		}
		if isBlank(cells) {
			continue
		}
		row, err := parseRow(line, cols, len(header), cells)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(cells []string) bool {
	return !slices.ContainsFunc(cells, func(c string) bool { return strings.TrimSpace(c) != "" })
}

func parseRow(line int, cols map[string]int, width int, cells []string) (*Row, error) {
	cell := func(name string) string {
		if i := cols[name]; i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	row := &Row{
		Line:     line,
		Short:    len(cells) < width,
		EntityID: cell(colEntityID),
		Name:     cell(colName),
		Type:     domain.ParseEntityType(strings.ToLower(cell(colType))),
		Info:     cell(colInfo),
		TagNames: map[domain.TagCategory][]string{
			domain.CategoryFrom:         normalize.SplitList(cell(colFrom)),
			domain.CategoryRelationship: normalize.SplitList(cell(colRelationship)),
			domain.CategoryCharacter:    normalize.SplitList(cell(colCharacter)),
			domain.CategoryField:        normalize.SplitList(cell(colField)),
		},
	}
	if row.Short {
		return row, nil
	}

	addresses, err := parseAddresses(cell(colAddresses))
	if err != nil {
		return nil, domainerrors.MalformedInputf("invalid addresses JSON on line %d; import canceled", line).
			WithDetails(map[string]any{"line": line, "name": row.Name, "entity_id": row.EntityID}).
			WithCause(err)
	}
	row.Addresses = addresses

	for _, raw := range normalize.SplitList(cell(colPhones)) {
		if e164, ok := normalize.PhoneE164(raw); ok {
			row.Contact.Phones = append(row.Contact.Phones, domain.Phone{E164: e164})
		}
	}
	for _, v := range normalize.SplitList(cell(colEmails)) {
		row.Contact.Emails = append(row.Contact.Emails, domain.Email{Address: v})
	}
	for _, v := range normalize.SplitList(cell(colInstagram)) {
		if url := normalize.InstagramURL(v); url != "" {
			row.Contact.Instagram = append(row.Contact.Instagram, domain.Link{URL: url})
		}
	}
	for _, v := range normalize.SplitList(cell(colLinkedIn)) {
		row.Contact.LinkedIn = append(row.Contact.LinkedIn, domain.Link{URL: v})
	}
	for _, v := range normalize.SplitList(cell(colURLs)) {
		row.Contact.URLs = append(row.Contact.URLs, domain.Link{URL: v})
	}
	for _, v := range normalize.SplitList(cell(colOtherContacts)) {
		row.Contact.Other = append(row.Contact.Other, domain.Note{Text: v})
	}
	row.Dates = parseDates(cell(colDates))
	return row, nil
}

// parseAddresses decodes the addresses cell. Blank means none; anything other
// than a JSON array is an error.
func parseAddresses(cell string) ([]domain.Address, error) {
	if cell == "" {
		return nil, nil
	}
	var items []csvAddress
	if err := json.Unmarshal([]byte(cell), &items); err != nil {
		return nil, fmt.Errorf("addresses must be a JSON array: %w", err)
	}
	out := make([]domain.Address, 0, len(items))
	for _, a := range items {
		out = append(out, domain.Address{
			Formatted: a.Formatted,
			Label:     a.Label,
			PlaceID:   a.PlaceID,
			Lat:       a.Lat,
			Lng:       a.Lng,
		})
	}
	return out, nil
}

// parseDates reads "label:YYYY-MM-DD" items, splitting at the last colon.
// Items without a label or with an invalid date are dropped.
func parseDates(cell string) []domain.DateEntry {
	var out []domain.DateEntry
	for _, item := range normalize.SplitList(cell) {
		i := strings.LastIndex(item, ":")
		if i <= 0 {
			continue
		}
		label := strings.TrimSpace(item[:i])
		date := strings.TrimSpace(item[i+1:])
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		out = append(out, domain.DateEntry{Label: label, Date: date})
	}
	return out
}
