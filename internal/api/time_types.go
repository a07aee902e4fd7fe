package api

import (
	"bytes"
	"encoding/json/v2"
	"fmt"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// flexLayouts are tried in order for string values. A bare date means
// midnight UTC, which is how clients send day-only interactions.
var flexLayouts = []string{time.RFC3339Nano, time.DateOnly}

// FlexTime decodes an RFC3339 time, a YYYY-MM-DD date, or epoch
// milliseconds given as a number or a numeric string. It encodes as RFC3339.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return ft.parseString(s)
	}

	// Numbers may arrive in float notation from some encoders.
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into FlexTime", data)
	}
	ft.Time = time.UnixMilli(int64(ms))
	return nil
}

func (ft *FlexTime) parseString(s string) error {
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ft.Time = t
			return nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}
	return fmt.Errorf("cannot parse time string: %s", s)
}

// MarshalJSON implements json.Marshaler.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Format(time.RFC3339))
}

// Schema documents every accepted encoding.
func (FlexTime) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeString, Description: "RFC3339 time, YYYY-MM-DD date, or epoch milliseconds"},
			{Type: huma.TypeNumber, Description: "Epoch milliseconds"},
		},
	}
}

// ToTime returns the underlying time.Time value.
func (ft FlexTime) ToTime() time.Time {
	return ft.Time
}
