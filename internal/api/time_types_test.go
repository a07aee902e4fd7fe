package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime_UnmarshalJSON(t *testing.T) {
	epoch := time.UnixMilli(1705314600000)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", `"2024-01-15T10:30:00Z"`, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 nano", `"2024-01-15T10:30:00.123456789Z"`, time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)},
		{"epoch ms number", `1705314600000`, epoch},
		{"epoch ms string", `"1705314600000"`, epoch},
		{"epoch ms float", `1.7053146e+12`, epoch},
		{"date only", `"2024-01-15"`, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ft))
			assert.True(t, tt.want.Equal(ft.Time))
		})
	}

	var ft FlexTime
	assert.Error(t, json.Unmarshal([]byte(`"last tuesday"`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`true`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`"15/01/2024"`), &ft))
}

func TestFlexTime_MarshalJSON(t *testing.T) {
	ft := FlexTime{Time: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	data, err := json.Marshal(ft)
	require.NoError(t, err)

	assert.Equal(t, `"2024-01-15T10:30:00Z"`, string(data))
}

func TestInteractionRequest_ToInput(t *testing.T) {
	var req InteractionRequest
	input := `{"type":"coffee","date":1705314600000,"entity_refs":["e1","e2"],"catchup_done":true}`
	require.NoError(t, json.Unmarshal([]byte(input), &req))

	in := req.ToInput()
	assert.Equal(t, "coffee", in.Type)
	assert.True(t, time.UnixMilli(1705314600000).Equal(in.Date))
	assert.Equal(t, []string{"e1", "e2"}, in.EntityRefs)
	assert.True(t, in.CatchupDone)
}
