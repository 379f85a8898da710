package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testUUID = "44220f30-1ece-4b16-b3e1-b117ac61184f"

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestExtractDatasetID(t *testing.T) {
	stac := mustJSON(t, map[string]any{"type": "Feature", "id": testUUID, "properties": map[string]any{"a": 1}})

	tests := []struct {
		name string
		body string
	}{
		{"bare uuid", testUUID},
		{"bare uuid with whitespace", "  " + testUUID + "\n"},
		{"upper case uuid", "44220F30-1ECE-4B16-B3E1-B117AC61184F"},
		{"stac feature id", stac},
		{"dataset_uuid key", mustJSON(t, map[string]any{"dataset_uuid": testUUID})},
		{"nested feature", mustJSON(t, map[string]any{"feature": map[string]any{"id": testUUID}})},
		{"sns envelope", mustJSON(t, map[string]any{"Type": "Notification", "Message": stac})},
		{"sns envelope with bare uuid", mustJSON(t, map[string]any{"Message": testUUID})},
		{"double envelope", mustJSON(t, map[string]any{"Message": mustJSON(t, map[string]any{"Message": stac})})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractDatasetID(tt.body)
			assert.True(t, ok)
			assert.Equal(t, testUUID, id)
		})
	}
}

func TestExtractDatasetIDRejectsMalformed(t *testing.T) {
	bodies := []string{
		"",
		"not-a-uuid",
		`{"id":"not-a-uuid"}`,
		`{"id": 42}`,
		`{"feature": {"id": "nope"}}`,
		`{"Message": "{broken json"}`,
		`{broken`,
		`[` + `"` + testUUID + `"]`,
		"urn:uuid:" + testUUID,
	}
	for _, body := range bodies {
		id, ok := ExtractDatasetID(body)
		assert.False(t, ok, "body %q", body)
		assert.Empty(t, id)
	}
}
