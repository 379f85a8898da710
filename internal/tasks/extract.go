package tasks

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// identifierKeys are the top-level keys that may carry a dataset identifier.
var identifierKeys = []string{"id", "dataset_uuid", "dataset_id"}

const maxEnvelopeDepth = 4

// ExtractDatasetID finds the dataset identifier in a queue message body. It accepts a bare
// UUID, a JSON document with the identifier under a known key or under feature.id, and an
// SNS-style envelope whose Message field holds any of those shapes as a string.
// Bodies without a valid UUID return false.
func ExtractDatasetID(body string) (string, bool) {
	return extract(strings.TrimSpace(body), 0)
}

func extract(body string, depth int) (string, bool) {
	if body == "" || depth > maxEnvelopeDepth {
		return "", false
	}
	if id, ok := parseUUID(body); ok {
		return id, true
	}
	if !strings.HasPrefix(body, "{") {
		return "", false
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", false
	}
	return fromDocument(doc, depth)
}

func fromDocument(doc map[string]any, depth int) (string, bool) {
	for _, key := range identifierKeys {
		if value, ok := doc[key].(string); ok {
			if id, ok := parseUUID(value); ok {
				return id, true
			}
		}
	}
	if feature, ok := doc["feature"].(map[string]any); ok {
		if id, ok := fromDocument(feature, depth+1); ok {
			return id, true
		}
	}
	switch message := doc["Message"].(type) {
	case string:
		return extract(strings.TrimSpace(message), depth+1)
	case map[string]any:
		return fromDocument(message, depth+1)
	}
	return "", false
}

func parseUUID(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if len(value) != 36 {
		return "", false
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
