package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var ErrMalformedResponse = errors.New("model response has no classifications array")

type batchItem struct {
	EmailID     string  `json:"emailId"`
	Assignments *[]bool `json:"assignments"`
}

type singleItem struct {
	EmailID    string `json:"emailId"`
	Applicable *bool  `json:"applicable"`
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// classificationItems returns the raw items of the top-level classifications array.
func classificationItems(raw string) ([]json.RawMessage, error) {
	var envelope struct {
		Classifications json.RawMessage `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &envelope); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	body := bytes.TrimSpace(envelope.Classifications)
	if len(body) == 0 || body[0] != '[' {
		return nil, ErrMalformedResponse
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode classifications: %w", err)
	}
	return items, nil
}

// ParseBatchResponse maps email ids to their assignment vectors. Items whose
// vector length differs from labelCount, or whose id is not in allowed, are dropped.
func ParseBatchResponse(raw string, labelCount int, allowed map[string]bool) (map[string][]bool, int, error) {
	items, err := classificationItems(raw)
	if err != nil {
		return nil, 0, err
	}

	out := make(map[string][]bool, len(items))
	dropped := 0
	for _, rawItem := range items {
		var item batchItem
		if err := json.Unmarshal(rawItem, &item); err != nil ||
			item.EmailID == "" || item.Assignments == nil ||
			len(*item.Assignments) != labelCount || !allowed[item.EmailID] {
			dropped++
			continue
		}
		out[item.EmailID] = *item.Assignments
	}
	return out, dropped, nil
}

// ParseSingleLabelResponse returns the ids the model marked applicable.
func ParseSingleLabelResponse(raw string, allowed map[string]bool) ([]string, int, error) {
	items, err := classificationItems(raw)
	if err != nil {
		return nil, 0, err
	}

	var ids []string
	dropped := 0
	for _, rawItem := range items {
		var item singleItem
		if err := json.Unmarshal(rawItem, &item); err != nil ||
			item.EmailID == "" || item.Applicable == nil || !allowed[item.EmailID] {
			dropped++
			continue
		}
		if *item.Applicable {
			ids = append(ids, item.EmailID)
		}
	}
	return ids, dropped, nil
}
