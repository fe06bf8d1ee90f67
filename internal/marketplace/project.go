package marketplace

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Topic is a marketplace topic attached to a project.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is the normalized view of one marketplace project.
//
// Raw carries the unmodified payload so nothing is lost in translation; the
// typed fields are extracted tolerantly because the marketplace is loose with
// types (numeric IDs, string booleans, fields nested under "project" or
// "details" depending on which endpoint produced the document).
type Project struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      int64           `json:"reward"`
	TimeMinutes int             `json:"time_minutes"`
	Remote      *bool           `json:"remote,omitempty"`
	Topics      []Topic         `json:"topics,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// DecodeProject normalizes one raw marketplace payload. Unparseable input
// yields a Project carrying only Raw.
func DecodeProject(raw json.RawMessage) Project {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Project{Raw: raw}
	}
	return Project{
		ID:          stringField(m, "id"),
		Title:       stringField(m, "name"),
		Description: stringField(m, "description"),
		Reward:      intField(m, "respondentRemuneration"),
		TimeMinutes: int(intField(m, "timeMinutesRequired")),
		Remote:      remoteFlag(m),
		Topics:      topicsField(m),
		Raw:         raw,
	}
}

// MergeDetail overlays detail onto base. Top-level keys from the detail
// payload win; the merged document is re-decoded so the typed fields agree
// with the merged Raw.
func MergeDetail(base, detail Project) Project {
	merged := mergeRaw(base.Raw, detail.Raw)
	if merged == nil {
		return base
	}
	return DecodeProject(merged)
}

func mergeRaw(base, detail json.RawMessage) json.RawMessage {
	var b map[string]json.RawMessage
	if err := json.Unmarshal(base, &b); err != nil || b == nil {
		return detail
	}
	var d map[string]json.RawMessage
	if err := json.Unmarshal(detail, &d); err != nil || d == nil {
		return base
	}
	for k, v := range d {
		b[k] = v
	}
	out, err := json.Marshal(b)
	if err != nil {
		return base
	}
	return out
}

// remoteFlag probes every location the marketplace has been seen to put the
// remote indicator: project.isRemote, details.isRemote, root isRemote, and
// details.details.isRemote. nil means unknown.
func remoteFlag(m map[string]any) *bool {
	if sub, ok := m["project"].(map[string]any); ok {
		if v := coerceBool(sub["isRemote"]); v != nil {
			return v
		}
	}
	details, _ := m["details"].(map[string]any)
	if details != nil {
		if v := coerceBool(details["isRemote"]); v != nil {
			return v
		}
	}
	if v := coerceBool(m["isRemote"]); v != nil {
		return v
	}
	if details != nil {
		if nested, ok := details["details"].(map[string]any); ok {
			if v := coerceBool(nested["isRemote"]); v != nil {
				return v
			}
		}
	}
	return nil
}

func coerceBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b := false
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			b = true
		case "false", "0", "no":
		default:
			return nil
		}
		return &b
	case float64:
		b := t != 0
		return &b
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return formatNumber(v)
	}
	return ""
}

func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func topicsField(m map[string]any) []Topic {
	list, ok := m["topics"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	topics := make([]Topic, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := stringField(entry, "id")
		if id == "" {
			continue
		}
		topics = append(topics, Topic{ID: id, Name: stringField(entry, "name")})
	}
	return topics
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TopicIDs returns the project's topic IDs as a set.
func (p Project) TopicIDs() map[string]struct{} {
	if len(p.Topics) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(p.Topics))
	for _, t := range p.Topics {
		ids[t.ID] = struct{}{}
	}
	return ids
}

// SearchText returns the lowercased title+description used by the pattern
// matchers.
func (p Project) SearchText() string {
	return strings.ToLower(p.Title + " " + p.Description)
}
