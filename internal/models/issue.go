package models

import "encoding/json"

const (
	UnknownName    = "Unknown"
	UnassignedName = "Unassigned"
)

type JiraIssue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields mirrors the subset of issue fields the dashboard requests. Every
// nested object is optional upstream, so callers go through the accessors
// below instead of dereferencing directly.
type IssueFields struct {
	Summary     string       `json:"summary"`
	Status      *NamedField  `json:"status"`
	Priority    *NamedField  `json:"priority"`
	Assignee    *User        `json:"assignee"`
	Created     string       `json:"created"`
	Updated     string       `json:"updated"`
	Versions    []NamedField `json:"versions"`
	FixVersions []NamedField `json:"fixVersions"`
	Labels      []string     `json:"labels"`
}

type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON leaves f empty when the value is not an object, so the
// accessor falls back to its default instead of failing the whole response.
func (f *NamedField) UnmarshalJSON(data []byte) error {
	*f = NamedField{}
	obj, ok := decodeObject(data)
	if !ok {
		return nil
	}
	f.ID = stringMember(obj, "id")
	f.Name = stringMember(obj, "name")
	return nil
}

type User struct {
	DisplayName string `json:"displayName"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	*u = User{}
	obj, ok := decodeObject(data)
	if !ok {
		return nil
	}
	u.DisplayName = stringMember(obj, "displayName")
	return nil
}

func (f IssueFields) StatusName() string {
	return nameOr(f.Status, UnknownName)
}

func (f IssueFields) PriorityName() string {
	return nameOr(f.Priority, UnknownName)
}

func (f IssueFields) AssigneeName() string {
	if f.Assignee == nil || f.Assignee.DisplayName == "" {
		return UnassignedName
	}
	return f.Assignee.DisplayName
}

// CreatedDate returns the date part (YYYY-MM-DD) of the created timestamp.
func (f IssueFields) CreatedDate() string {
	return datePart(f.Created)
}

func (f IssueFields) UpdatedDate() string {
	return datePart(f.Updated)
}

// AffectedVersion returns the first affected version name, or "" when none.
func (f IssueFields) AffectedVersion() string {
	for _, v := range f.Versions {
		if v.Name != "" {
			return v.Name
		}
	}
	return ""
}

func nameOr(field *NamedField, fallback string) string {
	if field == nil || field.Name == "" {
		return fallback
	}
	return field.Name
}

func datePart(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

func decodeObject(data []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// stringMember returns obj[key] when it holds a JSON string, otherwise "".
func stringMember(obj map[string]json.RawMessage, key string) string {
	var s string
	if err := json.Unmarshal(obj[key], &s); err != nil {
		return ""
	}
	return s
}
