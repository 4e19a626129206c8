package tuning

import "time"

// Source indicates where the current effective value comes from.
type Source int

const (
	SourceDefault Source = iota
	SourceRuntimeSet
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceRuntimeSet:
		return "runtime-set"
	default:
		return "unknown"
	}
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Type indicates a tuning variable type.
type Type string

const (
	TypeInt64    Type = "int64"
	TypeDuration Type = "duration"
	TypeEnum     Type = "enum"
)

// Constraints summarizes the validation attached to a variable.
type Constraints struct {
	Min         string   `json:"min,omitempty"`
	Max         string   `json:"max,omitempty"`
	EnumAllowed []string `json:"enumAllowed,omitempty"`
}

// Item is a point-in-time view of a single variable. Values are rendered as strings in
// the variable's own syntax.
type Item struct {
	Key           string      `json:"key"`
	Type          Type        `json:"type"`
	Value         string      `json:"value"`
	DefaultValue  string      `json:"defaultValue"`
	Source        Source      `json:"source"`
	LastUpdatedAt time.Time   `json:"lastUpdatedAt"`
	Constraints   Constraints `json:"constraints"`
}

// Snapshot is a view of all registered variables, sorted by key.
type Snapshot struct {
	Items []Item `json:"items"`
}

// Get returns the item for key.
func (s Snapshot) Get(key string) (Item, bool) {
	for _, it := range s.Items {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}
