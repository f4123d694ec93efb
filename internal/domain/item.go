package domain

import "time"

// Item is one raw entry pulled from a source stream, keyed by source field id.
type Item map[string]any

// UpdateMode controls what happens to records that already exist for an item.
type UpdateMode string

const (
	UpdateSkip     UpdateMode = "skip"
	UpdateExisting UpdateMode = "update"
	// UpdateReplace rebuilds the record from scratch while keeping its id.
	UpdateReplace UpdateMode = "replace"
)

// Valid reports whether the mode is one the processor understands.
func (m UpdateMode) Valid() bool {
	switch m {
	case UpdateSkip, UpdateExisting, UpdateReplace:
		return true
	default:
		return false
	}
}

// MappingRule projects one source field onto one target field.
type MappingRule struct {
	Source string            `json:"source" yaml:"source"`
	Target string            `json:"target" yaml:"target"`
	Unique bool              `json:"unique,omitempty" yaml:"unique"`
	Config map[string]string `json:"config,omitempty" yaml:"config"`
}

// Scope identifies the linkage rows owned by one processor for one origin.
type Scope struct {
	ProcessorID string
	OriginID    string
	EntityType  string
}

// Linkage ties a persisted record back to the processor and origin that produced it.
type Linkage struct {
	ID          int64
	EntityType  string
	EntityID    int64
	ProcessorID string
	OriginID    string
	Fingerprint string
	ImportedAt  time.Time
	URL         string
	GUID        string
}

// Record is the target entity being created or updated by an import.
type Record struct {
	ID         int64
	EntityType string
	Bundle     string
	Fields     map[string]any
	Linkage    *Linkage
}

// IsNew reports whether the record has never been saved.
func (r *Record) IsNew() bool {
	return r.ID == 0
}

// Field returns the stored value of a field, nil when unset.
func (r *Record) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// SetField writes a field value, allocating the map if necessary.
func (r *Record) SetField(name string, value any) {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	r.Fields[name] = value
}
