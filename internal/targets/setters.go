package targets

import (
	"fmt"
	"strings"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/markup"
)

// Linkage-backed targets: values land on the record's linkage, not its fields.
const (
	TargetURL  = "url"
	TargetGUID = "guid"
)

// IsLinkageTarget reports whether field is stored on the linkage.
func IsLinkageTarget(field string) bool {
	return field == TargetURL || field == TargetGUID
}

// DefaultSetter writes url and guid onto the linkage and any other field
// directly onto the record, replacing what was there.
func DefaultSetter(record *domain.Record, field string, value any, _ domain.MappingRule) error {
	if !IsLinkageTarget(field) {
		record.SetField(field, value)
		return nil
	}

	if record.Linkage == nil {
		record.Linkage = &domain.Linkage{}
	}
	if field == TargetURL {
		record.Linkage.URL = Scalar(value)
	} else {
		record.Linkage.GUID = Scalar(value)
	}
	return nil
}

// ListSetter appends values to a list field, keeping at most cardinality
// entries; extra values are dropped. Zero cardinality means unlimited.
func ListSetter(cardinality int) SetterFunc {
	return func(record *domain.Record, field string, value any, _ domain.MappingRule) error {
		existing, _ := record.Field(field).([]any)
		for _, v := range Values(value) {
			if cardinality > 0 && len(existing) >= cardinality {
				break
			}
			if isEmpty(v) {
				continue
			}
			existing = append(existing, v)
		}
		record.SetField(field, existing)
		return nil
	}
}

// TextSetter stores the first value as a string. A rule config "trim" of "false" keeps whitespace.
func TextSetter(record *domain.Record, field string, value any, rule domain.MappingRule) error {
	text := Scalar(value)
	if rule.Config["trim"] != "false" {
		text = strings.TrimSpace(text)
	}
	record.SetField(field, text)
	return nil
}

// HTMLTextSetter stores the first value with markup stripped.
func HTMLTextSetter(record *domain.Record, field string, value any, _ domain.MappingRule) error {
	record.SetField(field, markup.PlainText(Scalar(value)))
	return nil
}

// Values flattens a raw source value into a list.
func Values(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return []any{v}
	}
}

// Scalar returns the first non-empty value rendered as a string, "" if none.
func Scalar(value any) string {
	for _, v := range Values(value) {
		if isEmpty(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// NewField builds a descriptor for a plain record field. Format selects the
// setter: "" (default, raw value), "text", "html" or "list".
func NewField(id, name, format string, cardinality int) (Descriptor, error) {
	desc := Descriptor{ID: id, Name: name}
	switch format {
	case "":
	case "text":
		desc.Setter = TextSetter
	case "html":
		desc.Setter = HTMLTextSetter
	case "list":
		desc.Setter = ListSetter(cardinality)
	default:
		return Descriptor{}, domain.Configurationf("target %q: unknown format %q", id, format)
	}
	return desc, nil
}
