package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TagField is one checkbox of the tag selection form
type TagField struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// BuildTagFields lists catalog in order, checking the names in active
func BuildTagFields(catalog []string, active CapabilitySet) []TagField {
	fields := make([]TagField, 0, len(catalog))
	for _, name := range catalog {
		fields = append(fields, TagField{
			Name:    name,
			Checked: active.Has(name),
		})
	}
	return fields
}

// CheckedTags returns the names of the checked fields, the desired set
// for SyncCapabilities
func CheckedTags(fields []TagField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Checked {
			out = append(out, f.Name)
		}
	}
	return out
}

// LoadTagFields builds the form for memberID from the current catalog.
// A nil memberID yields an unchecked form.
func LoadTagFields(ctx context.Context, tags Tags, reader CapabilityReader, memberID uuid.UUID, at time.Time) ([]TagField, error) {
	catalog, err := tags.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.Name)
	}

	active := CapabilitySet{}
	if memberID != uuid.Nil {
		active, err = reader.ActiveCapabilities(ctx, memberID, at)
		if err != nil {
			return nil, err
		}
	}

	return BuildTagFields(names, active), nil
}
