package vectorindex

import (
	"fmt"
	"strings"

	"github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// DatasetText is the text embedded for a dataset: its name, description and
// one "name (description)" line per schema field.
func DatasetText(d dataset.Dataset) string {
	return datasetText(d.Name(), d.Description(), d.Schema())
}

// DatasetShapeText renders an unsaved dataset shape the same way DatasetText does,
// so similarity searches land in the same embedding space.
func DatasetShapeText(name, description string, s schema.Schema) string {
	return datasetText(name, description, s)
}

func datasetText(name, description string, s schema.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nDescription: %s\nSchema Fields:", name, description)
	for _, f := range s.Fields() {
		b.WriteString("\n- ")
		b.WriteString(labelOf(f))
	}
	return b.String()
}

// RecordText is the text embedded for a record: one "name (description): value" line
// per field present in data, in schema order, using the current schema descriptions.
func RecordText(data map[string]any, s schema.Schema) string {
	lines := make([]string, 0, len(data))
	for _, f := range s.Fields() {
		v, ok := data[f.Name()]
		if !ok {
			continue
		}
		lines = append(lines, labelOf(f)+": "+fieldtype.Format(v))
	}
	return strings.Join(lines, "\n")
}

func labelOf(f schema.Field) string {
	if f.Description() == "" {
		return f.Name()
	}
	return f.Name() + " (" + f.Description() + ")"
}
