package generate

import (
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// ColumnKind says where a column's values come from.
type ColumnKind int

const (
	// Simple columns have a local deterministic generator.
	Simple ColumnKind = iota
	// Complex columns are filled by the text-generation backend.
	Complex
)

func (k ColumnKind) String() string {
	if k == Simple {
		return "simple"
	}
	return "complex"
}

// ColumnSpec is a classified column. The generator is resolved once here.
type ColumnSpec struct {
	Name string
	Kind ColumnKind
	gen  generator
}

type generator int

const (
	genNone generator = iota
	genName
	genAge
	genCity
	genEmail
	genPhone
)

// registry maps lowercase column names to their deterministic generator.
// Add a generator constant, a case in value, and an entry here to extend it.
var registry = map[string]generator{
	"name":  genName,
	"age":   genAge,
	"city":  genCity,
	"email": genEmail,
	"phone": genPhone,
}

func (g generator) value(f *gofakeit.Faker) string {
	switch g {
	case genName:
		return f.Name()
	case genAge:
		return randomAge(f)
	case genCity:
		return f.City()
	case genEmail:
		return f.Email()
	case genPhone:
		return f.Phone()
	default:
		return ""
	}
}

func randomAge(f *gofakeit.Faker) string {
	return strconv.Itoa(f.Number(18, 90))
}

// Classify splits columns into Simple and Complex, keeping their order.
// Matching is case-insensitive on the whole name.
func Classify(columns []string) []ColumnSpec {
	specs := make([]ColumnSpec, len(columns))
	for i, name := range columns {
		g, ok := registry[strings.ToLower(name)]
		if !ok {
			specs[i] = ColumnSpec{Name: name, Kind: Complex}
			continue
		}
		specs[i] = ColumnSpec{Name: name, Kind: Simple, gen: g}
	}
	return specs
}

func complexColumns(specs []ColumnSpec) []string {
	var out []string
	for _, s := range specs {
		if s.Kind == Complex {
			out = append(out, s.Name)
		}
	}
	return out
}
