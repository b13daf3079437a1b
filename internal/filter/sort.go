package filter

import (
	"cmp"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/worktrack/worktrack/pkg/model"
)

// Sorter orders items by one or more columns. Text is compared with a
// case-insensitive collator for the configured language.
type Sorter[T any] struct {
	Field FieldAccessor[T]
	Lang  language.Tag
}

// ApplySort sorts items with the root collation.
func ApplySort[T any](items []T, specs []model.SortSpec, field FieldAccessor[T]) []T {
	s := Sorter[T]{Field: field, Lang: language.Und}
	return s.Sort(items, specs)
}

// Sort returns a stably sorted copy of items. Null and undefined values go
// last whatever the direction. With no specs items is returned as is.
func (s Sorter[T]) Sort(items []T, specs []model.SortSpec) []T {
	if len(specs) == 0 || len(items) < 2 || s.Field == nil {
		return items
	}

	// collate.Collator keeps internal buffers, so one per call.
	col := collate.New(s.Lang, collate.IgnoreCase)

	keys := make([][]model.Value, len(items))
	for i, item := range items {
		row := make([]model.Value, len(specs))
		for k, spec := range specs {
			row[k] = s.Field(item, spec.Column)
		}
		keys[i] = row
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for k, spec := range specs {
			va, vb := ka[k], kb[k]
			na, nb := va.IsNullish(), vb.IsNullish()
			switch {
			case na && nb:
				continue
			case na:
				return false
			case nb:
				return true
			}
			c := compareValues(col, va, vb)
			if c == 0 {
				continue
			}
			if spec.Direction == model.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	out := make([]T, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// kindRank orders values of different kinds.
func kindRank(k model.ValueKind) int {
	switch k {
	case model.KindBool:
		return 0
	case model.KindNumber:
		return 1
	case model.KindDate:
		return 2
	case model.KindString:
		return 3
	}
	return 4
}

func compareValues(col *collate.Collator, a, b model.Value) int {
	if a.Kind() != b.Kind() {
		return cmp.Compare(kindRank(a.Kind()), kindRank(b.Kind()))
	}
	switch a.Kind() {
	case model.KindNumber:
		x, _ := a.Num()
		y, _ := b.Num()
		return cmp.Compare(x, y)
	case model.KindDate:
		x, _ := a.Time()
		y, _ := b.Time()
		return x.Compare(y)
	case model.KindBool:
		x, _ := a.BoolVal()
		y, _ := b.BoolVal()
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case model.KindString:
		x, _ := a.Str()
		y, _ := b.Str()
		return col.CompareString(x, y)
	}
	return 0
}
