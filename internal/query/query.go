// Package query filters and orders in-memory record sets for the project and task list views.
//
// Apply is pure: it never mutates its input, never suspends, and returns the same order for
// the same input. Filters are a conjunction of exact matches; sorting is stable and the
// descending order is exactly the reverse of the ascending one.
package query

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Spec is a filter and sort request.
type Spec struct {
	// Filters maps field name to expected value. models.FilterAll disables a filter and
	// unknown field names are ignored.
	Filters map[string]string
	// SortKey selects the comparator; empty keeps the input order.
	SortKey   string
	Direction Direction
}

// UnknownSortKeyError is returned when a Spec names a sort key the schema does not define.
type UnknownSortKeyError struct {
	Key   string
	Known []string
}

func (e *UnknownSortKeyError) Error() string {
	return fmt.Sprintf("unknown sort key %q (known: %s)", e.Key, strings.Join(e.Known, ", "))
}

type sortKind int

const (
	kindText sortKind = iota
	kindRank
	kindNumber
	kindTime
)

// Accessor reads one field of a record; ok is false when the record has no value.
type Accessor[R any] func(R) (string, bool)

type sortKey[R any] struct {
	kind  sortKind
	text  func(R) (string, bool)
	scale models.Scale
	num   func(R) (float64, bool)
	time  func(R) (time.Time, bool)
}

// Schema declares the filterable fields and sort keys of one record type.
type Schema[R any] struct {
	fields map[string]Accessor[R]
	sorts  map[string]sortKey[R]
}

// NewSchema returns an empty schema; use the Field and Sort* methods to populate it.
func NewSchema[R any]() *Schema[R] {
	return &Schema[R]{fields: map[string]Accessor[R]{}, sorts: map[string]sortKey[R]{}}
}

// Field registers a filterable field.
func (s *Schema[R]) Field(name string, get Accessor[R]) *Schema[R] {
	s.fields[name] = get
	return s
}

// SortText registers a key compared with locale-aware collation.
func (s *Schema[R]) SortText(name string, get func(R) (string, bool)) *Schema[R] {
	s.sorts[name] = sortKey[R]{kind: kindText, text: get}
	return s
}

// SortRank registers a key compared by position in scale rather than alphabetically.
func (s *Schema[R]) SortRank(name string, scale models.Scale, get func(R) (string, bool)) *Schema[R] {
	s.sorts[name] = sortKey[R]{kind: kindRank, text: get, scale: scale}
	return s
}

// SortNumber registers a numerically compared key.
func (s *Schema[R]) SortNumber(name string, get func(R) (float64, bool)) *Schema[R] {
	s.sorts[name] = sortKey[R]{kind: kindNumber, num: get}
	return s
}

// SortTime registers a chronologically compared key.
func (s *Schema[R]) SortTime(name string, get func(R) (time.Time, bool)) *Schema[R] {
	s.sorts[name] = sortKey[R]{kind: kindTime, time: get}
	return s
}

// SortKeys returns the registered sort key names, sorted.
func (s *Schema[R]) SortKeys() []string {
	keys := make([]string, 0, len(s.sorts))
	for k := range s.sorts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Validate reports an UnknownSortKeyError or a bad direction without touching any records.
func (s *Schema[R]) Validate(spec Spec) error {
	if spec.Direction != "" && spec.Direction != Asc && spec.Direction != Desc {
		return fmt.Errorf("invalid sort direction %q (want asc or desc)", spec.Direction)
	}
	if spec.SortKey == "" {
		return nil
	}
	if _, ok := s.sorts[spec.SortKey]; !ok {
		return &UnknownSortKeyError{Key: spec.SortKey, Known: s.SortKeys()}
	}
	return nil
}

// Matches reports whether r satisfies every active filter in filters.
func (s *Schema[R]) Matches(r R, filters map[string]string) bool {
	for field, want := range filters {
		if want == models.FilterAll {
			continue
		}
		get, ok := s.fields[field]
		if !ok {
			continue
		}
		got, ok := get(r)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Apply returns the records matching spec.Filters, ordered by spec.SortKey.
func (s *Schema[R]) Apply(records []R, spec Spec) ([]R, error) {
	if err := s.Validate(spec); err != nil {
		return nil, err
	}
	out := make([]R, 0, len(records))
	for _, r := range records {
		if s.Matches(r, spec.Filters) {
			out = append(out, r)
		}
	}
	if spec.SortKey == "" {
		return out, nil
	}
	slices.SortStableFunc(out, s.comparator(s.sorts[spec.SortKey]))
	if spec.Direction == Desc {
		slices.Reverse(out)
	}
	return out, nil
}

// comparator orders records ascending; records without a value sort after all others.
func (s *Schema[R]) comparator(k sortKey[R]) func(a, b R) int {
	switch k.kind {
	case kindText:
		// Collators keep scratch buffers, so each Apply call gets its own.
		col := collate.New(language.English, collate.Loose)
		return func(a, b R) int {
			av, aok := k.text(a)
			bv, bok := k.text(b)
			if c, done := missingLast(aok, bok); done {
				return c
			}
			return col.CompareString(av, bv)
		}
	case kindRank:
		return func(a, b R) int {
			ar, br := -1, -1
			if v, ok := k.text(a); ok {
				ar = k.scale.Rank(v)
			}
			if v, ok := k.text(b); ok {
				br = k.scale.Rank(v)
			}
			if c, done := missingLast(ar >= 0, br >= 0); done {
				return c
			}
			return cmp.Compare(ar, br)
		}
	case kindNumber:
		return func(a, b R) int {
			av, aok := k.num(a)
			bv, bok := k.num(b)
			if c, done := missingLast(aok, bok); done {
				return c
			}
			return cmp.Compare(av, bv)
		}
	default:
		return func(a, b R) int {
			av, aok := k.time(a)
			bv, bok := k.time(b)
			if c, done := missingLast(aok, bok); done {
				return c
			}
			return av.Compare(bv)
		}
	}
}

func missingLast(aok, bok bool) (int, bool) {
	switch {
	case aok && bok:
		return 0, false
	case aok:
		return -1, true
	case bok:
		return 1, true
	default:
		return 0, true
	}
}

// Reserved query parameters that are never treated as filters.
var reservedParams = map[string]bool{"sort": true, "dir": true, "api_key": true, "limit": true}

// ParseSpec builds a Spec from URL query parameters: sort, dir, and one filter per other key.
// Empty values are dropped so that an unset form control does not filter.
func ParseSpec(q url.Values) Spec {
	spec := Spec{
		Filters:   map[string]string{},
		SortKey:   q.Get("sort"),
		Direction: Direction(strings.ToLower(q.Get("dir"))),
	}
	for key, vals := range q {
		if reservedParams[key] || len(vals) == 0 || vals[0] == "" {
			continue
		}
		spec.Filters[key] = vals[0]
	}
	return spec
}
