package apiclient

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/vulnwatch/vulnwatch-client/internal/utils"
)

// Reserved query keys of the backend list endpoints.
const (
	searchQueryKey   = "search"
	pageQueryKey     = "page"
	pageSizeQueryKey = "page_size"
	orderingQueryKey = "ordering"

	// freeTextFilterKey is the conventional free-text key used by callers;
	// it is renamed to the backend's reserved "search" key on the wire.
	freeTextFilterKey = "q"
)

// Sort orders list results by a single field.
type Sort struct {
	Field string
	Order string // "ASC" or "DESC", case-insensitive
}

// Descending reports whether the sort direction is descending.
func (s Sort) Descending() bool {
	return strings.EqualFold(s.Order, "DESC")
}

// Pagination selects a 1-based page of PerPage records.
type Pagination struct {
	Page    int
	PerPage int
}

// ListParams carries the filter/sort/pagination triple of a list intent.
// Filter values may be scalars or slices; slices are encoded comma-joined.
type ListParams struct {
	Filter     map[string]any
	Sort       Sort
	Pagination Pagination
}

// GetManyReferenceParams scopes a list to records referencing ID through the
// Target field.
type GetManyReferenceParams struct {
	Target     string
	ID         any
	Filter     map[string]any
	Sort       Sort
	Pagination Pagination
}

// encodeQuery builds the backend query string: every filter key verbatim
// (with "q" renamed to "search"), then page, page_size and ordering. A
// leading "-" marks descending order.
func encodeQuery(p ListParams) string {
	query := url.Values{}

	for _, key := range sortedFilterKeys(p.Filter) {
		name := key
		if name == freeTextFilterKey {
			name = searchQueryKey
		}
		query.Set(name, filterValue(p.Filter[key]))
	}

	if p.Pagination.Page > 0 {
		query.Set(pageQueryKey, strconv.Itoa(p.Pagination.Page))
	}
	if p.Pagination.PerPage > 0 {
		query.Set(pageSizeQueryKey, strconv.Itoa(p.Pagination.PerPage))
	}

	if p.Sort.Field != "" {
		ordering := p.Sort.Field
		if p.Sort.Descending() {
			ordering = "-" + ordering
		}
		query.Set(orderingQueryKey, ordering)
	}

	return query.Encode()
}

func sortedFilterKeys(filter map[string]any) []string {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func filterValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []any:
		return strings.Join(utils.ToStringSlice(v), ",")
	default:
		return fmt.Sprint(v)
	}
}
