package backup

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/mwantia/xmeta/data"
)

type Query struct {
	// PathPrefix matches records whose file path starts with this string
	PathPrefix string `json:"path_prefix"`

	// UpdatedAfter keeps records written after this time
	UpdatedAfter *time.Time `json:"updated_after,omitempty"`

	// Max results to return (0 = unlimited)
	Limit int `json:"limit"`

	// Skip this many results during pagination
	Offset int `json:"offset"`

	// ===== Sorting =====
	SortBy    SortField `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
}

type SortField string

const (
	SortByKey        SortField = "key"
	SortByPath       SortField = "path"
	SortByUpdateTime SortField = "update_time"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ApplyFilters keeps the records matching the query filters. Sorting and
// pagination are left to Paginate.
func ApplyFilters(candidates []*data.BackupRecord, query *Query) []*data.BackupRecord {
	if query == nil {
		return candidates
	}

	filtered := make([]*data.BackupRecord, 0, len(candidates))
	for _, record := range candidates {
		if query.PathPrefix != "" && !strings.HasPrefix(record.Identity.Path, query.PathPrefix) {
			continue
		}
		if query.UpdatedAfter != nil && !record.UpdateTime.After(*query.UpdatedAfter) {
			continue
		}

		filtered = append(filtered, record)
	}

	return filtered
}

// Sort orders records in place. The key is the tie breaker so results are
// stable across backends.
func Sort(records []*data.BackupRecord, query *Query) {
	field, order := SortByKey, SortAsc
	if query != nil {
		if query.SortBy != "" {
			field = query.SortBy
		}
		if query.SortOrder != "" {
			order = query.SortOrder
		}
	}

	slices.SortStableFunc(records, func(a, b *data.BackupRecord) int {
		var c int
		switch field {
		case SortByPath:
			c = cmp.Compare(a.Identity.Path, b.Identity.Path)
		case SortByUpdateTime:
			c = a.UpdateTime.Compare(b.UpdateTime)
		}
		if c == 0 {
			c = cmp.Compare(a.Key(), b.Key())
		}
		if order == SortDesc {
			return -c
		}
		return c
	})
}

// Paginate applies offset and limit after sorting.
func Paginate(records []*data.BackupRecord, query *Query) []*data.BackupRecord {
	if query == nil {
		return records
	}
	if query.Offset > 0 {
		if query.Offset >= len(records) {
			return []*data.BackupRecord{}
		}
		records = records[query.Offset:]
	}
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return records
}

// Finish runs filters, sorting and pagination in that order.
func Finish(candidates []*data.BackupRecord, query *Query) []*data.BackupRecord {
	filtered := ApplyFilters(candidates, query)
	Sort(filtered, query)
	return Paginate(filtered, query)
}
