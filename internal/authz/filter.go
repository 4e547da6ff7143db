package authz

// FilterKind names the visibility constraint compiled for a collection read.
type FilterKind string

// Collection filters. FilterPublishedOrOwned is the compiled form of the
// conditional read predicate: evaluating the predicate per row after fetch
// would leak the existence of non-visible drafts through pagination counts,
// so the constraint must reach the query itself.
const (
	FilterNone             FilterKind = "none"
	FilterPublishedOnly    FilterKind = "published_only"
	FilterOwned            FilterKind = "owned"
	FilterPublishedOrOwned FilterKind = "published_or_owned"
)

// QueryFilter narrows a collection read before rows are fetched. OwnerID is
// set for owner-scoped filters and names the acting identity.
type QueryFilter struct {
	Kind    FilterKind
	OwnerID int64
}

// Restricts reports whether the filter constrains the result set at all.
func (f QueryFilter) Restricts() bool {
	return f.Kind != "" && f.Kind != FilterNone
}
