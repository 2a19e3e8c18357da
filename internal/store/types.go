// Package store defines the vector-store contract the indexing and search
// pipelines depend on (spec §4.7): ANN vector search, bool/terms/range/
// nested/geo-distance filtering, ids lookup, collapse, and bucket
// aggregations, plus delete_by_query + refresh. The concrete
// implementation lives in internal/store/esstore; internal/store/storetest
// provides an in-memory fake for pipeline unit tests.
package store

import "context"

// Index names the three shared indices (spec §4.7).
type Index string

const (
	IndexRooms         Index = "rooms"
	IndexApartments    Index = "apartments"
	IndexNeighborhoods Index = "neighborhoods"
)

// Doc is a persisted document, keyed by field name. Callers marshal their
// domain structs into this shape (or back out of it) at the store
// boundary, keeping domain types free of storage tags.
type Doc = map[string]interface{}

// TermFilter matches documents where field equals one of values.
type TermFilter struct {
	Field  string
	Values []string
}

// RangeFilter bounds a numeric or date field. Either bound may be nil.
type RangeFilter struct {
	Field string
	GTE   interface{}
	LTE   interface{}
}

// NestedFilter applies Inner filters within a nested field's objects (used
// for availability_dates and quantifiers).
type NestedFilter struct {
	Path  string
	Terms []TermFilter
	Range []RangeFilter
}

// ExistsFilter requires (or, with Negate, excludes) documents where Field
// has at least one non-null value — used for presence checks like
// has_images (spec §6).
type ExistsFilter struct {
	Field  string
	Negate bool
}

// GeoDistanceFilter keeps documents within Radius meters of Center.
type GeoDistanceFilter struct {
	Field        string
	CenterLat    float64
	CenterLon    float64
	RadiusMeters float64
}

// BoolFilter composes the filter sub-clauses of a query (spec §4.7's
// bool/must/should/minimum_should_match shape).
type BoolFilter struct {
	Must               []TermFilter
	MustNotNegation    *bool
	Range              []RangeFilter
	Nested             []NestedFilter
	Exists             []ExistsFilter
	GeoDistance        *GeoDistanceFilter
	MinimumShouldMatch int
}

// VectorQuery is an ANN search against a dense_vector field.
type VectorQuery struct {
	Field         string
	Vector        []float32
	K             int
	NumCandidates int
	Filter        *BoolFilter
}

// Aggregation requests a terms bucket (optionally with nested top_hits and
// a value_count), per spec §4.7.
type Aggregation struct {
	Name      string
	Field     string
	Size      int
	TopHits   int
	ValueCount string
}

// SearchHit is one matched document plus its ANN score.
type SearchHit struct {
	ID     string
	Score  float64
	Source Doc
}

// AggregationBucket is one terms-aggregation bucket result.
type AggregationBucket struct {
	Key      string
	Count    int
	TopHits  []SearchHit
}

// SearchRequest is either a kNN vector query or a structured bool query
// (or both — the adapter runs the vector query with the bool filter as its
// pre-filter subclause, per spec §4.7).
type SearchRequest struct {
	Vector       *VectorQuery
	Filter       *BoolFilter
	Collapse     string
	Aggregations []Aggregation
	Size         int
	From         int
}

// SearchResponse is the adapter's normalized result.
type SearchResponse struct {
	Hits         []SearchHit
	Aggregations map[string][]AggregationBucket
	Total        int
}

// Store is the vector-store contract. Every method is suspendable I/O;
// callers pass a context carrying their deadline (spec §5).
type Store interface {
	// Index upserts one document.
	Index(ctx context.Context, index Index, id string, doc Doc) error

	// BulkIndex upserts many documents in one round trip.
	BulkIndex(ctx context.Context, index Index, docs map[string]Doc) error

	// Get fetches one document by id. found is false, err is nil on miss.
	Get(ctx context.Context, index Index, id string) (doc Doc, found bool, err error)

	// MGet fetches many documents by id in one round trip (spec §4.7's
	// "terms query for batch id lookup").
	MGet(ctx context.Context, index Index, ids []string) ([]SearchHit, error)

	// Search runs a structured and/or ANN query.
	Search(ctx context.Context, index Index, req SearchRequest) (SearchResponse, error)

	// DeleteByQuery deletes every document matching filter and returns the
	// count removed.
	DeleteByQuery(ctx context.Context, index Index, filter BoolFilter) (int, error)

	// Refresh makes recent writes visible to subsequent searches.
	Refresh(ctx context.Context, indices ...Index) error

	// EnsureIndices creates the three indices with their mappings if they
	// do not already exist (the /setup operation, spec §6).
	EnsureIndices(ctx context.Context) error
}
