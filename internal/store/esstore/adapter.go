package esstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/resilience"
	"github.com/frenta/claimsearch/internal/store"
)

// Adapter implements store.Store against an Elasticsearch cluster.
type Adapter struct {
	client   *elasticsearch.Client
	breakers *resilience.Manager
	logger   observability.Logger
	indexNames map[store.Index]string
}

// Config names the three concrete ES indices backing the logical rooms /
// apartments / neighborhoods domains.
type Config struct {
	URL                string
	RoomsIndex         string
	ApartmentsIndex    string
	NeighborhoodsIndex string
}

// New constructs an Adapter connected to cfg.URL.
func New(cfg Config, breakers *resilience.Manager, logger observability.Logger) (*Adapter, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.URL}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	names := map[store.Index]string{
		store.IndexRooms:         orDefault(cfg.RoomsIndex, "rooms"),
		store.IndexApartments:    orDefault(cfg.ApartmentsIndex, "apartments"),
		store.IndexNeighborhoods: orDefault(cfg.NeighborhoodsIndex, "neighborhoods"),
	}
	return &Adapter{client: client, breakers: breakers, logger: logger, indexNames: names}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (a *Adapter) name(idx store.Index) string { return a.indexNames[idx] }

func (a *Adapter) do(ctx context.Context, req esapi.Request) (*esapi.Response, error) {
	v, err := a.breakers.Execute(ctx, resilience.BreakerStore, resilience.CircuitBreakerConfig{}, func() (interface{}, error) {
		return req.Do(ctx, a.client)
	})
	if err != nil {
		return nil, apperrors.Transient(err, "elasticsearch request failed")
	}
	res := v.(*esapi.Response)
	if res.IsError() {
		defer func() { _ = res.Body.Close() }()
		return nil, apperrors.Transient(fmt.Errorf("status %s", res.Status()), "elasticsearch returned an error")
	}
	return res, nil
}

func (a *Adapter) Index(ctx context.Context, index store.Index, id string, doc store.Doc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Fatal(err, "marshal document")
	}
	req := esapi.IndexRequest{
		Index:      a.name(index),
		DocumentID: id,
		Body:       bytes.NewReader(raw),
		Refresh:    "false",
	}
	res, err := a.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

func (a *Adapter) BulkIndex(ctx context.Context, index store.Index, docs map[string]store.Doc) error {
	var buf bytes.Buffer
	for id, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": a.name(index), "_id": id},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return apperrors.Fatal(err, "marshal bulk meta")
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return apperrors.Fatal(err, "marshal bulk document")
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}
	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
	res, err := a.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

func (a *Adapter) Get(ctx context.Context, index store.Index, id string) (store.Doc, bool, error) {
	req := esapi.GetRequest{Index: a.name(index), DocumentID: id}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return nil, false, apperrors.Transient(err, "get document")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode == 404 {
		return nil, false, nil
	}
	if res.IsError() {
		return nil, false, apperrors.Transient(fmt.Errorf("status %s", res.Status()), "get document")
	}
	var envelope struct {
		Source store.Doc `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, false, apperrors.Transient(err, "decode get response")
	}
	return envelope.Source, true, nil
}

func (a *Adapter) MGet(ctx context.Context, index store.Index, ids []string) ([]store.SearchHit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, apperrors.Fatal(err, "marshal mget body")
	}
	req := esapi.MgetRequest{Index: a.name(index), Body: bytes.NewReader(body)}
	res, err := a.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var envelope struct {
		Docs []struct {
			ID     string  `json:"_id"`
			Found  bool    `json:"found"`
			Source store.Doc `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, apperrors.Transient(err, "decode mget response")
	}
	hits := make([]store.SearchHit, 0, len(envelope.Docs))
	for _, d := range envelope.Docs {
		if !d.Found {
			continue
		}
		hits = append(hits, store.SearchHit{ID: d.ID, Source: d.Source})
	}
	return hits, nil
}

func (a *Adapter) Search(ctx context.Context, index store.Index, req store.SearchRequest) (store.SearchResponse, error) {
	body := buildSearchBody(req)
	raw, err := json.Marshal(body)
	if err != nil {
		return store.SearchResponse{}, apperrors.Fatal(err, "marshal search body")
	}

	esReq := esapi.SearchRequest{Index: []string{a.name(index)}, Body: bytes.NewReader(raw)}
	res, err := a.do(ctx, esReq)
	if err != nil {
		return store.SearchResponse{}, err
	}
	defer func() { _ = res.Body.Close() }()

	return parseSearchResponse(res.Body)
}

func (a *Adapter) DeleteByQuery(ctx context.Context, index store.Index, filter store.BoolFilter) (int, error) {
	clauses := buildFilterClauses(&filter)
	body := map[string]interface{}{"query": map[string]interface{}{"bool": map[string]interface{}{"filter": clauses}}}
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, apperrors.Fatal(err, "marshal delete_by_query body")
	}
	req := esapi.DeleteByQueryRequest{Index: []string{a.name(index)}, Body: bytes.NewReader(raw)}
	res, err := a.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Body.Close() }()

	var envelope struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return 0, apperrors.Transient(err, "decode delete_by_query response")
	}
	return envelope.Deleted, nil
}

func (a *Adapter) Refresh(ctx context.Context, indices ...store.Index) error {
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = a.name(idx)
	}
	req := esapi.IndicesRefreshRequest{Index: names}
	res, err := a.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

func (a *Adapter) EnsureIndices(ctx context.Context) error {
	for idx, mapping := range indexMappings() {
		name := a.name(idx)
		existsReq := esapi.IndicesExistsRequest{Index: []string{name}}
		existsRes, err := existsReq.Do(ctx, a.client)
		if err != nil {
			return apperrors.Transient(err, "check index exists: %s", name)
		}
		_ = existsRes.Body.Close()
		if existsRes.StatusCode == 200 {
			continue
		}
		raw, err := json.Marshal(mapping)
		if err != nil {
			return apperrors.Fatal(err, "marshal index mapping")
		}
		createReq := esapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(raw)}
		createRes, err := a.do(ctx, createReq)
		if err != nil {
			return err
		}
		_ = createRes.Body.Close()
	}
	return nil
}

// sharedClaimFields is the set of field mappings every one of the three
// indices carries (spec §4.7).
func sharedClaimFields(dims int) map[string]interface{} {
	return map[string]interface{}{
		"claim":        map[string]interface{}{"type": "text"},
		"claim_type":   map[string]interface{}{"type": "keyword"},
		"kind":         map[string]interface{}{"type": "keyword"},
		"from_claim":   map[string]interface{}{"type": "keyword"},
		"negation":     map[string]interface{}{"type": "boolean"},
		"claim_vector": map[string]interface{}{
			"type":       "dense_vector",
			"dims":       dims,
			"similarity": "cosine",
			"index_options": map[string]interface{}{
				"type":           "hnsw",
				"m":              16,
				"ef_construction": 200,
			},
		},
		"quantifiers": map[string]interface{}{"type": "nested"},
		"source":      map[string]interface{}{"type": "nested"},
	}
}

func indexMappings() map[store.Index]map[string]interface{} {
	dims := 3072
	shared := sharedClaimFields(dims)

	rooms := clone(shared)
	rooms["room_id"] = map[string]interface{}{"type": "keyword"}
	rooms["apartment_id"] = map[string]interface{}{"type": "keyword"}
	rooms["room_type"] = map[string]interface{}{"type": "keyword"}

	apartments := clone(shared)
	apartments["apartment_id"] = map[string]interface{}{"type": "keyword"}
	apartments["title"] = map[string]interface{}{"type": "text"}
	apartments["neighborhood_id"] = map[string]interface{}{"type": "keyword"}
	apartments["address"] = map[string]interface{}{"type": "text"}
	apartments["apartment_location"] = map[string]interface{}{"type": "geo_point"}
	apartments["image_urls"] = map[string]interface{}{"type": "keyword"}
	apartments["image_metadata"] = map[string]interface{}{"type": "nested"}
	apartments["rent_price"] = map[string]interface{}{"type": "float"}
	apartments["availability_dates"] = map[string]interface{}{
		"type": "nested",
		"properties": map[string]interface{}{
			"start": map[string]interface{}{"type": "date"},
			"end":   map[string]interface{}{"type": "date"},
		},
	}
	apartments["property_summary"] = map[string]interface{}{"type": "text"}
	apartments["location_summary"] = map[string]interface{}{"type": "text"}
	apartments["grounding_metadata"] = map[string]interface{}{"type": "object"}

	neighborhoods := clone(shared)
	neighborhoods["neighborhood_id"] = map[string]interface{}{"type": "keyword"}
	neighborhoods["neighborhood_name"] = map[string]interface{}{"type": "text"}
	neighborhoods["center_point"] = map[string]interface{}{"type": "geo_point"}
	neighborhoods["neighborhood_boundary"] = map[string]interface{}{"type": "geo_shape"}

	return map[store.Index]map[string]interface{}{
		store.IndexRooms:         {"mappings": map[string]interface{}{"properties": rooms}},
		store.IndexApartments:    {"mappings": map[string]interface{}{"properties": apartments}},
		store.IndexNeighborhoods: {"mappings": map[string]interface{}{"properties": neighborhoods}},
	}
}

func clone(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func parseSearchResponse(body io.Reader) (store.SearchResponse, error) {
	var envelope struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string    `json:"_id"`
				Score  float64   `json:"_score"`
				Source store.Doc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]json.RawMessage `json:"aggregations"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return store.SearchResponse{}, apperrors.Transient(err, "decode search response")
	}

	resp := store.SearchResponse{Total: envelope.Hits.Total.Value}
	for _, h := range envelope.Hits.Hits {
		resp.Hits = append(resp.Hits, store.SearchHit{ID: h.ID, Score: h.Score, Source: h.Source})
	}

	if len(envelope.Aggregations) > 0 {
		resp.Aggregations = make(map[string][]store.AggregationBucket, len(envelope.Aggregations))
		for name, raw := range envelope.Aggregations {
			var agg struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
					TopHitsAgg struct {
						Hits struct {
							Hits []struct {
								ID     string    `json:"_id"`
								Score  float64   `json:"_score"`
								Source store.Doc `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"top_hits_agg"`
				} `json:"buckets"`
			}
			if err := json.Unmarshal(raw, &agg); err != nil {
				continue
			}
			var buckets []store.AggregationBucket
			for _, b := range agg.Buckets {
				bucket := store.AggregationBucket{Key: b.Key, Count: b.DocCount}
				for _, h := range b.TopHitsAgg.Hits.Hits {
					bucket.TopHits = append(bucket.TopHits, store.SearchHit{ID: h.ID, Score: h.Score, Source: h.Source})
				}
				buckets = append(buckets, bucket)
			}
			resp.Aggregations[name] = buckets
		}
	}

	return resp, nil
}
