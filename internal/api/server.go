package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/index"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/search"
	"github.com/frenta/claimsearch/internal/store"
)

// Server is the HTTP surface for the indexing and search pipelines
// (spec §6): /setup, /index, /index/batch, /search, /apartments.
type Server struct {
	router *gin.Engine
	server *http.Server
	config Config
	logger observability.Logger

	store  store.Store
	index  *index.Pipeline
	search *search.Pipeline
}

// NewServer constructs a Server wired to the given pipelines.
func NewServer(cfg Config, st store.Store, indexPipeline *index.Pipeline, searchPipeline *search.Pipeline, logger observability.Logger) *Server {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())
	router.Use(VersioningMiddleware(VersioningConfig{DefaultVersion: APIVersionV1, AcceptHeaderCheck: true}))

	if cfg.RateLimit.Enabled {
		router.Use(RateLimiter(cfg.RateLimit))
	}
	if cfg.EnableCORS {
		router.Use(CORSMiddleware(&cfg))
	}

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
		store:  st,
		index:  indexPipeline,
		search: searchPipeline,
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.POST("/setup", s.setupHandler)
	s.router.POST("/index", s.indexHandler)
	s.router.POST("/index/batch", s.batchIndexHandler)
	s.router.POST("/search", s.searchHandler)
	s.router.GET("/apartments", s.listApartmentsHandler)
	s.router.GET("/apartments/:id", s.getApartmentHandler)
	s.router.DELETE("/apartments/:id", s.deleteApartmentHandler)
}

// Start runs the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, hook := range shutdownHooks {
		hook()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) setupHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := s.store.EnsureIndices(ctx); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) indexHandler(c *gin.Context) {
	var body IndexRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.Invalid("invalid request body: %v", err))
		return
	}

	summary, err := s.index.Process(c.Request.Context(), toIndexRequest(body))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toIndexResponse(summary))
}

func (s *Server) batchIndexHandler(c *gin.Context) {
	var body BatchIndexRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.Invalid("invalid request body: %v", err))
		return
	}

	results := make([]BatchIndexResult, len(body.Listings))
	for i, listing := range body.Listings {
		summary, err := s.index.Process(c.Request.Context(), toIndexRequest(listing))
		if err != nil {
			results[i] = BatchIndexResult{ApartmentID: listing.ApartmentID, Error: err.Error()}
			continue
		}
		resp := toIndexResponse(summary)
		results[i] = BatchIndexResult{ApartmentID: listing.ApartmentID, Summary: &resp}
	}
	c.JSON(http.StatusOK, BatchIndexResponse{Results: results})
}

func (s *Server) searchHandler(c *gin.Context) {
	var body SearchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.Invalid("invalid request body: %v", err))
		return
	}

	verify := true
	if body.VerifyClaims != nil {
		verify = *body.VerifyClaims
	}
	q := search.Query{
		Text:               body.Query,
		TopK:               body.TopK,
		VerifyClaims:       verify,
		DoubleCheckMatches: body.DoubleCheckMatches,
	}
	if body.UserLocation != nil {
		q.UserLocation = &claims.LatLng{Lat: body.UserLocation.Lat, Lng: body.UserLocation.Lng}
	}

	results, err := s.search.Search(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i, r := range results {
		items[i] = SearchResultItem{ApartmentID: r.ApartmentID, Score: r.Score, CoverageCount: r.CoverageCount}
	}
	c.JSON(http.StatusOK, SearchResponseBody{Results: items})
}

func (s *Server) getApartmentHandler(c *gin.Context) {
	id := c.Param("id")
	apartmentFilter := &store.BoolFilter{Must: []store.TermFilter{{Field: "apartment_id", Values: []string{id}}}}

	apartmentHits, err := s.store.Search(c.Request.Context(), store.IndexApartments, store.SearchRequest{Filter: apartmentFilter, Size: 1000})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(apartmentHits.Hits) == 0 {
		_ = c.Error(apperrors.NotFound("apartment %q not found", id))
		return
	}

	neighborhoodHits, err := s.store.Search(c.Request.Context(), store.IndexNeighborhoods, store.SearchRequest{Filter: apartmentFilter, Size: 1000})
	if err != nil {
		_ = c.Error(err)
		return
	}
	roomHits, err := s.store.Search(c.Request.Context(), store.IndexRooms, store.SearchRequest{Filter: apartmentFilter, Size: 1000})
	if err != nil {
		_ = c.Error(err)
		return
	}

	// canonical is the claim_0 document, which carries the denormalized
	// address/title/summary/rent_price fields written by the indexing
	// pipeline (internal/index.write).
	var canonical store.Doc
	canonicalID := claims.CanonicalClaimDocID(id)

	allClaims := make([]store.Doc, 0, len(apartmentHits.Hits)+len(neighborhoodHits.Hits)+len(roomHits.Hits))
	var baseClaims, verifiedClaims, derivedClaims int
	for _, h := range apartmentHits.Hits {
		allClaims = append(allClaims, claimWithDomain(h.Source, claims.DomainApartment))
		tallyClaimKind(h.Source, &baseClaims, &verifiedClaims, &derivedClaims)
		if h.ID == canonicalID {
			canonical = h.Source
		}
	}
	for _, h := range neighborhoodHits.Hits {
		allClaims = append(allClaims, claimWithDomain(h.Source, claims.DomainNeighborhood))
		tallyClaimKind(h.Source, &baseClaims, &verifiedClaims, &derivedClaims)
	}
	for _, h := range roomHits.Hits {
		allClaims = append(allClaims, claimWithDomain(h.Source, claims.DomainRoom))
		tallyClaimKind(h.Source, &baseClaims, &verifiedClaims, &derivedClaims)
	}

	resp := store.Doc{}
	for k, v := range canonical {
		resp[k] = v
	}
	resp["apartment_id"] = id
	resp["claims"] = allClaims
	resp["total_claims"] = len(allClaims)
	resp["base_claims"] = baseClaims
	resp["verified_claims"] = verifiedClaims
	resp["derived_claims"] = derivedClaims

	c.JSON(http.StatusOK, resp)
}

// claimWithDomain annotates a stored claim document with the structural
// domain its index implies, since claim documents don't carry that field
// themselves (spec §6's grouped-by-domain response).
func claimWithDomain(doc store.Doc, domain claims.Domain) store.Doc {
	tagged := store.Doc{}
	for k, v := range doc {
		tagged[k] = v
	}
	tagged["domain"] = string(domain)
	return tagged
}

// tallyClaimKind increments the running base/verified/derived counts for one
// claim document's "kind" field (spec §6's apartment summary counts). Anti
// claims count toward derived_claims alongside derived ones.
func tallyClaimKind(doc store.Doc, base, verified, derived *int) {
	kind, _ := doc["kind"].(string)
	switch claims.Kind(kind) {
	case claims.KindBase:
		*base++
	case claims.KindVerified:
		*verified++
	case claims.KindDerived, claims.KindAnti:
		*derived++
	}
}

func (s *Server) listApartmentsHandler(c *gin.Context) {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	req := store.SearchRequest{
		Size: pageSize,
		From: (page - 1) * pageSize,
	}
	if raw := c.Query("has_images"); raw != "" {
		hasImages, perr := strconv.ParseBool(raw)
		if perr != nil {
			_ = c.Error(apperrors.Invalid("has_images must be a boolean"))
			return
		}
		req.Filter = &store.BoolFilter{Exists: []store.ExistsFilter{{Field: "image_urls", Negate: !hasImages}}}
	}

	resp, err := s.store.Search(c.Request.Context(), store.IndexApartments, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apartments": resp.Hits, "total": resp.Total, "page": page, "page_size": pageSize})
}

// parsePagination reads and validates the page/page_size query params
// (spec §6: 1 <= page_size <= 100), defaulting page=1, page_size=20.
func parsePagination(c *gin.Context) (page, pageSize int, err error) {
	page = 1
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperrors.Invalid("page must be a positive integer")
		}
	}

	pageSize = 20
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.Invalid("page_size must be an integer")
		}
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, apperrors.Invalid("page_size must be between 1 and 100")
	}
	return page, pageSize, nil
}

func (s *Server) deleteApartmentHandler(c *gin.Context) {
	id := c.Param("id")
	filter := store.BoolFilter{Must: []store.TermFilter{{Field: "apartment_id", Values: []string{id}}}}
	for _, idx := range []store.Index{store.IndexRooms, store.IndexApartments, store.IndexNeighborhoods} {
		if _, err := s.store.DeleteByQuery(c.Request.Context(), idx, filter); err != nil {
			_ = c.Error(err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"apartment_id": id, "deleted": true})
}

func toIndexRequest(body IndexRequest) index.Request {
	rooms := make([]index.RoomInput, len(body.Rooms))
	for i, r := range body.Rooms {
		rooms[i] = index.RoomInput{RoomType: r.RoomType, Text: r.Text}
	}
	return index.Request{
		ApartmentID:                  body.ApartmentID,
		Title:                        body.Title,
		Address:                      body.Address,
		NeighborhoodID:               body.NeighborhoodID,
		RawDescription:               body.RawDescription,
		ImageURLs:                    body.ImageURLs,
		ImageMetadata:                body.ImageMetadata,
		PrecomputedImageDescriptions: body.PrecomputedImageDescriptions,
		RentPrice:                    body.RentPrice,
		AvailabilityDates:            body.AvailabilityDates,
		Rooms:                        rooms,
	}
}

func toIndexResponse(s index.Summary) IndexResponse {
	return IndexResponse{
		ApartmentID:     s.ApartmentID,
		RoomClaims:      s.RoomClaims,
		ApartmentClaims: s.ApartmentClaims,
		NeighborhoodID:  s.NeighborhoodID,
		GroundedClaims:  s.GroundedClaims,
	}
}

func statusForError(err error) (int, string) {
	switch apperrors.ClassOf(err) {
	case apperrors.ClassInvalid:
		return http.StatusBadRequest, err.Error()
	case apperrors.ClassNotFound:
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
