// Package index implements the listing indexing pipeline (spec §4.8): the
// ordered sequence that turns a raw listing submission into claim
// documents across the rooms/apartments/neighborhoods indices.
package index

import (
	"context"
	"sync"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/chunking"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/dedupe"
	"github.com/frenta/claimsearch/internal/expansion"
	"github.com/frenta/claimsearch/internal/ground"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/quantifier"
	"github.com/frenta/claimsearch/internal/services/embedding"
	"github.com/frenta/claimsearch/internal/services/geocode"
	"github.com/frenta/claimsearch/internal/services/llm"
	"github.com/frenta/claimsearch/internal/services/vision"
	"github.com/frenta/claimsearch/internal/store"
)

// RoomInput is one room's raw text within a listing submission.
type RoomInput struct {
	RoomType string
	Text     string
}

// Request is a raw listing submission (spec §4.8's
// process(document, apartment_id, title?, address?, neighborhood_id?,
// image_urls?, image_metadata?, rent_price?, availability_dates?,
// precomputed_image_descriptions?) signature).
type Request struct {
	ApartmentID    string
	Title          string
	Address        string
	NeighborhoodID string
	RawDescription string
	ImageURLs      []string

	// ImageMetadata lets the caller attach a known description per image
	// url up front (e.g. from a prior indexing run), same as
	// PrecomputedImageDescriptions but keyed by url instead of position.
	ImageMetadata []claims.ImageMetadata

	// PrecomputedImageDescriptions supplies a vision description per
	// ImageURLs index, skipping the vision call for that image.
	PrecomputedImageDescriptions []string

	// RentPrice and AvailabilityDates, when supplied, win over the
	// LLM-extracted structured properties per field (spec §4.8 step 3).
	RentPrice         *float64
	AvailabilityDates []claims.AvailabilityRange

	Rooms []RoomInput
}

// Summary reports what the pipeline did with one submission.
type Summary struct {
	ApartmentID     string
	RoomClaims      int
	ApartmentClaims int
	NeighborhoodID  string
	GroundedClaims  int
}

// Pipeline wires every indexing-time dependency together. Every field is
// required except NeighborhoodResolver, which defaults to a no-op.
type Pipeline struct {
	Chunker    *chunking.Chunker
	LLM        llm.Client
	Embedder   embedding.Client
	Vision     vision.Client
	Geocoder   geocode.Client
	Grounder   *ground.Service
	Expander   *expansion.Expander
	Quantifier *quantifier.Extractor
	Store      store.Store
	Logger     observability.Logger

	// NeighborhoodResolver maps a geocoded point to a neighborhood id and
	// its descriptive text, when the caller's corpus offers one. Nil
	// leaves every listing's neighborhood domain empty.
	NeighborhoodResolver func(ctx context.Context, point claims.LatLng) (id string, text string, err error)
}

// Process runs the ten-phase indexing pipeline against one listing
// submission and persists its claim documents (spec §4.8).
func (p *Pipeline) Process(ctx context.Context, req Request) (Summary, error) {
	if req.ApartmentID == "" {
		return Summary{}, apperrors.Invalid("apartment_id is required")
	}

	// Phase 1: claim extraction, text and image concurrently.
	textClaims, imageClaims, imageMeta := p.extractClaims(ctx, req)
	roomClaims := p.extractRoomClaims(ctx, req)
	imageDescriptions := make([]string, 0, len(imageMeta))
	for _, m := range imageMeta {
		if m.Description != "" {
			imageDescriptions = append(imageDescriptions, m.Description)
		}
	}

	allClaims := make([]claims.Claim, 0, len(textClaims)+len(imageClaims)+len(roomClaims))
	allClaims = append(allClaims, textClaims...)
	allClaims = append(allClaims, imageClaims...)
	allClaims = append(allClaims, roomClaims...)

	if len(allClaims) == 0 {
		return Summary{ApartmentID: req.ApartmentID}, nil
	}

	// Phase 2: dedup happens after embedding per spec (cosine similarity
	// needs vectors); see below. Phase numbering here follows data
	// dependency rather than the spec's listed order where the two
	// diverge only in which step embeds first.

	// Phase 3: structured properties + geocoding, concurrent.
	var structured llm.StructuredProperties
	var location claims.LatLng
	var hasLocation bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sp, err := p.LLM.ExtractStructuredProperties(ctx, req.RawDescription)
		if err != nil {
			p.Logger.Warn("structured property extraction failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
		}
		structured = mergeStructuredProperties(req, sp)
	}()
	go func() {
		defer wg.Done()
		if req.Address == "" {
			return
		}
		pt, err := p.Geocoder.Geocode(ctx, req.Address)
		if err != nil {
			p.Logger.Warn("geocoding failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
			return
		}
		location = pt
		hasLocation = true
	}()
	wg.Wait()

	// Phase 4: grounding.
	var groundResult ground.Result
	if hasLocation {
		groundResult = p.Grounder.GroundBatch(ctx, allClaims, &location)
		allClaims = append(allClaims, groundResult.VerifiedClaims...)
	}

	// Phase 5: expansion (derived + anti variants).
	allClaims = p.Expander.Expand(ctx, allClaims)

	// Phase 6: quantifier extraction.
	allClaims = p.Quantifier.Extract(ctx, allClaims)

	// Phase 7: embedding.
	embedded, err := p.embedAll(ctx, allClaims)
	if err != nil {
		return Summary{}, err
	}

	// Dedup against embeddings, per claim type+domain bucket so unrelated
	// claims never collide on the 0.98 cosine threshold (spec §4.2).
	embedded = dedupeByBucket(embedded)

	// Phase 8: write rooms, then apartments, then neighborhoods, then
	// refresh (sequential — later writes may reference earlier ids).
	neighborhoodID, neighborhoodText := req.NeighborhoodID, ""
	if neighborhoodID == "" && hasLocation && p.NeighborhoodResolver != nil {
		if id, text, nerr := p.NeighborhoodResolver(ctx, location); nerr == nil {
			neighborhoodID, neighborhoodText = id, text
		}
	}

	roomCount, apartmentCount, err := p.write(ctx, req, embedded, location, hasLocation, neighborhoodID, neighborhoodText, structured, imageMeta)
	if err != nil {
		return Summary{}, err
	}

	if err := p.Store.Refresh(ctx, store.IndexRooms, store.IndexApartments, store.IndexNeighborhoods); err != nil {
		p.Logger.Warn("refresh failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
	}

	// Phase 9: enrichment — generate summary/title/location summary and
	// patch the canonical claim doc.
	p.enrich(ctx, req, imageDescriptions, location, hasLocation)

	return Summary{
		ApartmentID:     req.ApartmentID,
		RoomClaims:      roomCount,
		ApartmentClaims: apartmentCount,
		NeighborhoodID:  neighborhoodID,
		GroundedClaims:  len(groundResult.VerifiedClaims),
	}, nil
}

// precomputedDescriptions merges the caller's ImageMetadata (keyed by url)
// and PrecomputedImageDescriptions (keyed by ImageURLs position) into one
// url -> description lookup, so extractClaims can skip the vision call for
// any image the caller already described (spec §4.8 step 1).
func precomputedDescriptions(req Request) map[string]string {
	out := map[string]string{}
	for _, m := range req.ImageMetadata {
		if m.Description != "" {
			out[m.URL] = m.Description
		}
	}
	for i, url := range req.ImageURLs {
		if i < len(req.PrecomputedImageDescriptions) && req.PrecomputedImageDescriptions[i] != "" {
			out[url] = req.PrecomputedImageDescriptions[i]
		}
	}
	return out
}

func (p *Pipeline) extractClaims(ctx context.Context, req Request) (textClaims, imageClaims []claims.Claim, imageMeta []claims.ImageMetadata) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for _, chunk := range p.Chunker.Split(req.RawDescription) {
			c, err := p.LLM.ExtractClaims(ctx, chunk, req.Address)
			if err != nil {
				p.Logger.Warn("text claim extraction failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
				continue
			}
			for i := range c {
				c[i].Domain = claims.DomainApartment
			}
			textClaims = append(textClaims, c...)
		}
	}()

	go func() {
		defer wg.Done()
		precomputed := precomputedDescriptions(req)
		var mu sync.Mutex
		var iwg sync.WaitGroup
		for idx, url := range req.ImageURLs {
			idx, url := idx, url
			iwg.Add(1)
			go func() {
				defer iwg.Done()
				description, ok := precomputed[url]
				if !ok {
					d, err := p.Vision.DescribeImage(ctx, url)
					if err != nil {
						p.Logger.Warn("image description failed", map[string]interface{}{"apartment_id": req.ApartmentID, "image_url": url, "error": err.Error()})
						return
					}
					description = d
				}
				c, err := p.LLM.ExtractClaims(ctx, description, req.Address)
				if err != nil {
					p.Logger.Warn("image claim extraction failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
					return
				}
				imgIdx := idx
				for i := range c {
					c[i].Domain = claims.DomainApartment
					c[i].Source = claims.ClaimSource{Type: claims.SourceImage, ImageURL: url, ImageIndex: &imgIdx}
				}
				mu.Lock()
				imageClaims = append(imageClaims, c...)
				imageMeta = append(imageMeta, claims.ImageMetadata{URL: url, Description: description})
				mu.Unlock()
			}()
		}
		iwg.Wait()
	}()

	wg.Wait()
	return textClaims, imageClaims, imageMeta
}

// mergeStructuredProperties applies spec §4.8 step 3's caller-wins rule: a
// caller-supplied RentPrice or AvailabilityDates entry overrides whatever
// the LLM extracted for that field.
func mergeStructuredProperties(req Request, extracted llm.StructuredProperties) llm.StructuredProperties {
	out := extracted
	if req.RentPrice != nil {
		out.RentPrice = req.RentPrice
	}
	if len(req.AvailabilityDates) > 0 {
		out.AvailabilityStart = &req.AvailabilityDates[0].Start
		out.AvailabilityEnd = req.AvailabilityDates[0].End
	}
	return out
}

func (p *Pipeline) extractRoomClaims(ctx context.Context, req Request) []claims.Claim {
	var mu sync.Mutex
	var out []claims.Claim
	var wg sync.WaitGroup
	for _, room := range req.Rooms {
		room := room
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, chunk := range p.Chunker.Split(room.Text) {
				c, err := p.LLM.ExtractClaims(ctx, chunk, req.Address)
				if err != nil {
					p.Logger.Warn("room claim extraction failed", map[string]interface{}{"apartment_id": req.ApartmentID, "room_type": room.RoomType, "error": err.Error()})
					continue
				}
				for i := range c {
					c[i].Domain = claims.DomainRoom
					c[i].RoomType = room.RoomType
				}
				mu.Lock()
				out = append(out, c...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return out
}

func (p *Pipeline) embedAll(ctx context.Context, input []claims.Claim) ([]claims.EmbeddedClaim, error) {
	texts := make([]string, len(input))
	for i, c := range input {
		texts[i] = c.Text
	}
	vectors, err := p.Embedder.Embed(ctx, texts, embedding.TaskRetrievalDocument)
	if err != nil {
		return nil, err
	}
	out := make([]claims.EmbeddedClaim, len(input))
	for i, c := range input {
		out[i] = claims.EmbeddedClaim{Claim: c, Embedding: vectors[i]}
	}
	return out, nil
}

func dedupeByBucket(in []claims.EmbeddedClaim) []claims.EmbeddedClaim {
	type bucketKey struct {
		domain claims.Domain
		ctype  claims.ClaimType
	}
	buckets := make(map[bucketKey][]claims.EmbeddedClaim)
	var order []bucketKey
	for _, c := range in {
		k := bucketKey{c.Domain, c.ClaimType}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], c)
	}
	out := make([]claims.EmbeddedClaim, 0, len(in))
	for _, k := range order {
		out = append(out, dedupe.Dedupe(buckets[k], 0)...)
	}
	return out
}

func (p *Pipeline) write(ctx context.Context, req Request, embedded []claims.EmbeddedClaim, location claims.LatLng, hasLocation bool, neighborhoodID, neighborhoodText string, structured llm.StructuredProperties, imageMeta []claims.ImageMetadata) (roomCount, apartmentCount int, err error) {
	roomDocs := map[string]store.Doc{}
	apartmentDocs := map[string]store.Doc{}
	neighborhoodDocs := map[string]store.Doc{}

	roomIdx, apartmentIdx, neighborhoodIdx := 0, 0, 0
	for _, c := range embedded {
		doc := claimToDoc(req.ApartmentID, c, location, hasLocation)
		switch c.Domain {
		case claims.DomainRoom:
			id := claims.RoomDocID(req.ApartmentID, roomIdx)
			roomDocs[id] = doc
			roomIdx++
		case claims.DomainNeighborhood:
			id := claims.NeighborhoodClaimDocID(neighborhoodID, neighborhoodIdx)
			neighborhoodDocs[id] = doc
			neighborhoodIdx++
		default:
			id := claims.ApartmentClaimDocID(req.ApartmentID, apartmentIdx)
			if apartmentIdx == 0 {
				if structured.RentPrice != nil {
					doc["rent_price"] = *structured.RentPrice
				}
				if structured.AvailabilityStart != nil {
					doc["availability_dates"] = []claims.AvailabilityRange{
						{Start: *structured.AvailabilityStart, End: structured.AvailabilityEnd},
					}
				}
				doc["address"] = req.Address
				doc["raw_description"] = req.RawDescription
				doc["image_urls"] = req.ImageURLs
				if len(imageMeta) > 0 {
					doc["image_metadata"] = imageMeta
				}
				if req.Title != "" {
					doc["title"] = req.Title
				}
				if hasLocation {
					doc["location"] = map[string]float64{"lat": location.Lat, "lng": location.Lng}
				}
				if neighborhoodID != "" {
					doc["neighborhood_id"] = neighborhoodID
				}
			}
			apartmentDocs[id] = doc
			apartmentIdx++
		}
	}

	if len(roomDocs) > 0 {
		if err := p.Store.BulkIndex(ctx, store.IndexRooms, roomDocs); err != nil {
			return 0, 0, apperrors.Fatal(err, "failed to write room claims")
		}
	}
	if len(apartmentDocs) == 0 {
		// Always persist a canonical doc so enrichment has somewhere to patch.
		canonical := store.Doc{
			"apartment_id": req.ApartmentID, "address": req.Address, "raw_description": req.RawDescription,
		}
		if req.Title != "" {
			canonical["title"] = req.Title
		}
		apartmentDocs[claims.CanonicalClaimDocID(req.ApartmentID)] = canonical
	}
	if err := p.Store.BulkIndex(ctx, store.IndexApartments, apartmentDocs); err != nil {
		return 0, 0, apperrors.Fatal(err, "failed to write apartment claims")
	}
	if len(neighborhoodDocs) > 0 {
		if err := p.Store.BulkIndex(ctx, store.IndexNeighborhoods, neighborhoodDocs); err != nil {
			return 0, 0, apperrors.Fatal(err, "failed to write neighborhood claims")
		}
	}

	return len(roomDocs), len(apartmentDocs), nil
}

func claimToDoc(apartmentID string, c claims.EmbeddedClaim, location claims.LatLng, hasLocation bool) store.Doc {
	doc := store.Doc{
		"apartment_id": apartmentID,
		"claim":        c.Text,
		"claim_type":   string(c.ClaimType),
		"kind":         string(c.Kind),
		"from_claim":   c.FromClaim,
		"negation":     c.Negation,
		"claim_vector": c.Embedding,
		"weight":       c.Weight,
		"is_specific":  c.IsSpecific,
		"source":       c.Source,
	}
	if len(c.Quantifiers) > 0 {
		doc["quantifiers"] = c.Quantifiers
	}
	if c.Grounding != nil {
		doc["grounding_metadata"] = c.Grounding
	}
	if c.RoomType != "" {
		doc["room_type"] = c.RoomType
	}
	return doc
}

func (p *Pipeline) enrich(ctx context.Context, req Request, imageDescriptions []string, location claims.LatLng, hasLocation bool) {
	var wg sync.WaitGroup
	var summary, title, locationSummary string

	wg.Add(1)
	go func() {
		defer wg.Done()
		s, err := p.LLM.GenerateSummary(ctx, req.RawDescription, imageDescriptions)
		if err != nil {
			p.Logger.Warn("summary generation failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
			return
		}
		summary = s
	}()
	if req.Title == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := p.LLM.GenerateTitle(ctx, req.RawDescription)
			if err != nil {
				p.Logger.Warn("title generation failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
				return
			}
			title = t
		}()
	}
	if hasLocation && req.Address != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ls, err := p.LLM.GenerateLocationSummary(ctx, req.Address, location)
			if err != nil {
				p.Logger.Warn("location summary generation failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
				return
			}
			locationSummary = ls
		}()
	}
	wg.Wait()

	patch := store.Doc{}
	if summary != "" {
		patch["property_summary"] = summary
	}
	if title != "" {
		patch["title"] = title
	}
	if locationSummary != "" {
		patch["location_summary"] = locationSummary
	}
	if len(patch) == 0 {
		return
	}
	id := claims.CanonicalClaimDocID(req.ApartmentID)

	// Store.Index is a full-document upsert, not a partial update; merge
	// the patch onto whatever write() already persisted for this id so
	// enrichment never erases the claim/rent_price/title fields written
	// moments earlier.
	doc, found, err := p.Store.Get(ctx, store.IndexApartments, id)
	if err != nil {
		p.Logger.Warn("enrichment doc fetch failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
		return
	}
	if !found {
		doc = store.Doc{}
	}
	for k, v := range patch {
		doc[k] = v
	}
	if err := p.Store.Index(ctx, store.IndexApartments, id, doc); err != nil {
		p.Logger.Warn("enrichment patch failed", map[string]interface{}{"apartment_id": req.ApartmentID, "error": err.Error()})
	}
}
