package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frenta/claimsearch/internal/api"
	"github.com/frenta/claimsearch/internal/config"
	"github.com/frenta/claimsearch/internal/ground"
	"github.com/frenta/claimsearch/internal/chunking"
	"github.com/frenta/claimsearch/internal/expansion"
	"github.com/frenta/claimsearch/internal/index"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/quantifier"
	"github.com/frenta/claimsearch/internal/resilience"
	"github.com/frenta/claimsearch/internal/search"
	"github.com/frenta/claimsearch/internal/services/embedding"
	"github.com/frenta/claimsearch/internal/services/geocode"
	"github.com/frenta/claimsearch/internal/services/llm"
	"github.com/frenta/claimsearch/internal/services/vision"
	"github.com/frenta/claimsearch/internal/store"
	"github.com/frenta/claimsearch/internal/store/esstore"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger := observability.NewLogger("server")
	breakers := resilience.NewManager(logger)

	visionLimiter := resilience.NewSlidingWindowLimiter(resilience.SlidingWindowConfig{
		Limit:  cfg.Pipeline.VisionRateLimitPerMinute,
		Window: time.Minute,
	})

	llmClient := llm.NewGoogleClient(llm.GoogleConfig{
		APIKey: cfg.Providers.GoogleAPIKey,
		Model:  cfg.Providers.GeminiModel,
	}, breakers, logger)

	embedClient := embedding.NewGoogleClient(embedding.GoogleConfig{
		APIKey: cfg.Providers.GoogleAPIKey,
		Model:  cfg.Providers.EmbeddingModel,
	}, breakers)

	visionClient := vision.NewGoogleClient(vision.GoogleConfig{
		APIKey: cfg.Providers.GoogleAPIKey,
		Model:  cfg.Providers.GeminiModel,
	}, breakers, visionLimiter)

	geocodeClient := geocode.NewGoogleClient(geocode.GoogleConfig{
		APIKey: cfg.Providers.GoogleMapsAPIKey,
	}, breakers)

	groundSvc := ground.New(ground.Config{
		Enabled:       cfg.Grounding.Enabled,
		MaxPerListing: cfg.Grounding.MaxGroundingsPerListing,
	}, llmClient, logger)

	expander := expansion.New(llmClient, cfg.Pipeline.ExpansionConcurrency, logger)
	quantExtractor := quantifier.New(cfg.Pipeline.QuantifierConcurrency, logger)
	chunker := chunking.New(chunking.Config{
		Threshold: cfg.Pipeline.ChunkThresholdChars,
		MaxChars:  cfg.Pipeline.ChunkMaxChars,
		Overlap:   cfg.Pipeline.ChunkOverlapChars,
	})

	st, err := esstore.New(esstore.Config{
		URL:                cfg.Store.ElasticsearchURL,
		RoomsIndex:         cfg.Store.RoomsIndex,
		ApartmentsIndex:    cfg.Store.ApartmentsIndex,
		NeighborhoodsIndex: cfg.Store.NeighborhoodsIndex,
	}, breakers, logger)
	if err != nil {
		log.Fatalf("connect to store: %v", err)
	}

	indexPipeline := &index.Pipeline{
		Chunker:    chunker,
		LLM:        llmClient,
		Embedder:   embedClient,
		Vision:     visionClient,
		Geocoder:   geocodeClient,
		Grounder:   groundSvc,
		Expander:   expander,
		Quantifier: quantExtractor,
		Store:      st,
		Logger:     logger,
	}

	searchPipeline := &search.Pipeline{
		LLM:        llmClient,
		Embedder:   embedClient,
		Quantifier: quantExtractor,
		Store:      st,
		Logger:     logger,
	}

	apiCfg := api.Config{
		ListenAddress: cfg.Server.ListenAddress,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
	}

	var storeAsInterface store.Store = st
	server := api.NewServer(apiCfg, storeAsInterface, indexPipeline, searchPipeline, logger)

	go func() {
		logger.Info("starting server", map[string]interface{}{"address": cfg.Server.ListenAddress})
		if err := server.Start(); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("server stopped gracefully", nil)
}
