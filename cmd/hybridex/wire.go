package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/config"
	dbRedis "github.com/kailas-cloud/hybridex/internal/db/redis"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/domain/backend"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/repository/allowlist"
	curationrepo "github.com/kailas-cloud/hybridex/internal/repository/curation"
	documentrepo "github.com/kailas-cloud/hybridex/internal/repository/document"
	"github.com/kailas-cloud/hybridex/internal/repository/embcache"
	"github.com/kailas-cloud/hybridex/internal/repository/embedded"
	"github.com/kailas-cloud/hybridex/internal/repository/tagcache"
	chiTransport "github.com/kailas-cloud/hybridex/internal/transport/chi"
	"github.com/kailas-cloud/hybridex/internal/transport/identity"
	"github.com/kailas-cloud/hybridex/internal/transport/materialize"
	openaiEmb "github.com/kailas-cloud/hybridex/internal/transport/openai"
	accessuc "github.com/kailas-cloud/hybridex/internal/usecase/access"
	cataloguc "github.com/kailas-cloud/hybridex/internal/usecase/catalog"
	curationuc "github.com/kailas-cloud/hybridex/internal/usecase/curation"
	embeddinguc "github.com/kailas-cloud/hybridex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/hybridex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// app is the assembled server. close releases everything build opened, in reverse order.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build is the composition root.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	// Registered explicitly, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()
	metrics.RegisterHTTPMetrics()

	sch, err := cfg.BuildSchema()
	if err != nil {
		return fail(fmt.Errorf("build schema: %w", err))
	}

	be, kv, err := openBackend(ctx, cfg, sch, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", zap.Error(err))
		}
	})

	cache := tagcache.New()
	if err := cache.Rebuild(ctx, be, 0); err != nil {
		return fail(fmt.Errorf("warm tag cache: %w", err))
	}
	logger.Info("Tag cache warmed", zap.Int("documents", cache.Len()))

	healthSvc := healthuc.New(be)
	embedders, err := buildEmbedders(cfg, sch, kv, healthSvc, logger)
	if err != nil {
		return fail(err)
	}
	encoder := embeddinguc.NewQueryEncoder(sch, embedders, logger)

	resolver, err := buildIdentityResolver(ctx, cfg.Auth)
	if err != nil {
		return fail(err)
	}
	accessSvc := accessuc.New(allowlist.New(cfg.Auth.AllowlistFile), resolver, logger)
	if err := accessSvc.Load(ctx, cfg.Auth.Bootstrap); err != nil {
		return fail(fmt.Errorf("load allow-lists: %w", err))
	}

	curationSvc := curationuc.New(curationrepo.New(cfg.Curation.File), cache, logger).
		WithIDsPerFilter(cfg.Curation.IDsPerFilter)
	curationSvc.Load(ctx)

	materializer, err := buildMaterializer(cfg, logger)
	if err != nil {
		return fail(err)
	}

	requestTimeout := time.Duration(cfg.Backend.RequestTimeoutMs) * time.Millisecond
	indexSvc, err := indexuc.New(be, cache, sch, cfg.Index.Workers, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, indexSvc.Close)
	indexSvc.
		WithMaterializer(materializer).
		WithRateLimit(cfg.Index.MaterializeRate, cfg.Index.MaterializeBurst).
		WithMaxBatchSize(cfg.Index.MaxBatchSize).
		WithTimeout(requestTimeout).
		WithMaterializeTimeout(time.Duration(cfg.Index.MaterializeTimeoutMs) * time.Millisecond)

	searchSvc := searchuc.New(sch, be, logger).
		WithCuration(curationSvc).
		WithEncoder(encoder).
		WithTimeout(time.Duration(cfg.Search.TimeoutMs) * time.Millisecond).
		WithOverfetch(cfg.Search.Overfetch)

	catalogSvc := cataloguc.New(cache).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize).
		WithTopTags(cfg.Search.TopTags)

	server := chiTransport.NewServer(chiTransport.Services{
		Search:   searchSvc,
		Index:    indexSvc,
		Catalog:  catalogSvc,
		Curation: curationSvc,
		Access:   accessSvc,
		Health:   healthSvc,
	}, logger).
		WithCORS(cfg.HTTP.CORSOrigins).
		WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes).
		WithSearchLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	a.handler = server.Handler()
	return a, nil
}

// openBackend selects the backing store once. For redis and valkey it also returns the
// store as the shared embedding cache tier.
func openBackend(
	ctx context.Context, cfg config.Config, sch schema.Schema, logger *zap.Logger,
) (backend.Backend, *dbRedis.Store, error) {
	switch driver := backend.Driver(cfg.Backend.Driver); driver {
	case backend.DriverEmbedded:
		be, err := embedded.Open(embedded.Config{Path: cfg.Backend.Path}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedded backend: %w", err)
		}
		logger.Info("Using embedded backend", zap.String("path", cfg.Backend.Path))
		return be, nil, nil

	case backend.DriverRedis, backend.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Backend.Addrs,
			Username:   cfg.Backend.Username,
			Password:   cfg.Backend.Password,
			DB:         cfg.Backend.DB,
			TextSearch: driver == backend.DriverRedis,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create %s store: %w", driver, err)
		}
		readiness := time.Duration(cfg.Backend.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("%s not ready: %w", driver, err)
		}

		repo := documentrepo.New(store, sch, cfg.Backend.KeyPrefix, logger).
			WithCandidateWindow(cfg.Backend.CandidateWindow)
		if err := repo.EnsureIndex(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("ensure index: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", string(driver)),
			zap.Strings("addrs", cfg.Backend.Addrs),
		)
		return repo, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

// buildEmbedders assembles one decorator chain per encoder with a provider:
// OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedders(
	cfg config.Config, sch schema.Schema, kv *dbRedis.Store, health *healthuc.Service, logger *zap.Logger,
) (map[string]domain.Embedder, error) {
	out := make(map[string]domain.Embedder)
	for _, enc := range sch.Encoders() {
		ec := cfg.Schema.Encoders[enc.Name()]
		if ec.Provider == "" {
			continue
		}
		provCfg := cfg.Embedding.Providers[ec.Provider]

		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      ec.Model,
			Dimensions: enc.Dimensions(),
			Timeout:    time.Duration(cfg.Embedding.TimeoutMs) * time.Millisecond,
			Logger:     logger,
		})
		health.WithProvider(enc.Name(), base)

		cached, err := embcache.New(base, cfg.Backend.KeyPrefix+"emb:"+enc.Name()+":", cfg.Embedding.CacheSize, logger)
		if err != nil {
			return nil, err
		}
		if kv != nil {
			cached.WithStore(kv, time.Duration(cfg.Embedding.CacheTTL)*time.Second)
		}

		var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
			cached, enc.Name(), ec.Model, enc.Dimensions(), logger,
		)
		// Outermost, so the cache key includes the instruction.
		if ec.Instruction != "" {
			embedder = domain.NewInstructionEmbedder(embedder, ec.Instruction)
		}
		out[enc.Name()] = embedder

		logger.Info("Query encoder provider configured",
			zap.String("encoder", enc.Name()),
			zap.String("provider", ec.Provider),
			zap.String("model", ec.Model),
			zap.Int("dimensions", enc.Dimensions()),
		)
	}
	return out, nil
}

// buildIdentityResolver returns a nil interface when bearer tokens are not accepted.
func buildIdentityResolver(ctx context.Context, cfg config.AuthConfig) (auth.IdentityResolver, error) {
	switch cfg.Provider {
	case config.IdentityJWT:
		jwtCfg := identity.JWTConfig{Issuer: cfg.Issuer, Audience: cfg.Audience, EmailClaim: cfg.EmailClaim}
		if cfg.HMACSecret != "" {
			r, err := identity.NewHMAC([]byte(cfg.HMACSecret), jwtCfg)
			if err != nil {
				return nil, fmt.Errorf("create jwt resolver: %w", err)
			}
			return r, nil
		}
		pem, err := os.ReadFile(filepath.Clean(cfg.RSAPublicKeyFile))
		if err != nil {
			return nil, fmt.Errorf("read rsa public key: %w", err)
		}
		r, err := identity.NewRSA(pem, jwtCfg)
		if err != nil {
			return nil, fmt.Errorf("create jwt resolver: %w", err)
		}
		return r, nil
	case config.IdentityOIDC:
		r, err := identity.NewOIDC(ctx, identity.OIDCConfig{
			Issuer:     cfg.Issuer,
			ClientID:   cfg.ClientID,
			EmailClaim: cfg.EmailClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc resolver: %w", err)
		}
		return r, nil
	default:
		return nil, nil
	}
}

func buildMaterializer(cfg config.Config, logger *zap.Logger) (*materialize.Resolver, error) {
	m := materialize.New(logger).WithMaxSize(cfg.Index.MaterializeMaxBytes)
	if cfg.Index.AllowHTTP {
		m.WithHTTP(nil)
	}
	if cfg.S3.Endpoint != "" {
		s3, err := materialize.NewS3(materialize.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		m.WithS3(s3)
	}
	return m, nil
}
