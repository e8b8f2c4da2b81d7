// Package app is the composition root: it builds the fully wired
// authentication flow service from configuration. A transport layer calls
// New once at startup and Close on shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deafauth/backend/internal/asl"
	aslrepo "deafauth/backend/internal/asl/repository"
	"deafauth/backend/internal/audit"
	auditrepo "deafauth/backend/internal/audit/repository"
	"deafauth/backend/internal/challenge"
	challengeredis "deafauth/backend/internal/challenge/redis"
	"deafauth/backend/internal/config"
	"deafauth/backend/internal/db"
	"deafauth/backend/internal/flow"
	"deafauth/backend/internal/identity"
	"deafauth/backend/internal/logging"
	"deafauth/backend/internal/security"
	sessionrepo "deafauth/backend/internal/session/repository"
	"deafauth/backend/internal/telemetry"
	telemetryotel "deafauth/backend/internal/telemetry/otel"
	"deafauth/backend/internal/telemetry/producer"
)

// App holds the wired service and the resources it owns.
type App struct {
	Flow *flow.Service
	Log  *zap.Logger

	closers []func(context.Context) error
}

// New wires the flow service and its infrastructure from cfg. Optional
// backends (Redis, Kafka, OTLP) are enabled only when configured; everything
// degrades to in-process equivalents so the core flow never depends on them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	a := &App{Log: log}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "deafauth-core", cfg.Env != "production")
	if err != nil {
		return nil, fmt.Errorf("app: otel providers: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, providers.Shutdown)

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafkaEmitter := producer.NewKafkaEmitter(cfg.KafkaBrokersList(), cfg.KafkaTopic, log); kafkaEmitter != nil {
		emitters = append(emitters, kafkaEmitter)
		a.closers = append(a.closers, func(context.Context) error { return kafkaEmitter.Close() })
	}
	recorder := audit.NewRecorder(auditrepo.NewPostgresRepository(sqlDB), log, emitters...)

	var challenges challenge.Store
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		challenges = challengeredis.NewStore(client)
	} else {
		challenges = challenge.NewMemoryStore()
	}

	var tokens *security.TokenProvider
	if cfg.JWTPrivateKey != "" {
		keys, err := security.LoadSigningKeys(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("app: signing keys: %w", err)
		}
		tokens = security.NewTokenProvider(keys, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("deafauth"))
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	a.Flow = flow.NewService(flow.Options{
		Sessions:       sessionrepo.NewPostgresRepository(sqlDB),
		Attempts:       aslrepo.NewPostgresRepository(sqlDB),
		Recorder:       recorder,
		Identity:       identity.NewClient(cfg.IdentityBackendURL),
		Verifier:       asl.NewClient(cfg.ASLServiceURL, cfg.ASLServiceAPIKey),
		Hasher:         security.NewCodeHasher(cfg.BcryptCost),
		Tokens:         tokens,
		Metrics:        metrics,
		Logger:         log,
		Challenges:     challenges,
		MaxASLAttempts: cfg.MaxASLAttempts,
		MaxOTPAttempts: cfg.MaxOTPAttempts,
		SessionTTL:     cfg.SessionTTLDuration(),
		ChallengeCfg: challenge.Config{
			DefaultTimeout:  cfg.ChallengeTimeout(),
			ExtendedTimeout: cfg.ChallengeExtendedTimeout(),
			MaxAttempts:     cfg.MaxASLAttempts,
		},
	})
	return a, nil
}

// Close releases owned resources in reverse wiring order.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = a.Log.Sync()
	return firstErr
}
