package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salesvoice/internal/agent"
	"github.com/xenking/salesvoice/internal/domain/order"
	"github.com/xenking/salesvoice/internal/handler"
	"github.com/xenking/salesvoice/internal/llm"
	"github.com/xenking/salesvoice/internal/session"
	"github.com/xenking/salesvoice/internal/token"
	"github.com/xenking/salesvoice/pkg/health"
	"github.com/xenking/salesvoice/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.Catalog.Backend),
	)

	catalog, err := OpenCatalog(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open catalog")
	}
	defer catalog.Close()

	if err := SeedIfEmpty(ctx, lg, catalog.Store); err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("catalog", 5*time.Second, catalog.Check)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Session events: websocket subscribers always, the broker when configured.
	hub := session.NewHub()
	publishers := session.Fanout{hub}
	if cfg.AMQP.URL != "" {
		broker, err := session.DialAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return errors.Wrap(err, "connect to amqp")
		}
		defer func() { _ = broker.Close() }()
		healthSvc.AddReadinessCheck("amqp", time.Second, broker.Healthy)
		publishers = append(publishers, broker)
	}

	orders := order.NewService(catalog.Store,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)

	model := llm.NewClient(
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTimeout(cfg.LLM.Timeout),
	)
	defer func() { _ = model.Close() }()
	if model.Configured() {
		lg.Info("LLM configured", zap.String("model", model.Model()), zap.String("base_url", cfg.LLM.BaseURL))
	} else {
		lg.Warn("LLM API key not set, /chat will answer with a configuration error")
	}

	assistant := agent.New(model, orders,
		agent.WithPublisher(publishers),
		agent.WithMaxToolRounds(cfg.LLM.MaxToolRounds),
	)

	tokens := token.NewIssuer(token.Config{
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		URL:       cfg.LiveKit.URL,
		Room:      cfg.LiveKit.Room,
		TTL:       cfg.LiveKit.TokenTTL,
	})
	if !tokens.Configured() {
		lg.Warn("LiveKit credentials not set, /token will fail")
	}

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	handler.NewHandler(catalog.Store, assistant, tokens, hub).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      chatWriteTimeout(cfg.LLM),
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   skipRateLimit,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("salesvoice-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		if ctx.Err() != nil {
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		_ = hub.Close()
		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	healthSvc.SetReady(true)

	return g.Wait()
}

// chatWriteTimeout covers a whole chat turn: one completion per tool round
// plus the final tool-free completion.
func chatWriteTimeout(cfg LLMConfig) time.Duration {
	rounds := max(cfg.MaxToolRounds, 0) + 1
	return time.Duration(rounds)*cfg.Timeout + 5*time.Second
}

// skipRateLimit exempts probes and the long-lived event stream.
func skipRateLimit(r *http.Request) bool {
	switch r.URL.Path {
	case "/livez", "/readyz", "/events":
		return true
	}
	return false
}
