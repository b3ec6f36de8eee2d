package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/direct"
	"github.com/mstgnz/gobaokim/baokim/hosttohost"
	"github.com/mstgnz/gobaokim/baokim/mastersub"
	"github.com/mstgnz/gobaokim/handler"
	"github.com/mstgnz/gobaokim/infra/config"
	"github.com/mstgnz/gobaokim/infra/logger"
	"github.com/mstgnz/gobaokim/infra/metrics"
	"github.com/mstgnz/gobaokim/infra/middle"
	"github.com/mstgnz/gobaokim/infra/opensearch"
	"github.com/mstgnz/gobaokim/infra/storage"
	"github.com/mstgnz/gobaokim/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "1.0.0"

func main() {
	configPath := flag.String("config", ".env", "path to a .env, YAML, TOML or EDN config file")
	envHelp := flag.Bool("env-help", false, "print the supported environment variables and exit")
	flag.Parse()

	if *envHelp {
		fmt.Println(config.Description())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	if err := run(cfg); err != nil {
		logger.Fatal("Server stopped with error", err)
	}
}

func run(cfg *config.Config) error {
	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OpenSearch indexing is optional
	var osLogger *opensearch.Logger
	var sink logger.Sink
	if cfg.OpenSearch.Enabled {
		osClient, err := opensearch.NewClient(cfg.OpenSearch)
		if err != nil {
			logger.Warn("Failed to initialize OpenSearch client, continuing without it: " + err.Error())
		} else {
			osLogger = opensearch.NewLogger(osClient)
			sink = osLogger
		}
	}

	logger.InitGlobalLogger(logger.SystemLoggerConfig{
		EnableConsole: true,
		LogDir:        cfg.App.LogDir,
		FilePrefix:    "gobaokim",
		MinLevel:      logger.ParseLevel(cfg.App.LogLevel),
		Service:       "gobaokim",
		Version:       version,
		Environment:   cfg.App.Environment,
	}, sink)

	collector := metrics.NewCollector()
	callObservers := []baokim.CallObserver{collector}
	webhookObservers := []baokim.WebhookObserver{collector}

	var journal *storage.SQLiteJournal
	if cfg.Storage.Enabled {
		j, err := storage.NewSQLiteJournal(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		journal = j
		go journal.RunRetention(ctx, cfg.Storage.Retention(), time.Hour)
		callObservers = append(callObservers, journal)
		webhookObservers = append(webhookObservers, journal)
	}
	if osLogger != nil {
		callObservers = append(callObservers, osLogger)
		webhookObservers = append(webhookObservers, osLogger)
	}

	signer, err := baokim.NewSigner(cfg.Baokim.PrivateKeyPath, cfg.Baokim.PublicKeyPath)
	if err != nil {
		return err
	}
	if !signer.HasPublicKey() && cfg.Baokim.VerifyWebhook {
		logger.Warn("Baokim public key missing: signed webhooks will be answered with an internal error")
	}

	transport := baokim.NewHTTPTransport(cfg.TransportConfig())
	tokens := baokim.NewTokenManager(transport, signer, cfg.Credentials(), baokim.WithTokenObservers(callObservers...))
	client := baokim.NewClient(transport, tokens, signer, baokim.WithCallObservers(callObservers...))

	handlers := router.Handlers{
		Webhook: handler.NewWebhookHandler(newWebhook(signer, webhookObservers), cfg.Baokim.VerifyWebhook),
		Metrics: collector.Handler(),
	}

	switch baokim.AuthMode(cfg.Baokim.AuthMode) {
	case baokim.AuthModeDirect:
		handlers.V1.Direct = handler.NewDirectHandler(direct.New(client, direct.Options{
			MerchantCode: cfg.Baokim.MerchantCode,
			URLSuccess:   cfg.Baokim.URLSuccess,
			URLFail:      cfg.Baokim.URLFail,
		}))
	default:
		handlers.V1.Orders = handler.NewOrderHandler(mastersub.New(client, mastersub.Options{
			MerchantCode:       cfg.Baokim.MerchantCode,
			MasterMerchantCode: cfg.Baokim.MasterMerchantCode,
			SubMerchantCode:    cfg.Baokim.SubMerchantCode,
			URLSuccess:         cfg.Baokim.URLSuccess,
			URLFail:            cfg.Baokim.URLFail,
		}))
		handlers.V1.VA = handler.NewVAHandler(hosttohost.New(client, hosttohost.Options{
			MerchantCode:       cfg.Baokim.MerchantCode,
			MasterMerchantCode: cfg.Baokim.MasterMerchantCode,
			SubMerchantCode:    cfg.Baokim.SubMerchantCode,
		}))
	}

	if journal != nil {
		handlers.Health = handler.NewHealthHandler(tokens, journal, cfg.App.Environment, version)
		handlers.V1.Events = handler.NewEventsHandler(journal)
	} else {
		handlers.Health = handler.NewHealthHandler(tokens, nil, cfg.App.Environment, version)
	}
	if osLogger != nil {
		handlers.V1.Analytics = handler.NewAnalyticsHandler(osLogger)
	}

	var limiter *middle.RateLimiter
	if cfg.App.RateLimitPerMinute > 0 {
		limiter = middle.NewRateLimiter(cfg.App.RateLimitPerMinute, time.Minute)
		go limiter.Cleanup(ctx)
	}

	if cfg.Baokim.WebhookURL == "" {
		logger.Warn("BAOKIM_WEBHOOK_URL is empty: register " + router.WebhookPath + " on the public host with Baokim")
	}
	if cfg.App.APIKey == "" {
		logger.Warn("API_KEY is empty: /v1 is served without authentication")
	}

	r := router.New(handlers, router.Options{
		APIKey:            cfg.App.APIKey,
		CORSOrigins:       splitList(cfg.App.CORSOrigins),
		RateLimiter:       limiter,
		WebhookAllowedIPs: cfg.App.WebhookAllowedIPs,
		TrustedProxies:    cfg.App.TrustedProxies,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("API is running on "+cfg.App.Port, logger.LogContext{
		Fields: map[string]any{
			"environment": cfg.App.Environment,
			"auth_mode":   cfg.Baokim.AuthMode,
			"base_url":    cfg.Baokim.BaseURL,
			"webhook_url": cfg.Baokim.WebhookURL,
		},
	})

	// Block until a signal is received or the listener fails
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newWebhook acknowledges every operation after logging it. Deliveries are
// journaled through the observers.
func newWebhook(signer *baokim.Signer, observers []baokim.WebhookObserver) *baokim.Webhook {
	return baokim.NewWebhook(signer, observers...).
		OnPayment(acknowledge(baokim.OperationPayment)).
		OnRefund(acknowledge(baokim.OperationRefund)).
		OnCancelAutoDebit(acknowledge(baokim.OperationCancelAutoDebit)).
		OnVAPayment(acknowledge(baokim.OperationVAPayment))
}

func acknowledge(op baokim.Operation) baokim.WebhookHandlerFunc {
	return func(_ context.Context, data, _ map[string]any) (*baokim.WebhookReply, error) {
		logger.Info("Webhook notification accepted", logger.LogContext{
			Operation: string(op),
			Fields:    map[string]any{"data": data},
		})
		return nil, nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
