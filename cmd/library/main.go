// cmd/library/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libracore/internal/catalog"
	"libracore/internal/config"
	"libracore/internal/journal"
	"libracore/internal/logging"
	"libracore/internal/notify"
	"libracore/internal/telemetry"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogConsole, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "library")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	var (
		notifier catalog.Notifier
		broker   *notify.Broker
	)
	switch cfg.Notifier {
	case "amqp":
		broker, err = notify.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer broker.Close()
		notifier = notify.NewAMQPNotifier(broker.Channel)
	default:
		notifier = notify.NewLogNotifier(log.With().Str("component", "email").Logger())
	}
	notifier = notify.RateLimited(notifier, rate.NewLimiter(rate.Limit(cfg.EmailRatePerSec), cfg.EmailBurst))

	events := journal.New()
	opts := []catalog.Option{
		catalog.WithLogger(log.With().Str("component", "catalog").Logger()),
		catalog.WithJournal(events),
	}
	if cfg.UniqueISBN {
		opts = append(opts, catalog.WithUniqueISBN())
	}
	library := catalog.NewManager(notifier, opts...)

	if cfg.PublishBooks && broker != nil {
		library.AddObserver(notify.NewBookPublisher(broker.Channel, log))
	}
	if cfg.SeedFile != "" {
		if err := seed(ctx, library, cfg.SeedFile, log); err != nil {
			log.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           catalog.NewHandler(library, events).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("notifier", cfg.Notifier).Msg("starting library service")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("library service stopped")
}

// seed registers the seed members as observers before adding the seed books,
// so every member hears about every book.
func seed(ctx context.Context, library catalog.Manager, path string, log zerolog.Logger) error {
	s, err := config.LoadSeed(path)
	if err != nil {
		return err
	}

	for _, id := range s.Members {
		library.AddObserver(catalog.NewMember(id, log))
	}
	for _, b := range s.Books {
		if _, err := library.AddBook(ctx, b.Title, b.Author, b.ISBN); err != nil {
			return err
		}
	}

	log.Info().Int("books", len(s.Books)).Int("members", len(s.Members)).Msg("catalog seeded")
	return nil
}
