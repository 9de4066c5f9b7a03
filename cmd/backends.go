package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// ledgerBackend is the opened attendance store of the configured backend.
type ledgerBackend struct {
	store database.AttendanceStore
	cache *postgres.GalleryCacheRepository // nil unless GALLERY_CACHE is set
	pg    *postgres.Pool                   // nil for MariaDB
	close func()
}

// galleryCache returns the cache as an interface, nil when caching is off.
func (b *ledgerBackend) galleryCache() database.GalleryCache {
	if b.cache == nil {
		return nil
	}
	return b.cache
}

// openLedgerStore connects to the ledger backend selected by LEDGER_BACKEND and migrates it.
func openLedgerStore(ctx context.Context, cfg *config.Config) (*ledgerBackend, error) {
	switch cfg.Database.Backend {
	case "postgres":
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		b := &ledgerBackend{
			store: postgres.NewAttendanceRepository(pool),
			pg:    pool,
			close: func() { pool.Close() },
		}
		if cfg.Gallery.Cache {
			b.cache = postgres.NewGalleryCacheRepository(pool)
			fmt.Printf("Gallery embedding cache enabled (PostgreSQL)\n")
		}
		return b, nil

	case "mariadb":
		fmt.Printf("Connecting to MariaDB database...\n")
		pool, err := mariadb.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return &ledgerBackend{
			store: mariadb.NewAttendanceRepository(pool),
			close: func() { pool.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Database.Backend)
	}
}

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	backend *ledgerBackend
	client  *embedding.Client
	gallery *gallery.Gallery
	matcher *facematch.Matcher
	ledger  *attendance.Ledger
}

// setupApp validates the configuration, opens the ledger and, when
// withGallery is set, loads the gallery through the embedding service.
func setupApp(ctx context.Context, cfg *config.Config, withGallery bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	matcher, err := facematch.NewMatcher(cfg.Matching.DistanceThreshold)
	if err != nil {
		return nil, err
	}

	backend, err := openLedgerStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		backend: backend,
		client:  embedding.NewClient(cfg.Embedding.URL),
		matcher: matcher,
		ledger:  attendance.NewLedger(backend.store),
	}

	if withGallery {
		if a.gallery, err = a.loadGallery(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// loadGallery embeds every gallery image. Any failing file aborts startup.
func (a *app) loadGallery(ctx context.Context) (*gallery.Gallery, error) {
	fmt.Printf("Loading gallery from %s...\n", a.cfg.Gallery.Dir)
	g, err := gallery.Load(ctx, a.cfg.Gallery.Dir, a.client, gallery.LoadOptions{
		Scale:       a.cfg.Gallery.Scale,
		Concurrency: a.cfg.Gallery.Concurrency,
		Cache:       a.backend.galleryCache(),
		Model:       a.cacheModel(),
		Progress:    os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	fmt.Printf("Loaded %d identities (%d dimensions)\n", g.Len(), g.Dim())
	return g, nil
}

// cacheModel is the cache key component: the same image embedded at another
// scale or by another model gives a different embedding.
func (a *app) cacheModel() string {
	return fmt.Sprintf("%s@%g", a.cfg.Embedding.Model, a.cfg.Gallery.Scale)
}

// notifier builds the mark notifier: an optional greeting on stdout, Kafka
// when KAFKA_BROKERS is set, plus any extra notifiers.
func (a *app) notifier(greet bool, extra ...events.Notifier) (events.Notifier, func(), error) {
	var multi events.Multi
	closeFn := func() {}

	if greet {
		multi = append(multi, events.NewGreeter(os.Stdout))
	}
	if a.cfg.Kafka.Enabled() {
		pub, err := events.NewKafkaPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		fmt.Printf("Publishing marks to Kafka topic %s\n", a.cfg.Kafka.Topic)
		multi = append(multi, pub)
		closeFn = func() {
			if err := pub.Close(); err != nil {
				fmt.Printf("Warning: failed to close kafka publisher: %v\n", err)
			}
		}
	}
	multi = append(multi, extra...)
	return multi, closeFn, nil
}

// Close releases the database connection.
func (a *app) Close() {
	if a.backend != nil && a.backend.close != nil {
		a.backend.close()
	}
}
