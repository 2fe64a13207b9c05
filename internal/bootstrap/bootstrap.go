package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clinscribe/clinical-scribe/internal/config"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
	"github.com/clinscribe/clinical-scribe/internal/core/usecase"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/llm/gemini"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/llm/ollama"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/medentity"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/queue/nats"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/repository/postgres"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/resilience"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/storage/localfs"
	"github.com/clinscribe/clinical-scribe/internal/infrastructure/transcription/voxmed"
	"github.com/clinscribe/clinical-scribe/internal/report"
)

type App struct {
	Config config.Config

	Queue       ports.JobQueue
	Coordinator *usecase.IngestionCoordinator
	Reader      *usecase.NoteReadService
	Exporter    *report.NotesExporter

	closeFn func()
}

// New wires the full dependency graph. The observer receives generation
// outcome signals; pass the metrics set of the process being started.
func New(ctx context.Context, cfg config.Config, observer usecase.GenerationObserver, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	noteRepo := postgres.NewNoteRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	jobRepo := postgres.NewJobRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	transcriptionClient := voxmed.New(cfg.TranscriptionURL, cfg.TranscriptionAPIKey)
	transcriber := usecase.NewTranscriptionRunner(transcriptionClient, storage, usecase.TranscriptionRunnerConfig{
		Language:     cfg.TranscriptionLanguage,
		Specialty:    cfg.TranscriptionSpecialty,
		JobType:      cfg.TranscriptionType,
		PollInterval: cfg.TranscriptionPollInterval,
		MaxWait:      cfg.TranscriptionMaxWait,
	})

	detector := medentity.New(cfg.MedEntityURL, cfg.MedEntityKey, medentity.Options{
		RequestsPerSecond:  cfg.MedEntityRPS,
		Burst:              cfg.MedEntityBurst,
		ResilienceExecutor: executor,
	})
	extractor := usecase.NewEntityExtractor(detector)

	providers, err := buildProviders(cfg, executor)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}
	composer := usecase.NewNoteComposer(providers, observer)

	coordinator := usecase.NewIngestionCoordinator(
		noteRepo, patientRepo, jobRepo, queue, storage,
		transcriber, extractor, composer,
	)
	reader := usecase.NewNoteReadService(noteRepo, patientRepo, jobRepo)

	log.Info("application wired",
		"providers", providerNames(providers),
		"nats_subject", cfg.NATSSubject,
	)

	return &App{
		Config:      cfg,
		Queue:       queue,
		Coordinator: coordinator,
		Reader:      reader,
		Exporter:    report.NewNotesExporter(reader),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildProviders assembles the generation fallback chain in the order
// named by PROVIDER_ORDER. Providers missing required credentials are
// skipped rather than failing startup; an empty chain is still valid
// because composition degrades to deterministic defaults.
func buildProviders(cfg config.Config, executor *resilience.Executor) ([]ports.TextGenerator, error) {
	var providers []ports.TextGenerator
	for _, name := range strings.Split(cfg.ProviderOrder, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "":
			continue
		case "ollama":
			if cfg.OllamaURL == "" {
				continue
			}
			providers = append(providers, ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor))
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				continue
			}
			providers = append(providers, gemini.New(cfg.GeminiURL, cfg.GeminiAPIKey, cfg.GeminiModel))
		default:
			return nil, fmt.Errorf("unknown generation provider %q", name)
		}
	}
	return providers, nil
}

func providerNames(providers []ports.TextGenerator) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
