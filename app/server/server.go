package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"livestock/app/agent"
	"livestock/app/api"
	"livestock/app/middleware"
	"livestock/biosafety"
	"livestock/loader/service"
	"livestock/model"
	"livestock/store"
	"livestock/types"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg    types.Config
	logger *slog.Logger
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Inference is the external model boundary the service talks to.
type Inference interface {
	model.EmbedderInterface
	model.Generator
}

// Components is everything the HTTP layer and background jobs need.
type Components struct {
	Gatekeeper *biosafety.Gatekeeper
	Documents  *service.Service
	KB         *service.Bootstrapper
	Engine     *agent.Engine
}

func NewComponents(cfg types.Config, st store.DBStorer, inf Inference) (*Components, error) {
	embedder := model.NewEmbedder(inf)
	docs, err := service.New(st, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedDelay)
	if err != nil {
		return nil, err
	}
	return &Components{
		Gatekeeper: biosafety.New(st),
		Documents:  docs,
		KB:         service.NewBootstrapper(docs, cfg.KnowledgeBase, cfg.KBEmbedDelay),
		Engine:     agent.New(embedder, inf, agent.ModelsFromConfig(cfg.Inference)),
	}, nil
}

// NewApp mounts every route on a fresh Fiber app.
func NewApp(cfg types.Config, c *Components) *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    int(cfg.UploadMaxBytes) + 1<<20,
		})
		checkHandler   = api.NewCheckHandler(c.KB)
		configHandler  = api.NewConfigHandler(cfg)
		requestHandler = api.NewRequestHandler(c.Engine, c.Documents, c.KB)
		fileHandler    = api.NewFileHandler(c.Documents, cfg.UploadDir, cfg.UploadMaxBytes)
		animalHandler  = api.NewAnimalHandler(c.Gatekeeper)
		productHandler = api.NewProductHandler(c.Gatekeeper)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1", middleware.Identity())
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Get("/config", configHandler.HandleGetConfig)

	apiv1.Post("/ai/ask", requestHandler.HandleAsk)
	apiv1.Post("/ai/diagnose", requestHandler.HandleDiagnose)
	apiv1.Post("/ai/init", requestHandler.HandleInit)
	apiv1.Post("/ai/documents", fileHandler.HandleUpload)
	apiv1.Get("/ai/documents", fileHandler.HandleList)
	apiv1.Delete("/ai/documents/:id", fileHandler.HandleDelete)

	apiv1.Post("/animals", animalHandler.HandleRegister)
	apiv1.Get("/animals/:id", animalHandler.HandleGet)
	apiv1.Delete("/animals/:id", animalHandler.HandleDelete)
	apiv1.Post("/animals/:id/medical-logs", animalHandler.HandleMedicalLog)
	apiv1.Put("/animals/:id/quarantine", animalHandler.HandleQuarantine)
	apiv1.Post("/biosafety/sweep", animalHandler.HandleSweep)

	apiv1.Post("/products", productHandler.HandleCreate)
	apiv1.Get("/products", productHandler.HandleList)

	return app
}

// Run serves HTTP and the bio-safety sweeper until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	st, err := store.Open(ctx, s.cfg.PostgresDSN(), s.cfg.EmbeddingDimLen)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if s.cfg.Inference.APIKey == "" {
		s.logger.Warn("HUGGINGFACE_API_KEY is not set, AI endpoints will answer 503")
	}

	comps, err := NewComponents(s.cfg, st, model.NewHFClient(s.cfg.Inference))
	if err != nil {
		return err
	}
	app := NewApp(s.cfg, comps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server started", "addr", s.cfg.ServerAddr)
		return app.Listen(s.cfg.ServerAddr)
	})
	g.Go(func() error {
		return comps.Gatekeeper.RunSweeper(gctx, s.cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	err = g.Wait()
	s.logger.Info("server stopped")
	return err
}
