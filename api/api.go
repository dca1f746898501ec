// Package api serves a finished run directory over HTTP: the run report,
// the exported relation files and prometheus gauges.
package api

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/metrics"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/export"
	"github.com/TFMV/vetsynth/report"
	"github.com/TFMV/vetsynth/version"
)

// ServerOptions configures the API server.
type ServerOptions struct {
	Port    string
	Prefork bool
	// RunDir is the output directory of a generate run.
	RunDir string
	Logger *zap.Logger
}

// Server holds the Fiber app instance
type Server struct {
	app       *fiber.App
	opts      ServerOptions
	collector *metrics.PrometheusMetricsCollector
	log       *zap.Logger
}

// NewServer initializes a new Fiber instance serving opts.RunDir.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:       app,
		opts:      opts,
		collector: metrics.NewPrometheusMetricsCollector(),
		log:       opts.Logger,
	}

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "vetsynth",
			"version": version.Version,
			"build":   version.BuildDate,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Get("/report", s.getReport)
	app.Get("/relations", s.listRelations)
	app.Get("/relations/:stage/:name", s.getRelation)

	promHandler := adaptor.HTTPHandler(promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	app.Get("/metrics", func(c *fiber.Ctx) error {
		if run, err := s.loadReport(); err == nil {
			s.collector.Observe(run)
		}
		return promHandler(c)
	})

	return s
}

// GetApp exposes the fiber app, mainly for app.Test.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) loadReport() (metrics.RunReport, error) {
	return report.ReportFromFilePath(filepath.Join(s.opts.RunDir, report.JSONFile))
}

func (s *Server) getReport(c *fiber.Ctx) error {
	run, err := s.loadReport()
	if errors.Is(err, os.ErrNotExist) {
		return fiber.NewError(fiber.StatusNotFound, "no report in run directory")
	}
	if err != nil {
		return err
	}
	return c.JSON(run)
}

// listRelations returns the export files of the run, optionally filtered by
// ?stage= and ?format=.
func (s *Server) listRelations(c *fiber.Ctx) error {
	stages := core.Stages
	if st := c.Query("stage"); st != "" {
		if !slices.Contains(core.Stages, core.Stage(st)) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown stage "+st)
		}
		stages = []core.Stage{core.Stage(st)}
	}
	formats := []string{"csv", "parquet", "arrow", "json"}
	if f := c.Query("format"); f != "" {
		formats = []string{f}
	}

	files := []export.File{}
	for _, st := range stages {
		for _, f := range formats {
			found, err := export.Discover(s.opts.RunDir, st, f)
			if err != nil {
				return err
			}
			files = append(files, found...)
		}
	}
	return c.JSON(files)
}

// getRelation downloads one export file, ?format= defaults to csv.
func (s *Server) getRelation(c *fiber.Ctx) error {
	stage := core.Stage(c.Params("stage"))
	if !slices.Contains(core.Stages, stage) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown stage "+string(stage))
	}
	rel := core.Relation{Name: filepath.Base(c.Params("name")), Stage: stage}
	path := export.Path(s.opts.RunDir, rel, c.Query("format", "csv"))
	if _, err := os.Stat(path); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "relation not exported")
	}
	return c.Download(path)
}

// Start runs the Fiber server until SIGINT or SIGTERM, then shuts down.
func (s *Server) Start() error {
	port := s.opts.Port
	if port == "" {
		port = "3000"
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API listening", zap.String("port", port), zap.String("run_dir", s.opts.RunDir))
		errCh <- s.app.Listen(":" + port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	s.log.Info("Received shutdown signal, stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the server, waiting for open requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
