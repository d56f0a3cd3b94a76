package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/extract"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/model"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mrag",
		Short:         "document question answering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "ingest local files into the index",
		Long:  "Ingest local files into the index as one batch. Supported extensions: " + strings.Join(extract.Supported(), " "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runIngest(cmd.Context(), a, args)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "answer one question from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			answer, err := a.query.Answer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	// provider keys may live in .env next to the working directory
	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return buildApp(context.Background(), cfg)
}

func runIngest(ctx context.Context, a *app, paths []string) error {
	docs := make([]model.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		text, err := extract.Text(p, data)
		if err != nil {
			return err
		}
		docs = append(docs, model.Document{Source: filepath.Base(p), Content: text})
	}
	result, err := a.ingest.Ingest(ctx, docs)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("files ingested",
		zap.Int("documents", result.Documents),
		zap.Int("chunks_added", result.ChunksAdded),
		zap.Int("total_chunks", result.TotalChunks),
	)
	return nil
}

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := a.startJobs(ctx)
	if err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	defer scheduler.Stop()

	var logs handler.IngestLogLister
	if a.ingestLogs != nil {
		logs = a.ingestLogs
	}
	deps := handler.RouterDeps{
		Upload: handler.NewUploadHandler(a.ingest, handler.UploadLimits{
			MaxBytes: cfg.Upload.MaxBytes,
			MaxFiles: cfg.Upload.MaxFiles,
		}),
		Query:       handler.NewQueryHandler(a.query),
		Index:       handler.NewIndexHandler(a.ingest, logs),
		QueryWindow: time.Duration(cfg.RateLimitMS) * time.Millisecond,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
