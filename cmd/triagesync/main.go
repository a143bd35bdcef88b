package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auditfront/triagesync/internal/components"
	"github.com/auditfront/triagesync/internal/config"
	"github.com/auditfront/triagesync/internal/database"
	"github.com/auditfront/triagesync/internal/engine"
	"github.com/auditfront/triagesync/internal/filing"
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/logging"
	"github.com/auditfront/triagesync/internal/refresh"
	"github.com/auditfront/triagesync/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	findingsPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triagesync",
		Short: "Finding-triage synchronization agent",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&findingsPath, "findings", "", "Path to the local findings JSON export")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Status HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("review-user", defaults.GetString("review.user"), "Reviewer identity")
	cmd.PersistentFlags().String("review-mode", defaults.GetString("review.mode"), "Review mode (secret, communal, voting)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("file-link", defaults.GetString("tracker.file_link"), "Tracker filing link template")
	cmd.PersistentFlags().String("view-link", defaults.GetString("tracker.view_link"), "Tracker view link template")
	cmd.PersistentFlags().String("components-path", defaults.GetString("components.path"), "Component prefix table path")
	cmd.PersistentFlags().String("source-root", defaults.GetString("source.root"), "Root directory for source excerpts")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "review.user", "review-user")
	bindFlag(cmd, "review.mode", "review-mode")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "tracker.file_link", "file-link")
	bindFlag(cmd, "tracker.view_link", "view-link")
	bindFlag(cmd, "components.path", "components-path")
	bindFlag(cmd, "source.root", "source-root")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runAgent(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	local, err := loadFindings(findingsPath)
	if err != nil {
		return err
	}

	table, err := loadComponents(appConfig.ComponentsPath)
	if err != nil {
		return err
	}

	// Opening once up front runs migrations; the worker dials its own
	// short-lived connections afterwards.
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	if err := database.Close(db); err != nil {
		return err
	}

	reports := filing.NewBuilder(filing.BuilderConfig{
		FileLinkTemplate:        appConfig.FileLinkTemplate,
		ViewLinkTemplate:        appConfig.ViewLinkTemplate,
		ExplanationDocsTemplate: appConfig.PatternDocsTemplate,
		BugNote:                 appConfig.BugNote,
		SourceRoot:              appConfig.SourceRoot,
		Components:              table,
		Sink:                    logSink{logger: logger},
		Logger:                  logger,
	})

	core, err := engine.New(engine.Config{
		Reviewer: appConfig.Reviewer,
		Mode:     appConfig.ReviewMode,
		Dial:     database.Dialer(appConfig.DatabasePath),
		Reports:  reports,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core.Start(signalCtx, local)
	defer core.Shutdown()

	refresher := refresh.New(refresh.Config{
		Flush: func(deltas []refresh.Delta) {
			for _, delta := range deltas {
				logger.Info("group needs refresh", zap.String("group", delta.Group))
			}
		},
		Logger: logger,
	})
	go refresher.Run(signalCtx)
	for _, finding := range local {
		if finding.Skip() {
			continue
		}
		refresher.MarkDirty(refresh.Delta{Group: finding.Subject, Kind: refresh.KindAdded})
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Engine: core,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// logSink publishes supplemental filing messages to the log; a GUI embedding
// would swap in its own sink.
type logSink struct {
	logger *zap.Logger
}

func (s logSink) Publish(message filing.Message) {
	s.logger.Info("supplemental filing message",
		zap.String("id", message.ID),
		zap.String("title", message.Title),
		zap.String("body", message.Body))
}

func loadFindings(path string) ([]findings.Finding, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading findings export: %w", err)
	}

	var decoded []struct {
		Hash             string `json:"hash"`
		Pattern          string `json:"pattern"`
		Category         string `json:"category"`
		Severity         int    `json:"severity"`
		Subject          string `json:"subject"`
		SourceFile       string `json:"source_file"`
		StartLine        int    `json:"start_line"`
		EndLine          int    `json:"end_line"`
		Message          string `json:"message"`
		Details          string `json:"details"`
		FirstSeenSeconds int64  `json:"first_seen_s"`
		Dead             bool   `json:"dead"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parsing findings export: %w", err)
	}

	local := make([]findings.Finding, 0, len(decoded))
	for _, entry := range decoded {
		hash, err := findings.NewContentHash(entry.Hash)
		if err != nil {
			return nil, err
		}
		local = append(local, findings.Finding{
			Hash:             hash,
			Pattern:          entry.Pattern,
			Category:         entry.Category,
			Severity:         entry.Severity,
			Subject:          entry.Subject,
			SourceFile:       entry.SourceFile,
			StartLine:        entry.StartLine,
			EndLine:          entry.EndLine,
			Message:          entry.Message,
			Details:          entry.Details,
			FirstSeenSeconds: entry.FirstSeenSeconds,
			Dead:             entry.Dead,
		})
	}
	return local, nil
}

func loadComponents(path string) (*components.Table, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening component table: %w", err)
	}
	defer file.Close()
	return components.Load(file)
}
