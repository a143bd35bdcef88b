package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/auditfront/triagesync/internal/review"
	"github.com/spf13/viper"
)

const (
	envPrefix           = "TRIAGESYNC"
	defaultHTTPAddress  = "127.0.0.1:8462"
	defaultDatabasePath = "triagesync.db"
	defaultLogLevel     = "info"
	defaultReviewMode   = "voting"
)

// AppConfig captures runtime configuration for the synchronization engine.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	Reviewer            string
	ReviewMode          review.Mode
	FileLinkTemplate    string
	ViewLinkTemplate    string
	PatternDocsTemplate string
	BugNote             string
	ComponentsPath      string
	SourceRoot          string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("review.mode", defaultReviewMode)
	configViper.SetDefault("review.user", "")
	configViper.SetDefault("tracker.file_link", "")
	configViper.SetDefault("tracker.view_link", "")
	configViper.SetDefault("tracker.pattern_docs", "")
	configViper.SetDefault("tracker.bug_note", "")
	configViper.SetDefault("components.path", "")
	configViper.SetDefault("source.root", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	reviewer := strings.TrimSpace(configViper.GetString("review.user"))
	if reviewer == "" {
		reviewer = strings.TrimSpace(os.Getenv("USER"))
	}

	mode, err := review.ParseMode(configViper.GetString("review.mode"))
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		Reviewer:            reviewer,
		ReviewMode:          mode,
		FileLinkTemplate:    configViper.GetString("tracker.file_link"),
		ViewLinkTemplate:    configViper.GetString("tracker.view_link"),
		PatternDocsTemplate: configViper.GetString("tracker.pattern_docs"),
		BugNote:             configViper.GetString("tracker.bug_note"),
		ComponentsPath:      configViper.GetString("components.path"),
		SourceRoot:          configViper.GetString("source.root"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Reviewer) == "" {
		return fmt.Errorf("review.user is required")
	}
	return nil
}
