package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/docsync/internal/appconfig"
	"github.com/agentworkforce/docsync/internal/docsync"
)

var (
	cfgPath   string
	debugFlag bool

	cfg    appconfig.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Keep remote sandbox documents in sync with local edits",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		cfg, err = appconfig.Load(cfgPath)
		if err != nil {
			return err
		}
		if debugFlag {
			cfg.Debug = true
		}
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "docsync.json", "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

func newRemoteClient() (*docsync.HTTPClient, error) {
	return docsync.NewHTTPClient(cfg.BaseURL, cfg.Token, &http.Client{Timeout: 15 * time.Second})
}

func newSession(remotePath string, disablePolling bool) (*docsync.Session, error) {
	client, err := newRemoteClient()
	if err != nil {
		return nil, err
	}
	cache, err := docsync.NewContentCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	drafts, err := docsync.BuildDraftStoreFromDSN(cfg.DraftStoreDSN)
	if err != nil {
		return nil, err
	}
	return docsync.NewSession(client, docsync.Handle{
		ContainerID: cfg.ContainerID,
		Path:        remotePath,
	}, docsync.SessionOptions{
		QuietInterval:  cfg.QuietInterval(),
		PollInterval:   cfg.PollInterval(),
		MaxRetries:     cfg.MaxRetries,
		Cache:          cache,
		Drafts:         drafts,
		Logger:         logger,
		DisablePolling: disablePolling,
	})
}
