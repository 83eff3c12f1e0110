package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/docsync/internal/mirror"
	"github.com/agentworkforce/docsync/internal/statusapi"
)

var statusLocalPath string

var statusCmd = &cobra.Command{
	Use:   "status <remote-path>",
	Short: "Run an edit session with the status API exposed",
	Long: `Like edit, but additionally serves GET /health, GET /status and a
GET /watch websocket stream of sync state transitions on the configured
status address.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusLocalPath, "local", "l", "", "local mirror path (default: remote file name in the working directory)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	remotePath := args[0]
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := newSession(remotePath, false)
	if err != nil {
		return err
	}
	defer session.Close()

	payload, err := session.Open(ctx)
	if err != nil {
		return err
	}

	localPath := statusLocalPath
	if localPath == "" {
		localPath = filepath.Base(remotePath)
	}
	m, err := mirror.New(session, localPath, logger)
	if err != nil {
		return err
	}
	if err := m.Start(payload); err != nil {
		return err
	}
	defer m.Close()

	server := statusapi.NewServer(session, cfg.StatusToken, logger)
	logger.Info("status API listening", "addr", cfg.StatusAddr, "remote", remotePath)
	return statusapi.Serve(ctx, cfg.StatusAddr, server)
}
