package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/docsync/internal/docsync"
	"github.com/agentworkforce/docsync/internal/mirror"
)

var (
	editLocalPath  string
	editOnConflict string
)

var editCmd = &cobra.Command{
	Use:   "edit <remote-path>",
	Short: "Mirror a remote document locally and sync edits until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVarP(&editLocalPath, "local", "l", "", "local mirror path (default: remote file name in the working directory)")
	editCmd.Flags().StringVar(&editOnConflict, "on-conflict", "manual", "conflict resolution: keep-local, take-remote or manual")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	remotePath := args[0]
	switch editOnConflict {
	case "keep-local", "take-remote", "manual":
	default:
		return fmt.Errorf("invalid --on-conflict value %q", editOnConflict)
	}

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

	localPath := editLocalPath
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

	logger.Info("editing", "remote", remotePath, "local", m.LocalPath())

	conflicts := make(chan struct{}, 1)
	unsubscribe := session.Subscribe(func(state docsync.SyncState) {
		logger.Debug("state", "status", state.Status, "pending", state.PendingChanges, "retries", state.RetryCount)
		if state.Status == docsync.StatusConflict {
			select {
			case conflicts <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down, unsaved edits stay in the draft store")
			return nil
		case <-conflicts:
			if err := resolveConflict(ctx, session, m); err != nil {
				logger.Error("conflict resolution failed", "error", err)
			}
		}
	}
}

func resolveConflict(ctx context.Context, session *docsync.Session, m *mirror.Mirror) error {
	details := session.Conflict()
	if details == nil {
		return nil
	}
	logger.Warn("conflict detected", "local", details.LocalCommit, "remote", details.RemoteCommit)

	switch editOnConflict {
	case "keep-local":
		return session.ResolveKeepLocal()
	case "take-remote":
		payload, err := session.ResolveTakeRemote(ctx)
		if err != nil {
			return err
		}
		return m.ApplyRemote(payload)
	default:
		logger.Warn("manual resolution required; run with --on-conflict keep-local or take-remote, or resolve via the status API")
		return nil
	}
}
