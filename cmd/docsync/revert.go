package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/docsync/internal/docsync"
)

var (
	revertPath string
	revertAll  bool
	revertDry  bool
)

var revertCmd = &cobra.Command{
	Use:   "revert <commit>",
	Short: "Restore a file or the whole snapshot to a past revision",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevert,
}

func init() {
	revertCmd.Flags().StringVarP(&revertPath, "path", "p", "", "revert only this file")
	revertCmd.Flags().BoolVar(&revertAll, "all", false, "revert every file touched by the commit")
	revertCmd.Flags().BoolVar(&revertDry, "dry-run", false, "only show which paths the revert would touch")
	rootCmd.AddCommand(revertCmd)
}

func runRevert(cmd *cobra.Command, args []string) error {
	if revertPath == "" && !revertAll {
		return fmt.Errorf("pass --path <file> or --all")
	}
	if revertPath != "" && revertAll {
		return fmt.Errorf("--path and --all are mutually exclusive")
	}

	client, err := newRemoteClient()
	if err != nil {
		return err
	}
	commitID := args[0]
	handle := docsync.Handle{ContainerID: cfg.ContainerID, Path: revertPath}
	ctx := cmd.Context()

	if revertDry {
		info, err := client.CommitInfo(ctx, handle, commitID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "commit %s touches %d path(s):\n", shortCommit(info.CommitID), len(info.Paths))
		for _, path := range info.Paths {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
		}
		return nil
	}

	scope := docsync.RevertEntireSnapshot
	if revertPath != "" {
		scope = docsync.RevertSingleFile
	}
	affected, err := client.Revert(ctx, handle, commitID, scope)
	if err != nil {
		return err
	}

	okColor := color.New(color.FgGreen)
	fmt.Fprintf(cmd.OutOrStdout(), "%s reverted %d path(s) to %s:\n",
		okColor.Sprint("ok"), len(affected), shortCommit(commitID))
	for _, path := range affected {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
	}
	return nil
}
