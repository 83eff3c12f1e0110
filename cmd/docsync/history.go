package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/docsync/internal/docsync"
)

var (
	historyLimit int
	historyShow  string
)

var historyCmd = &cobra.Command{
	Use:   "history <remote-path>",
	Short: "List a document's revisions, or show one revision's content",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of revisions to list")
	historyCmd.Flags().StringVar(&historyShow, "show", "", "print the content of the given commit instead of listing")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, err := newRemoteClient()
	if err != nil {
		return err
	}
	handle := docsync.Handle{ContainerID: cfg.ContainerID, Path: args[0]}
	ctx := cmd.Context()

	if historyShow != "" {
		payload, err := client.ReadRevision(ctx, handle, historyShow)
		if err != nil {
			return err
		}
		if payload.Kind == docsync.KindBlob {
			return fmt.Errorf("commit %s holds binary content (%d bytes), not printing", historyShow, len(payload.Data))
		}
		fmt.Fprint(cmd.OutOrStdout(), payload.Text)
		return nil
	}

	revisions, err := client.ListRevisions(ctx, handle, historyLimit)
	if err != nil {
		return err
	}
	if len(revisions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no revisions")
		return nil
	}

	commitColor := color.New(color.FgYellow)
	authorColor := color.New(color.FgCyan)
	for _, rev := range revisions {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s\n",
			commitColor.Sprint(shortCommit(rev.CommitID)),
			rev.Date,
			authorColor.Sprint(rev.AuthorName),
			rev.Message)
	}
	return nil
}

func shortCommit(commitID string) string {
	if len(commitID) > 8 {
		return commitID[:8]
	}
	return commitID
}
