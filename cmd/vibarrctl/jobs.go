package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibarr/core/internal/scheduler"
)

var jobNames = []string{
	scheduler.JobSyncPlexLibrary,
	scheduler.JobSyncListeningHistory,
	scheduler.JobCheckNewReleases,
	scheduler.JobGenerateRecommendations,
	scheduler.JobGenerateReleaseRadar,
	scheduler.JobUpdateTasteProfile,
	scheduler.JobProcessWishlist,
	scheduler.JobCheckDownloadStatus,
	scheduler.JobCheckPlaylistURLs,
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and trigger scheduled jobs",
	}
	cmd.AddCommand(newJobsListCmd(), newJobsRunCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range jobNames {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newJobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [name]",
		Short: "Trigger a job to run immediately, outside its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if err := c.post(context.Background(), "/jobs/"+args[0]+"/run", nil, nil); err != nil {
				return err
			}
			fmt.Printf("queued job %q\n", args[0])
			return nil
		},
	}
}
