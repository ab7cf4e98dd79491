package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibarr/core/internal/store"
)

func newRecommendationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recommendations",
		Aliases: []string{"recs"},
		Short:   "Review and act on recommendations",
	}
	cmd.AddCommand(newRecsListCmd(), newRecsDismissCmd(), newRecsAddCmd())
	return cmd
}

func newRecsListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			path := "/recommendations"
			if category != "" {
				path += "?category=" + category
			}
			var recs []store.Recommendation
			if err := c.get(context.Background(), path, &recs); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tTYPE\tREASON\tCONFIDENCE")
			for _, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", r.ID, r.Category, r.Type, r.Reason, r.Confidence)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category (discover_weekly/release_radar/similar_artists/deep_cuts/genre_explore/mood_based)")
	return cmd
}

func newRecsDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [id]",
		Short: "Dismiss a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if err := c.post(context.Background(), "/recommendations/"+args[0]+"/dismiss", nil, nil); err != nil {
				return err
			}
			fmt.Printf("dismissed recommendation #%s\n", args[0])
			return nil
		},
	}
}

func newRecsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-to-wishlist [id]",
		Short: "Add a recommendation to the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if err := c.post(context.Background(), "/recommendations/"+args[0]+"/wishlist", nil, nil); err != nil {
				return err
			}
			fmt.Printf("added recommendation #%s to wishlist\n", args[0])
			return nil
		},
	}
}
