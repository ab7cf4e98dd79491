package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibarr/core/internal/store"
)

func newWishlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage wishlist items",
	}
	cmd.AddCommand(newWishlistListCmd(), newWishlistAddCmd(), newWishlistRemoveCmd(), newWishlistSearchCmd())
	return cmd
}

func newWishlistListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List wishlist items",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			path := "/wishlist"
			if status != "" {
				path += "?status=" + status
			}
			var items []store.WishlistItem
			if err := c.get(context.Background(), path, &items); err != nil {
				return err
			}
			printWishlistTable(items)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (wanted/searching/found/downloading/importing/downloaded/failed)")
	return cmd
}

func printWishlistTable(items []store.WishlistItem) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tARTIST\tALBUM\tSTATUS\tPRIORITY\tAUTO")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%v\n", it.ID, it.Type, it.ArtistName, it.AlbumTitle, it.Status, it.Priority, it.AutoDownload)
	}
	tw.Flush()
}

func newWishlistAddCmd() *cobra.Command {
	var (
		itemType, artist, album, format, notes string
		auto                                   bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the wishlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			req := map[string]interface{}{
				"type":             itemType,
				"artist_name":      artist,
				"album_title":      album,
				"preferred_format": format,
				"auto_download":    auto,
				"notes":            notes,
			}
			var item store.WishlistItem
			if err := c.post(context.Background(), "/wishlist", req, &item); err != nil {
				return err
			}
			fmt.Printf("created wishlist item #%d\n", item.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&itemType, "type", "artist", "item type (artist/album/track/playlist)")
	cmd.Flags().StringVar(&artist, "artist", "", "artist name")
	cmd.Flags().StringVar(&album, "album", "", "album title")
	cmd.Flags().StringVar(&format, "format", "", "preferred audio format")
	cmd.Flags().StringVar(&notes, "notes", "", "notes (playlist URL or tags)")
	cmd.Flags().BoolVar(&auto, "auto-download", false, "download automatically once found")
	return cmd
}

func newWishlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a wishlist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if err := c.delete(context.Background(), "/wishlist/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("removed wishlist item #%s\n", args[0])
			return nil
		},
	}
}

func newWishlistSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [id]",
		Short: "Trigger an immediate search for a wishlist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if err := c.post(context.Background(), "/wishlist/"+args[0]+"/search", nil, nil); err != nil {
				return err
			}
			fmt.Printf("searching wishlist item #%s\n", args[0])
			return nil
		},
	}
}
