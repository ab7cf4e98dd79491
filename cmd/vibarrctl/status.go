package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether vibarrd is reachable and ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			var status map[string]string
			if err := c.get(context.Background(), "/health/ready", &status); err != nil {
				return err
			}
			fmt.Printf("vibarrd: %s\n", status["status"])
			return nil
		},
	}
}
