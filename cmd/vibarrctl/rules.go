package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibarr/core/internal/store"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage automation rules",
	}
	cmd.AddCommand(newRulesListCmd(), newRulesCreateCmd())
	return cmd
}

func newRulesListCmd() *cobra.Command {
	var trigger string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List enabled rules for a trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if trigger == "" {
				return fmt.Errorf("--trigger is required")
			}
			c := clientFor(cmd)
			var rules []store.AutomationRule
			if err := c.get(context.Background(), "/rules?trigger="+trigger, &rules); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tENABLED\tTRIGGERED")
			for _, r := range rules {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%v\t%d\n", r.ID, r.Name, r.Priority, r.Enabled, r.TriggerCount)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger kind (new_release/recommendation_generated/download_completed/wishlist_item_added/playlist_url_check)")
	return cmd
}

func newRulesCreateCmd() *cobra.Command {
	var (
		name, trigger, conditions, actions string
		priority                           int
		enabled                            bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an automation rule from JSON condition/action bodies",
		Long: `Creates a rule whose conditions and actions are raw JSON arrays, matching
the shape the rules engine evaluates (spec §4.G). Example:

  vibarrctl rules create --name "auto-grab-follows" --trigger new_release \
    --conditions '[{"field":"artist_in_library","operator":"equals","value":true}]' \
    --actions '[{"kind":"start_download"}]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(conditions)) {
				return fmt.Errorf("--conditions must be valid JSON")
			}
			if !json.Valid([]byte(actions)) {
				return fmt.Errorf("--actions must be valid JSON")
			}
			c := clientFor(cmd)
			req := map[string]interface{}{
				"name":       name,
				"trigger":    trigger,
				"conditions": json.RawMessage(conditions),
				"actions":    json.RawMessage(actions),
				"priority":   priority,
				"enabled":    enabled,
			}
			var rule store.AutomationRule
			if err := c.post(context.Background(), "/rules", req, &rule); err != nil {
				return err
			}
			fmt.Printf("created rule #%d (%s)\n", rule.ID, rule.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "rule name")
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger kind")
	cmd.Flags().StringVar(&conditions, "conditions", "[]", "JSON array of conditions")
	cmd.Flags().StringVar(&actions, "actions", "[]", "JSON array of actions")
	cmd.Flags().IntVar(&priority, "priority", 0, "evaluation priority, higher runs first")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the rule is active")
	return cmd
}
