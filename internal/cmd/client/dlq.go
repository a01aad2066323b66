package client

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDLQCommand constructs the `dlq` command group for inspecting dead
// letters per consumer group.
func NewDLQCommand(baseURL BaseURLFunc) *cobra.Command {
	dlqCmd := &cobra.Command{Use: "dlq", Short: "Dead letter inspection"}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters for a consumer group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			group, _ := cmd.Flags().GetString("group")
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			q.Set("group", group)
			q.Set("limit", strconv.Itoa(limit))
			var out map[string]interface{}
			if err := getJSON(baseURL(), "/v1/dlq", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	listCmd.Flags().String("group", "persist", "Consumer group: persist|aggregate|notify")
	listCmd.Flags().Int("limit", 50, "Maximum dead letters to return")
	dlqCmd.AddCommand(listCmd)
	return dlqCmd
}

// NewStatsCommand constructs the `stats` command reporting per-partition
// sequence ranges for every stream.
func NewStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stream statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]interface{}
			if err := getJSON(baseURL(), "/v1/streams/stats", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}
