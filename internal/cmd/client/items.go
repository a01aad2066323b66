package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// NewItemsCommand constructs the `items` command group over the persisted
// event store.
func NewItemsCommand(baseURL BaseURLFunc) *cobra.Command {
	itemsCmd := &cobra.Command{Use: "items", Short: "Persisted item queries"}
	itemsCmd.AddCommand(
		newItemsGetCommand(baseURL),
		newItemsRangeCommand(baseURL),
	)
	return itemsCmd
}

func newItemsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch one item by partition key and sort key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, _ := cmd.Flags().GetString("pk")
			sk, _ := cmd.Flags().GetString("sk")
			if pk == "" || sk == "" {
				return fmt.Errorf("--pk and --sk are required")
			}
			q := url.Values{}
			q.Set("pk", pk)
			q.Set("sk", sk)
			var out map[string]interface{}
			if err := getJSON(baseURL(), "/v1/items", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("pk", "", "Partition key, e.g. path#/api/users")
	cmd.Flags().String("sk", "", "Sort key (ISO8601 millisecond timestamp)")
	return cmd
}

func newItemsRangeCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Scan items for a partition key, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, _ := cmd.Flags().GetString("pk")
			if pk == "" {
				return fmt.Errorf("--pk is required")
			}
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			q.Set("pk", pk)
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}
			q.Set("limit", strconv.Itoa(limit))
			var out map[string]interface{}
			if err := getJSON(baseURL(), "/v1/items/range", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("pk", "", "Partition key")
	cmd.Flags().String("from", "", "Inclusive lower sort key bound")
	cmd.Flags().String("to", "", "Inclusive upper sort key bound")
	cmd.Flags().Int("limit", 100, "Maximum items to return")
	return cmd
}
