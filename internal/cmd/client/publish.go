package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewPublishCommand constructs the `publish` command appending a single
// event to the ingest stream.
func NewPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event to the ingest stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			evType, _ := cmd.Flags().GetString("type")
			key, _ := cmd.Flags().GetString("key")
			attrPairs, _ := cmd.Flags().GetStringArray("attr")
			attrsJSON, _ := cmd.Flags().GetString("attrs-json")

			attrs := map[string]interface{}{}
			if attrsJSON != "" {
				if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
					return fmt.Errorf("invalid --attrs-json: %w", err)
				}
			}
			for _, pair := range attrPairs {
				k, v, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid --attr %q; expected key=value", pair)
				}
				// Numbers stay numbers so aggregation predicates see them.
				var num json.Number
				if err := json.Unmarshal([]byte(v), &num); err == nil {
					attrs[k] = num
				} else {
					attrs[k] = v
				}
			}
			if evType == "" || len(attrs) == 0 {
				return fmt.Errorf("--type and at least one attribute are required")
			}

			body := map[string]interface{}{"type": evType, "key": key, "attributes": attrs}
			var out map[string]interface{}
			if err := postJSON(baseURL(), "/v1/events", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("type", "", "Event type, e.g. http or inventory")
	cmd.Flags().String("key", "", "Partition key (defaults to empty, partition 0)")
	cmd.Flags().StringArray("attr", nil, "Attribute as key=value; repeatable")
	cmd.Flags().String("attrs-json", "", "Attributes as a JSON object")
	return cmd
}
