package client

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/runnelhq/runnel/internal/producer"
)

// NewProduceCommand constructs the `produce` command: a remote load
// generator that samples the event pool and publishes over the HTTP API.
func NewProduceCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Generate sample events and publish them to a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			intervalMs, _ := cmd.Flags().GetInt("interval-ms")
			poolPath, _ := cmd.Flags().GetString("pool")
			seed, _ := cmd.Flags().GetInt64("seed")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			pool := producer.DefaultPool()
			if poolPath != "" {
				var err error
				if pool, err = producer.LoadPool(poolPath); err != nil {
					return err
				}
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed))

			for i := 0; i < count; i++ {
				if err := cmd.Context().Err(); err != nil {
					return nil
				}
				opt := producer.Choose(pool, rng)
				body := map[string]interface{}{
					"type":       opt.Type,
					"key":        opt.Key(),
					"attributes": opt.Attributes,
				}
				if dryRun {
					b, err := json.Marshal(body)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(b))
				} else {
					var out map[string]interface{}
					if err := postJSON(baseURL(), "/v1/events", body, &out); err != nil {
						return fmt.Errorf("publish event %d: %w", i, err)
					}
				}
				if intervalMs > 0 && i+1 < count {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(time.Duration(intervalMs) * time.Millisecond):
					}
				}
			}
			if !dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "published %d events\n", count)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 100, "Number of events to emit")
	cmd.Flags().Int("interval-ms", 100, "Delay between events in milliseconds")
	cmd.Flags().String("pool", "", "JSON file with a custom sample pool")
	cmd.Flags().Int64("seed", 0, "Random seed (0 uses the clock)")
	cmd.Flags().Bool("dry-run", false, "Print events as NDJSON instead of publishing")
	return cmd
}
