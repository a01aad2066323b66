package client

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewAlertsCommand constructs the `alerts` command group.
func NewAlertsCommand(baseURL BaseURLFunc) *cobra.Command {
	alertsCmd := &cobra.Command{Use: "alerts", Short: "Alert log operations"}
	alertsCmd.AddCommand(
		newAlertsListCommand(baseURL),
		newAlertsTailCommand(baseURL),
	)
	return alertsCmd
}

func newAlertsListCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent alerts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			var out map[string]interface{}
			if err := getJSON(baseURL(), "/v1/alerts", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum alerts to return")
	return cmd
}

func newAlertsTailCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail alerts over SSE until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			u := baseURL() + "/v1/alerts/stream"
			if from == "earliest" {
				u += "?from=earliest"
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("tail: %s", resp.Status)
			}
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				line := sc.Text()
				if data, ok := strings.CutPrefix(line, "data: "); ok {
					fmt.Fprintln(cmd.OutOrStdout(), data)
				}
			}
			if cmd.Context().Err() != nil {
				return nil
			}
			return sc.Err()
		},
	}
	cmd.Flags().String("from", "latest", "Start position: latest|earliest")
	return cmd
}
