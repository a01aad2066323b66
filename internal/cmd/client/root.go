package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command carrying every client command
// group, for embedding in other binaries.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "runnel",
		Short: "Runnel client commands",
	}
	root.AddCommand(
		NewAlertsCommand(baseURL),
		NewItemsCommand(baseURL),
		NewDLQCommand(baseURL),
		NewStatsCommand(baseURL),
		NewPublishCommand(baseURL),
		NewProduceCommand(baseURL),
	)
	return root
}
