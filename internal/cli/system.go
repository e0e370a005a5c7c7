package cli

import (
	"github.com/spf13/cobra"
)

// NewSystemCmd создаёт группу команд для статусов целевых систем.
func NewSystemCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect target system health",
	}

	cmd.AddCommand(newSystemListCmd(clientFn, outputFn))

	return cmd
}

func newSystemListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List target systems and their states",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			systems, err := client.ListSystems()
			if err != nil {
				return err
			}

			headers := []string{"SYSTEM", "QUEUE", "STATE", "LAST ERROR", "CHECKED"}
			rows := make([][]string, len(systems))
			for i, s := range systems {
				rows[i] = []string{s.System, s.Queue, s.State, s.LastError, s.CheckedAt}
			}

			out.Print(headers, rows, systems)
			return nil
		},
	}
}
