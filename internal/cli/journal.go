package cli

import (
	"github.com/spf13/cobra"
)

// NewJournalCmd создаёт группу команд для журнала диспетчеризации.
func NewJournalCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the dispatch journal",
	}

	cmd.AddCommand(newJournalRecentCmd(clientFn, outputFn))

	return cmd
}

func newJournalRecentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent dispatch outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.RecentJournal(limit)
			if err != nil {
				return err
			}

			headers := []string{"TASK", "TOPIC", "SYSTEM", "OUTCOME", "ERROR", "CREATED"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.TaskID, e.Topic, e.System, e.Outcome, e.Error, e.CreatedAt}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of entries")

	return cmd
}
