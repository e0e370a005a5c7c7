package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для просмотра очередей.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect broker queues",
	}

	cmd.AddCommand(
		newQueueListCmd(clientFn, outputFn),
		newQueueUnroutedCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all bridge queues with message and consumer counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queues, err := client.ListQueues()
			if err != nil {
				return err
			}

			headers := []string{"QUEUE", "MESSAGES", "CONSUMERS", "SOURCE"}
			rows := make([][]string, len(queues))
			for i, q := range queues {
				rows[i] = []string{q.Queue, strconv.Itoa(q.Messages), strconv.Itoa(q.Consumers), q.Source}
			}

			out.Print(headers, rows, queues)
			return nil
		},
	}
}

func newQueueUnroutedCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "unrouted",
		Short: "Show the alternate exchange catch-all queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queue, err := client.UnroutedQueue()
			if err != nil {
				return err
			}

			if queue.Messages > 0 {
				out.Warn(fmt.Sprintf("Warning: %d unrouted message(s) — routing table has a gap", queue.Messages))
			}

			out.Print(
				[]string{"QUEUE", "MESSAGES", "CONSUMERS", "SOURCE"},
				[][]string{{queue.Queue, strconv.Itoa(queue.Messages), strconv.Itoa(queue.Consumers), queue.Source}},
				queue,
			)
			return nil
		},
	}
}
