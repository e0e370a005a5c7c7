package cli

import (
	"github.com/spf13/cobra"
)

// NewRoutingCmd создаёт группу команд для просмотра маршрутизации.
func NewRoutingCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routing",
		Short: "Inspect the topic routing table",
	}

	cmd.AddCommand(
		newRoutingShowCmd(clientFn, outputFn),
		newRoutingResolveCmd(clientFn, outputFn),
	)

	return cmd
}

func newRoutingShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			table, err := client.RoutingTable()
			if err != nil {
				return err
			}

			headers := []string{"KIND", "MATCH", "SYSTEM", "QUEUE"}
			var rows [][]string

			for topic, system := range table.ExactRules {
				rows = append(rows, []string{"exact", topic, system, table.Queues[system]})
			}
			for _, rule := range table.PrefixRules {
				rows = append(rows, []string{"prefix", rule.Prefix + "*", rule.System, table.Queues[rule.System]})
			}
			rows = append(rows, []string{"default", "*", table.DefaultSystem, table.Queues[table.DefaultSystem]})

			out.Print(headers, rows, table)
			return nil
		},
	}
}

func newRoutingResolveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve TOPIC",
		Short: "Show where a topic would be routed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resolve, err := client.ResolveTopic(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"TOPIC", "SYSTEM", "QUEUE", "ROUTING KEY"},
				[][]string{{resolve.Topic, resolve.System, resolve.Queue, resolve.Key}},
				resolve,
			)
			return nil
		},
	}
}
