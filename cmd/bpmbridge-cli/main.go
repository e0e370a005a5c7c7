// bpmbridge CLI — инструмент командной строки для наблюдения
// за мостом через HTTP API.
//
// Использование:
//
//	bpmbridge [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	queue    Просмотр очередей брокера
//	routing  Просмотр таблицы маршрутизации
//	system   Статусы целевых систем
//	journal  Журнал диспетчеризации
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amekhanov/bpmbridge/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "bpmbridge",
		Short:         "bpmbridge CLI — external task bridge tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewQueueCmd(clientFn, outputFn),
		cli.NewRoutingCmd(clientFn, outputFn),
		cli.NewSystemCmd(clientFn, outputFn),
		cli.NewJournalCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
