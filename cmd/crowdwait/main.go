// Command crowdwait turns venue swipe logs into wait-time estimates.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	goflags "github.com/jessevdk/go-flags"

	// Embedded zone database for hosts without /usr/share/zoneinfo
	_ "time/tzdata"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/server"
)

// GlobalFlags are accepted by every subcommand.
type GlobalFlags struct {
	Config string `long:"config" short:"c" description:"Path to YAML config file" default:"crowdwait.yaml"`
	JSON   bool   `long:"json" description:"Output in JSON format"`
}

// commands holds the subcommands for inspection in tests.
type commands struct {
	Serve   *ServeCommand
	Refresh *RefreshCommand
	Export  *ExportCommand
	Status  *StatusCommand
}

func buildParser(out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "crowdwait"
	parser.LongDescription = "Wait-time estimates from venue swipe logs."

	cmds := &commands{
		Serve:   &ServeCommand{globals: &globals},
		Refresh: &RefreshCommand{globals: &globals, out: out},
		Export:  &ExportCommand{globals: &globals, out: out},
		Status:  &StatusCommand{globals: &globals, out: out},
	}

	parser.AddCommand("serve", "Run the scheduler and HTTP API", "Refresh on a schedule and serve estimates over HTTP and websocket.", cmds.Serve)
	parser.AddCommand("refresh", "Run one refresh cycle", "Ingest new log lines, rebuild buckets and print a summary.", cmds.Refresh)
	parser.AddCommand("export", "Print estimates or dump stored data", "Print a day's estimates as JSON, daily averages, or a JSON/CSV backup of the store.", cmds.Export)
	parser.AddCommand("status", "Show store statistics", "Show event, bucket and cursor statistics for the configured store.", cmds.Status)

	return parser, &globals, cmds
}

// runWithArgs parses args and executes the matched subcommand.
func runWithArgs(args []string, out io.Writer) error {
	parser, _, _ := buildParser(out)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

func main() {
	if err := runWithArgs(os.Args[1:], os.Stdout); err != nil {
		// go-flags already printed parse errors
		if _, ok := err.(*goflags.Error); !ok {
			log.Printf("❌ %v", err)
		}
		os.Exit(1)
	}
}

// loadConfig loads the config named by the global flags
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	return config.LoadOrDefault(globals.Config)
}

// openApp loads config, opens storage and wires the app. The caller closes
// both.
func openApp(globals *GlobalFlags) (*server.App, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	store, err := server.InitializeStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app, err := server.NewApp(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

func closeApp(app *server.App) {
	if err := app.Close(); err != nil {
		log.Printf("⚠️  Publisher close: %v", err)
	}
	if err := app.Store.Close(); err != nil {
		log.Printf("⚠️  Storage close: %v", err)
	}
}
