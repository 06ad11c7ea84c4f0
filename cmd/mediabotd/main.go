// Command mediabotd runs the mediabot daemon in the foreground without the
// CLI wrapper. It is the entrypoint used by service managers (systemd,
// containers) where the daemon lifecycle is supervised externally.
package main

import (
	"context"
	"flag"
	"log"

	"mediabot/internal/config"
	"mediabot/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level (debug|info|warn|error)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: *logLevel,
	}); err != nil {
		log.Fatalf("run daemon: %v", err)
	}
}
