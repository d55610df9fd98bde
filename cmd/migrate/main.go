// Command migrate applies or rolls back the embedded sessiond schema.
//
// Usage:
//
//	migrate [up|down]
//
// The target database is read from SESSIOND_DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"os"

	"sessiond/cmd/internal/app"
	"sessiond/cmd/internal/db"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	direction := "up"
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	cfg := app.LoadConfig()
	log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		log.Error("migrate.fail", "err", "SESSIOND_DATABASE_URL is empty")
		os.Exit(2)
	}

	if err := db.Migrate(cfg.DatabaseURL, direction); err != nil {
		log.Error("migrate.fail", "direction", direction, "err", err)
		os.Exit(1)
	}
	log.Info("migrate.done", "direction", direction)
}
