package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
)

// parseFlags populates Config fields from the short command-line flags. Only
// the flags it knows are looked at, so other components may define their own.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-g", "-d", "-l", "-i", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base url of the sync backend")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "address and port of the health endpoint")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
