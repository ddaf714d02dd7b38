// Command lighthouse drives the cube placement controller from a recorded
// device script or a live device bridge, and inspects the saved placements.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/lighthouse/internal/config"
	"github.com/banshee-data/lighthouse/internal/prefs"
)

type options struct {
	configPath string
	replay     string
	ws         string
	store      string
	storePath  string
	key        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("lighthouse: %v", err)
	}
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("lighthouse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "JSON config file (default "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&opts.replay, "replay", "", "JSON-lines device script to replay")
	fs.StringVar(&opts.ws, "ws", "", "Websocket URL of a live device bridge")
	fs.StringVar(&opts.store, "store", "", "Preference store backend: memory, file, sqlite or redis")
	fs.StringVar(&opts.storePath, "store-path", "", "Preference file (file) or database (sqlite)")
	fs.StringVar(&opts.key, "key", "", "Preference key holding the placement set")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lighthouse [flags] [run|dump|migrate up|down|status|version]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd, rest := "run", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	if cmd == "version" {
		return runVersion(stdout)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	switch cmd {
	case "run":
		return runSession(ctx, cfg, opts, stdout)
	case "dump":
		return runDump(cfg, rest, stdout, stderr)
	case "migrate":
		return runMigrate(cfg, rest, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig reads the config file and applies flag overrides. Without
// -config the defaults file is used when it exists.
func loadConfig(opts options) (*config.AppConfig, error) {
	cfg := &config.AppConfig{}
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadAppConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Printf("loaded config from %s", path)
	}

	if opts.store != "" {
		cfg.StoreBackend = &opts.store
	}
	if opts.storePath != "" {
		cfg.StorePath = &opts.storePath
	}
	if opts.key != "" {
		cfg.SaveKey = &opts.key
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.AppConfig) (prefs.Store, error) {
	backend, err := prefs.ParseBackend(cfg.GetStoreBackend())
	if err != nil {
		return nil, err
	}
	return prefs.Open(prefs.Options{
		Backend: backend,
		Path:    cfg.GetStorePath(),
		Redis: prefs.RedisOptions{
			Addr:    cfg.GetRedisAddr(),
			Prefix:  cfg.GetRedisPrefix(),
			Timeout: cfg.GetRedisTimeout(),
		},
	})
}
