package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/banshee-data/lighthouse/internal/anchor"
	"github.com/banshee-data/lighthouse/internal/config"
	"github.com/banshee-data/lighthouse/internal/feed"
	"github.com/banshee-data/lighthouse/internal/geom"
	"github.com/banshee-data/lighthouse/internal/placement"
	"github.com/banshee-data/lighthouse/internal/prefs"
	"github.com/banshee-data/lighthouse/internal/version"
)

func runVersion(stdout io.Writer) error {
	_, err := fmt.Fprintln(stdout, version.String())
	return err
}

func openSource(ctx context.Context, opts options) (feed.Source, error) {
	switch {
	case opts.replay != "" && opts.ws != "":
		return nil, fmt.Errorf("-replay and -ws are mutually exclusive")
	case opts.replay != "":
		return feed.ReplayFile(opts.replay)
	case opts.ws != "":
		return feed.DialWebsocket(ctx, opts.ws)
	default:
		return nil, fmt.Errorf("run needs -replay or -ws")
	}
}

// runSession drives one controller session from the device feed until the
// feed ends or ctx is cancelled.
func runSession(ctx context.Context, cfg *config.AppConfig, opts options, stdout io.Writer) error {
	src, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer src.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	seed := cfg.GetSeed()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	device := feed.NewDevice()
	ctrl, err := anchor.New(anchor.Deps{
		Calibration: device,
		Raycaster:   device,
		Camera:      device,
		Trigger:     device,
		Store:       placement.NewRepository(store, cfg.GetSaveKey()),
	}, anchor.Options{
		CubeSize: cfg.GetCubeSize(),
		Rand:     rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		return err
	}

	stats, err := feed.Run(ctx, src, device, ctrl)
	if errors.Is(err, context.Canceled) {
		log.Printf("interrupted")
		err = nil
	}

	s := ctrl.Session()
	fmt.Fprintf(stdout, "calibrated=%v lighthouse=%q frames=%d hits=%d presses=%d placements=%d\n",
		s.Calibrated, s.CalibratedBy, stats.Frames, stats.Hits, stats.Presses, s.Placements.Len())
	if s.LoadErr != nil {
		fmt.Fprintf(stdout, "saved placements were not restored: %v\n", s.LoadErr)
	}
	return err
}

// runDump prints the stored placement set, one cube per line, or the stored
// JSON with -json.
func runDump(cfg *config.AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "Print the stored JSON, indented")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := placement.NewRepository(store, cfg.GetSaveKey()).Load()
	if err != nil {
		return err
	}

	if *asJSON {
		text, err := placement.Serialize(set)
		if err != nil {
			return err
		}
		var b bytes.Buffer
		if err := json.Indent(&b, []byte(text), "", "  "); err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, b.String())
		return err
	}

	fmt.Fprintf(stdout, "%d placements under %q\n", set.Len(), cfg.GetSaveKey())
	for i, r := range set.Records() {
		p := r.Pose()
		fmt.Fprintf(stdout, "%3d  pos=(%.3f, %.3f, %.3f)  yaw=%6.1f  color=%s\n",
			i, p.Position.X, p.Position.Y, p.Position.Z, geom.Yaw(p.Rotation), r.RGBA().Hex())
	}
	return nil
}

// runMigrate manages the sqlite preference schema.
func runMigrate(cfg *config.AppConfig, args []string, stdout io.Writer) error {
	if cfg.GetStoreBackend() != string(prefs.BackendSQLite) {
		return fmt.Errorf("migrate needs the sqlite backend, got %q", cfg.GetStoreBackend())
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: lighthouse migrate up|down|status")
	}

	store, err := prefs.OpenSQLiteUnmigrated(cfg.GetStorePath())
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "up":
		log.Printf("running migrations on %s", cfg.GetStorePath())
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		log.Printf("rolling back one migration on %s", cfg.GetStorePath())
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}

	current, dirty, err := store.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := prefs.LatestMigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "version=%d latest=%d dirty=%v\n", current, latest, dirty)
	return nil
}
