package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"time"

	"github.com/google/uuid"

	"crosswarped.com/lattice"
	"crosswarped.com/lattice/internal/logging"
	"crosswarped.com/lattice/internal/pattern"
	"crosswarped.com/lattice/internal/store"
	"crosswarped.com/lattice/pkg/primitives"
)

func main() {

	patternFile := flag.String("pattern", "", "The TOML pattern file to learn rules from")
	radius := flag.Int("radius", 4, "The Manhattan radius of the generated lattice")
	budget := flag.Int("budget", lattice.DefaultStepBudget, "The maximum number of solver steps")
	seed := flag.Uint64("seed", 0, "The random seed (0 picks one from the clock)")

	dbPath := flag.String("db", "", "The SQLite database to save runs to")
	list := flag.Bool("list", false, "List the runs saved in -db and exit")
	show := flag.String("show", "", "Print the run with this ID from -db and exit")

	timeout := flag.Duration("timeout", 1*time.Minute, "The timeout for the generator")

	profile := flag.Bool("profile", false, "Profile the generator")
	profileFile := flag.String("profile-file", "cpu.pprof", "The file to write the CPU profile to")
	memoryProfileFile := flag.String("memory-profile-file", "mem.pprof", "The file to write the memory profile to")

	flag.Parse()

	logger, err := logging.FromEnv("latticecli")
	if err != nil {
		fmt.Println("Error configuring logging:", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var db *store.DB
	if *dbPath != "" {
		if db, err = store.Open(*dbPath); err != nil {
			logger.Fatal().Err(err).Msg("open database")
		}
		defer db.Close()
	}

	if *list || *show != "" {
		if db == nil {
			fmt.Println("-list and -show need -db")
			os.Exit(1)
		}
		if *list {
			err = listRuns(ctx, db)
		} else {
			err = showRun(ctx, db, *show)
		}
		if err != nil {
			logger.Fatal().Err(err).Send()
		}
		return
	}

	if *patternFile == "" {
		fmt.Println("-pattern is required")
		os.Exit(1)
	}
	p, err := pattern.Load(*patternFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *patternFile).Msg("load pattern")
	}
	logger.Info().Str("pattern", p.Name).Int("cells", len(p.Example)).Int("values", len(p.Palette)).Msg("pattern loaded")

	rng, usedSeed := seededRand(*seed)
	logger.Info().Uint64("seed", usedSeed).Msg("rerun with -seed to reproduce")

	var mf *os.File
	if *profile {
		f, err := os.Create(*profileFile)
		if err != nil {
			fmt.Println("Error creating profile file:", err)
			os.Exit(1)
		}
		defer f.Close()

		mf, err = os.Create(*memoryProfileFile)
		if err != nil {
			fmt.Println("Error creating memory profile file:", err)
			os.Exit(1)
		}
		defer mf.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Println("Error starting CPU profile:", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	gen := lattice.CreateGenerator(
		p.Example,
		rng,
		lattice.GeneratorParams{
			Offsets:     p.Offsets,
			Palette:     p.Palette,
			ExcludeVoid: p.ExcludeVoid,
			Radius:      *radius,
			StepBudget:  *budget,
			SeedValue:   p.Seed,
			Logger:      &logger,
		},
	)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	l, buildErr := gen.Build(ctx)

	if mf != nil {
		pprof.WriteHeapProfile(mf)
	}

	if buildErr != nil {
		fmt.Println("No lattice:", lattice.StatusOf(buildErr))
		logger.Error().Err(buildErr).Send()
		os.Exit(2)
	}

	printLayers(l, p.Glyph)
	fmt.Println(l.DebugString())

	if db != nil {
		run := &store.Run{
			Pattern:    p.Name,
			Radius:     l.Radius(),
			Seed:       l.Stats().Seed,
			Steps:      l.Stats().Steps,
			Backtracks: l.Stats().Backtracks,
			Cells:      l.Placements(),
		}
		if err := db.SaveRun(ctx, run); err != nil {
			logger.Fatal().Err(err).Msg("save run")
		}
		logger.Info().Stringer("run", run.ID).Msg("run saved")
	}
}

// seededRand returns a generator fully determined by seed. A zero seed is
// replaced by one taken from the clock, which is returned for logging.
func seededRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1)), seed
}

// printLayers prints every z slice that holds at least one cell, bottom up.
func printLayers(l *lattice.Lattice, glyph func(primitives.Value) rune) {
	minZ, maxZ := 0, 0
	for pos := range l.Entries() {
		minZ = min(minZ, pos.Z)
		maxZ = max(maxZ, pos.Z)
	}
	for z := minZ; z <= maxZ; z++ {
		fmt.Printf("-------------------- z=%d\n", z)
		fmt.Println(l.Layer(z, glyph))
	}
}

func listRuns(ctx context.Context, db *store.DB) error {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-16s radius=%-3d cells=%-5d %s\n", r.ID, r.Pattern, r.Radius, r.Cells, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func showRun(ctx context.Context, db *store.DB, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", rawID, err)
	}
	run, err := db.LoadRun(ctx, id)
	if err != nil {
		return err
	}
	printLayers(lattice.FromPlacements(run.Radius, run.Cells), lattice.DefaultGlyph)
	fmt.Printf("pattern=%s seed=%v steps=%d backtracks=%d\n", run.Pattern, run.Seed, run.Steps, run.Backtracks)
	return nil
}
