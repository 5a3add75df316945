package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/clothsim/internal/analysis"
	"github.com/san-kum/clothsim/internal/automation"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/optim"
	"github.com/san-kum/clothsim/internal/scenario"
	"github.com/san-kum/clothsim/internal/sim"
	"github.com/san-kum/clothsim/internal/storage"
	"github.com/san-kum/clothsim/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	logFile    string
	preset     string
	dt         float64
	iterations int
	frames     int
	seed       int64
	svgPath    string
	numRuns    int
	particle   int
	axis       int
	sweeps     []string
	metricName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clothsim",
		Short: "real-time cloth and spring simulation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// the terminal views own stdout, so they log to the file only
			if cmd.Name() == "live" || !cmd.HasParent() {
				fc := logger.FileConfig{}
				if logFile != "" {
					fc = logger.DefaultFileConfig(logFile)
				}
				return logger.InitWithFileConfig(logLevel, fc, false)
			}
			return logger.Init(logLevel, logFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return viz.RunInteractive(cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".clothsim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "also log to this file")
	pf.StringVar(&preset, "preset", "", "parameter preset")
	pf.Float64Var(&dt, "dt", config.DefaultDt, "frame timestep")
	pf.IntVar(&iterations, "iterations", config.DefaultIterations, "solver iterations per frame")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario headless and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to simulate")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run a scenario with live terminal visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			reg := scenario.NewRegistry()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\n", name, reg.Description(name))
			}
			w.Flush()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list parameter presets",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", name, config.GetPreset(name).Description)
			}
			w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the energy trace of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&svgPath, "svg", "", "also write the final frame as an SVG side view")

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "run seeded copies of a scenario concurrently and report throughput",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScenario,
	}
	benchCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames per run")
	benchCmd.Flags().IntVar(&numRuns, "runs", 4, "concurrent runs")

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the effective configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and settling analysis of one particle",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&particle, "particle", -1, "particle index (default last)")
	analyzeCmd.Flags().IntVar(&axis, "axis", 1, "coordinate axis (0 x, 1 y, 2 z)")

	tuneCmd := &cobra.Command{
		Use:   "tune [scenario]",
		Short: "grid search settings for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneScenario,
	}
	tuneCmd.Flags().StringArrayVar(&sweeps, "sweep", nil, "setting=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "max_stretch", "metric to minimize")
	tuneCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames per candidate")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every entry of a yaml batch file and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(runCmd, liveCmd, scenariosCmd, presetsCmd, listCmd, plotCmd, exportCmd, benchCmd, configCmd, analyzeCmd, tuneCmd, batchCmd)

	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config if given and applies the flags the user set on
// top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("preset") {
		cfg.Preset = preset
	}
	if flags.Changed("dt") {
		cfg.Solver.Dt = float32(dt)
	}
	if flags.Changed("iterations") {
		cfg.Solver.Iterations = iterations
	}
	if flags.Lookup("frames") != nil && flags.Changed("frames") {
		cfg.Run.Frames = frames
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Run.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scenarioArg(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Run.Scenario = args[0]
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scenarioArg(cfg, args)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := scenario.New(cfg, nil)
	if err := exp.Setup(); err != nil {
		return err
	}
	defer exp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s (%s preset, %d frames)...\n", cfg.Run.Scenario, cfg.Preset, cfg.Run.Frames)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	logger.Info("run stored", zap.String("run", runID), zap.Int("frames", result.StepsTaken), zap.Duration("elapsed", elapsed))

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", result.StepsTaken)
	if len(result.Energy) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(result.Energy, asciigraph.Height(8), asciigraph.Width(70), asciigraph.Caption("kinetic energy")))
	}
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %-16s %.6f\n", name, result.Metrics[name])
	}
	if len(result.Errors) > 0 {
		fmt.Printf("\n%d frame errors, first: %v\n", len(result.Errors), result.Errors[0])
	}
	for _, c := range exp.Scene().Cloths {
		if c.Err() != nil {
			fmt.Printf("cloth %s: %v\n", c.Name(), c.Err())
		}
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scenarioArg(cfg, args)
	return viz.RunLive(cfg, cfg.Run.Scenario)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tPRESET\tTIME\tFRAMES\tDT\tERRORS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4fs\t%d\n",
			run.ID,
			run.Scenario,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Dt,
			run.Errors,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	_, energy, err := st.LoadTrace(args[0])
	if err != nil {
		return err
	}
	if len(energy) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("frames: %d\n\n", len(energy))
	fmt.Println(asciigraph.Plot(energy, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("kinetic energy")))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if err := st.Export(os.Stdout, args[0]); err != nil {
		return err
	}
	if svgPath == "" {
		return nil
	}

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	snaps, _, err := st.LoadSnapshots(args[0])
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("run %s has no recorded frames", meta.ID)
	}

	// rebuild the scene only for its edge list
	cfg := config.DefaultConfig()
	cfg.Preset = meta.Preset
	cfg.Run.Seed = meta.Seed
	sc, err := scenario.NewRegistry().Build(meta.Scenario, cfg)
	if err != nil {
		return err
	}
	sc.World.Close()

	svg := storage.SnapshotToSVG(snaps[len(snaps)-1], sc.Edges, 640, 480)
	return os.WriteFile(svgPath, []byte(svg), 0644)
}

func benchScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scenarioArg(cfg, args)

	reg := scenario.NewRegistry()
	factory := func(s int64) (*sim.World, error) {
		c := *cfg
		c.Run.Seed = s
		sc, err := reg.Build(c.Run.Scenario, &c)
		if err != nil {
			return nil, err
		}
		return sc.World, nil
	}

	fmt.Printf("benchmarking %s: %d runs x %d frames\n\n", cfg.Run.Scenario, numRuns, cfg.Run.Frames)
	start := time.Now()
	results, err := sim.NewEnsemble(factory, numRuns, cfg.Run.Seed).Run(context.Background(), sim.RunConfig{
		Dt:     cfg.Solver.Dt,
		Frames: cfg.Run.Frames,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tFRAMES\tERRORS\tFINAL ENERGY")
	total := 0
	for i, r := range results {
		final := 0.0
		if len(r.Energy) > 0 {
			final = r.Energy[len(r.Energy)-1]
		}
		total += r.StepsTaken
		fmt.Fprintf(w, "%d\t%d\t%d\t%.6f\n", i, r.StepsTaken, len(r.Errors), final)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d frames in %v (%.0f frames/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	snaps, times, err := st.LoadSnapshots(args[0])
	if err != nil {
		return err
	}
	if len(snaps) < 2 {
		return fmt.Errorf("run %s has too few recorded frames", meta.ID)
	}
	p := particle
	if p < 0 {
		p = len(snaps[0]) - 1
	}

	trace := analysis.Trace(snaps, p, axis)
	sampleDt := times[1] - times[0]
	final := trace[len(trace)-1]
	crossings := analysis.Crossings(trace, times, final)

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Scenario)
	fmt.Printf("particle %d, axis %d, %d samples every %.4fs\n\n", p, axis, len(trace), sampleDt)
	fmt.Printf("dominant frequency: %.3f Hz\n", analysis.DominantFrequency(trace, sampleDt))
	if period := analysis.Period(crossings); period > 0 {
		fmt.Printf("swing period:       %.3f s\n", period)
	}
	fmt.Printf("settle time (1cm):  %.3f s\n", analysis.SettleTime(trace, times, 0.01))
	fmt.Println()
	fmt.Println(asciigraph.Plot(trace, asciigraph.Height(8), asciigraph.Width(70), asciigraph.Caption(fmt.Sprintf("particle %d axis %d", p, axis))))

	other := 0
	if axis == 0 {
		other = 1
	}
	if portrait := analysis.NewPortrait(snaps, p, other, axis); portrait != nil {
		fmt.Println()
		fmt.Print(analysis.PortraitToASCII(portrait, 60, 16))
	}
	return nil
}

// parseSweep reads "name=v1,v2,...".
func parseSweep(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("sweep %q: want name=v1,v2", s)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("sweep %q: %w", s, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

func tuneScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scenarioArg(cfg, args)
	cfg.Run.RecordEvery = 0
	if len(sweeps) == 0 {
		return fmt.Errorf("at least one --sweep is required (settings: %s)", strings.Join(config.Knobs(), ", "))
	}

	var names []string
	var ranges [][]float64
	for _, s := range sweeps {
		name, vals, err := parseSweep(s)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Printf("tuning %s for lowest %s...\n", cfg.Run.Scenario, metricName)
	best, err := g.Search(ctx, cfg, nil, metricName)
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d, skipped %d\n", best.Evaluated, best.Skipped)
	fmt.Printf("best %s: %.6f\n", metricName, best.Value)
	for _, name := range sortedKeys(best.Params) {
		fmt.Printf("  %-18s %g\n", name, best.Params[name])
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	out, err := automation.RunBatch(ctx, b, cfg, storage.New(dataDir))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tPRESET\tSEED\tERRORS\tENERGY")
	for _, o := range out {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.6f\n", o.RunID, o.Scenario, o.Preset, o.Seed, o.Errors, o.Metrics["energy"])
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
