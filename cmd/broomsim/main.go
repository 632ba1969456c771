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

	"github.com/charmbracelet/log"
	"github.com/san-kum/broomsim/internal/automation"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/export"
	"github.com/san-kum/broomsim/internal/metrics"
	"github.com/san-kum/broomsim/internal/optim"
	"github.com/san-kum/broomsim/internal/sim"
	"github.com/san-kum/broomsim/internal/storage"
	"github.com/san-kum/broomsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	seed       int64
	dt         float64
	frames     int
	name       string
	noSave     bool
	showPlot   bool
	jsonOut    bool
	numRuns    int
	// Sweep and search
	param       string
	paramMin    float64
	paramMax    float64
	numSteps    int
	grid        []string
	metric      string
	viewName    string
	outFile     string
	snapshotOut string
	exportOut   string
	series      string
	svgWidth    int
	svgHeight   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "broomsim",
		Short: "rigid-body broom and falling-debris sandbox",
		// Default to the live view when no command is given
		RunE: runLive,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".broomsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "random seed (0 keeps the config seed)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().IntVar(&frames, "frames", 600, "frames to run")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "frame duration (0 uses the fixed timestep)")
	runCmd.Flags().StringVar(&name, "name", "broom", "run name")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot population and energy")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "write the run as JSON to stdout")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the scene with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "run seeded copies of the scene in parallel",
		Args:  cobra.NoArgs,
		RunE:  benchScene,
	}
	benchCmd.Flags().IntVar(&numRuns, "runs", 4, "number of runs")
	benchCmd.Flags().IntVar(&frames, "frames", 600, "frames per run")
	benchCmd.Flags().Float64Var(&dt, "dt", 0, "frame duration (0 uses the fixed timestep)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter over a range",
		Args:  cobra.NoArgs,
		RunE:  sweepParam,
	}
	sweepCmd.Flags().StringVar(&param, "param", "restitution", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&paramMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&paramMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&frames, "frames", 600, "frames per run")
	sweepCmd.Flags().Float64Var(&dt, "dt", 0, "frame duration (0 uses the fixed timestep)")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "grid search parameters minimizing a metric",
		Args:  cobra.NoArgs,
		RunE:  searchParams,
	}
	searchCmd.Flags().StringArrayVar(&grid, "grid", nil, "parameter values, e.g. iterations=4,8,16 (repeatable)")
	searchCmd.Flags().StringVar(&metric, "metric", "max_penetration", "metric to minimize")
	searchCmd.Flags().IntVar(&frames, "frames", 600, "frames per run")
	searchCmd.Flags().Float64Var(&dt, "dt", 0, "frame duration (0 uses the fixed timestep)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "run headless and render the final frame to SVG",
		Args:  cobra.NoArgs,
		RunE:  snapshotScene,
	}
	snapshotCmd.Flags().IntVar(&frames, "frames", 600, "frames to run before the snapshot")
	snapshotCmd.Flags().StringVar(&viewName, "view", "map", "view (map or camera)")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "snapshot.svg", "output file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", "", "write this series as SVG instead ("+strings.Join(export.SeriesNames(), ", ")+")")
	plotCmd.Flags().StringVar(&outFile, "out", "", "SVG output file (default <run_id>_<series>.svg)")
	plotCmd.Flags().IntVar(&svgWidth, "width", 800, "SVG width")
	plotCmd.Flags().IntVar(&svgHeight, "height", 300, "SVG height")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("available presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "list parameters accepted by sweep and search",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range optim.ParamNames() {
				fmt.Println(p)
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage config files",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "write the selected preset (or the defaults) to a file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	})

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, sweepCmd, searchCmd, scenarioCmd, snapshotCmd,
		listCmd, plotCmd, exportJSONCmd, presetsCmd, paramsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "broomsim",
	}), nil
}

// loadConfig resolves --preset, then --config (which overrides the preset),
// then --seed.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if seed != 0 {
		cfg.Spawn.Seed = seed
	}
	return cfg, nil
}

func frameDt(cfg *config.Config) float64 {
	if dt > 0 {
		return dt
	}
	return cfg.World.FixedTimestep
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func headlessSim(cfg *config.Config, logger *log.Logger) (*sim.Simulator, error) {
	// The manual camera only moves with keyboard input; headless runs use the
	// orbit so the broom sweeps the scene.
	if cfg.Camera.Mode == config.CameraManual {
		cfg.Camera.Mode = config.CameraOrbit
	}
	s, err := sim.New(cfg, sim.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	return s, nil
}

func printMetrics(m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %.6f\n", k, m[k])
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Spawn.Seed == 0 {
		cfg.Spawn.Seed = time.Now().UnixNano()
	}
	s, err := headlessSim(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	step := frameDt(cfg)
	logger.Info("running simulation", "frames", frames, "dt", step, "seed", cfg.Spawn.Seed, "policy", cfg.Spawn.Policy)
	start := time.Now()

	result, err := s.Run(ctx, sim.FixedClock{Dt: step}, sim.RunOptions{Frames: frames, Record: true})
	if err != nil && (result == nil || !result.Canceled) {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.NewMetadata(name, cfg.Spawn.Seed, cfg.Spawn.Policy, step, result)
	if jsonOut {
		return storage.WriteJSON(os.Stdout, meta, result.Samples)
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(meta, result.Samples)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed %d frames (%.2fs simulated) in %v\n", result.Frames, result.Time, elapsed)
	if result.Canceled {
		fmt.Println("canceled")
	}
	fmt.Printf("objects in scene: %d\n", result.Stats.InScene)
	fmt.Printf("objects spawned:  %d\n", result.Stats.TotalSpawned)
	fmt.Printf("objects removed:  %d\n", result.Stats.TotalDestroyed)
	if len(result.Errors) > 0 {
		fmt.Printf("frame errors:     %d\n", len(result.Errors))
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	if showPlot {
		fmt.Println()
		fmt.Println(viz.Summary(result.Samples, 70, 10))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The terminal belongs to bubbletea; only errors are logged, to a file.
	f, err := os.OpenFile("broomsim.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	logger := log.NewWithOptions(f, log.Options{Level: log.ErrorLevel, ReportTimestamp: true})

	s, err := sim.New(cfg, sim.WithLogger(logger))
	if err != nil {
		return err
	}
	title := "broom"
	if preset != "" {
		title = preset
	}
	return viz.Run(s, title)
}

func benchScene(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Camera.Mode == config.CameraManual {
		cfg.Camera.Mode = config.CameraOrbit
	}
	seedStart := cfg.Spawn.Seed
	if seedStart == 0 {
		seedStart = 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("benchmarking %d runs of %d frames\n\n", numRuns, frames)
	start := time.Now()
	results, err := sim.NewEnsemble(cfg, numRuns, seedStart, metrics.Default, logger).Run(ctx, frameDt(cfg), frames)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tFRAMES\tSPAWNED\tREMOVED\tIN SCENE\tSUBSTEPS/FRAME\tMAX PEN")
	total := 0
	for i, r := range results {
		total += r.Frames
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.2f\t%.4f\n",
			seedStart+int64(i),
			r.Frames,
			r.Stats.TotalSpawned,
			r.Stats.TotalDestroyed,
			r.Stats.InScene,
			r.Metrics["substeps_per_frame"],
			r.Metrics["max_penetration"],
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d frames in %v (%.0f frames/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
	return nil
}

func sweepParam(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Camera.Mode == config.CameraManual {
		cfg.Camera.Mode = config.CameraOrbit
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner := automation.Runner{Logger: logger}
	results, err := runner.RunSweep(ctx, cfg, &automation.ParameterSweep{
		Param:    param,
		Min:      paramMin,
		Max:      paramMax,
		NumSteps: numSteps,
		Frames:   frames,
		Dt:       dt,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSPAWNED\tREMOVED\tKE\tMAX PEN\tSTABILITY\n", strings.ToUpper(param))
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%d\t%d\t%.2f\t%.4f\t%.3f\n",
			r.ParamValue,
			r.Result.Stats.TotalSpawned,
			r.Result.Stats.TotalDestroyed,
			r.Result.Metrics["kinetic_energy"],
			r.Result.Metrics["max_penetration"],
			r.Result.Metrics["stability"],
		)
	}
	return w.Flush()
}

// parseGrid turns "name=v1,v2" flags into search axes.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		key, list, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("grid %q: want name=v1,v2,...", spec)
		}
		var vals []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		names = append(names, strings.TrimSpace(key))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func searchParams(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Camera.Mode == config.CameraManual {
		cfg.Camera.Mode = config.CameraOrbit
	}
	if len(grid) == 0 {
		return fmt.Errorf("at least one --grid is required (parameters: %v)", optim.ParamNames())
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	best, all, err := g.Search(ctx, cfg, optim.Headless(frameDt(cfg), frames, logger), metric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
	for _, c := range all {
		cols := make([]string, len(names))
		for i, n := range names {
			cols[i] = strconv.FormatFloat(c.Params[n], 'g', 6, 64)
		}
		val := strconv.FormatFloat(c.Value, 'g', 6, 64)
		if c.Err != nil {
			val = "error: " + c.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cols, "\t"), val)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest %s = %.6f at %v\n", metric, best.Value, best.Params)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.Runner{Store: st, Logger: logger}.RunScenario(ctx, sc)
	for _, r := range results {
		fmt.Printf("%s: %d frames, %d spawned, %d removed", r.Name, r.Result.Frames, r.Result.Stats.TotalSpawned, r.Result.Stats.TotalDestroyed)
		if r.RunID != "" {
			fmt.Printf(" (run id: %s)", r.RunID)
		}
		fmt.Println()
	}
	return err
}

func snapshotScene(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := headlessSim(cfg, logger)
	if err != nil {
		return err
	}

	var view viz.View
	switch viewName {
	case "map":
		view = viz.TopDown{HalfSize: 110}
	case "camera":
		view = viz.DefaultPerspective()
	default:
		return fmt.Errorf("unknown view %q (map or camera)", viewName)
	}

	ctx, cancel := signalContext()
	defer cancel()
	if _, err := s.Run(ctx, sim.FixedClock{Dt: cfg.World.FixedTimestep}, sim.RunOptions{Frames: frames}); err != nil {
		return err
	}

	canvas := viz.NewCanvas(120, 40)
	view.Draw(canvas, s.Proxies().Snapshot(), s.Camera().Pose())
	if err := os.WriteFile(snapshotOut, []byte(export.CanvasToSVG(canvas, 4, viz.ThemeSky)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d objects in scene)\n", snapshotOut, s.Stats().InScene)
	return nil
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
	fmt.Fprintln(w, "ID\tTIME\tFRAMES\tSIM TIME\tSEED\tPOLICY\tSPAWNED\tREMOVED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2fs\t%d\t%s\t%d\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Time,
			run.Seed,
			run.Policy,
			run.Stats.TotalSpawned,
			run.Stats.TotalDestroyed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}

	if series != "" {
		svg, err := export.SamplesToSVG(samples, series, svgWidth, svgHeight, string(viz.ThemeSky.Secondary))
		if err != nil {
			return err
		}
		path := outFile
		if path == "" {
			path = fmt.Sprintf("%s_%s.svg", runID, series)
		}
		if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	}

	fmt.Printf("run %s (%d frames, seed %d)\n\n", meta.ID, meta.Frames, meta.Seed)
	plot := viz.Summary(samples, 70, 12)
	if plot == "" {
		return fmt.Errorf("run %s has too few frames to plot", runID)
	}
	fmt.Println(plot)
	fmt.Println("\nmetrics:")
	printMetrics(meta.Metrics)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}

	if exportOut != "" {
		return storage.ExportJSON(exportOut, *meta, samples)
	}
	return storage.WriteJSON(os.Stdout, *meta, samples)
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}
