package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/automation"
	"github.com/san-kum/fvsim/internal/behavior"
	"github.com/san-kum/fvsim/internal/config"
	"github.com/san-kum/fvsim/internal/export"
	"github.com/san-kum/fvsim/internal/metrics"
	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/scene"
	"github.com/san-kum/fvsim/internal/solver"
	"github.com/san-kum/fvsim/internal/store"
	"github.com/san-kum/fvsim/internal/viz"
)

// Scenes above this size skip the O(n²) separation metric.
const maxSeparationParticles = 2000

var (
	dataDir    string
	configFile string
	preset     string
	ticks      int
	workers    int
	record     int
	verbose    bool
	noSave     bool
	plot       bool
	exportCSV  string
	exportJSON string
	frameRate  int
	benchSize  int
	benchTicks int
	format     string
	outPath    string
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	log = logrus.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fvsim",
		Short:         "parallel particle simulation with camera-overlap repulsion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fvsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and per-step partition checks")

	addSceneFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
		cmd.Flags().IntVar(&ticks, "ticks", config.DefaultTicks, "number of ticks")
		cmd.Flags().IntVar(&workers, "workers", 0, "partition count (0 = one per CPU)")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scene and store the result",
		Args:  cobra.NoArgs,
		RunE:  runScene,
	}
	addSceneFlags(runCmd)
	runCmd.Flags().IntVar(&record, "record", 10, "record a frame every n ticks (0 = none)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&plot, "plot", true, "plot metric histories")
	runCmd.Flags().StringVar(&exportCSV, "export-csv", "", "also write frames as csv to this path")
	runCmd.Flags().StringVar(&exportJSON, "export-json", "", "also write the run as json to this path")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scene with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "ticks per second")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time a tick at increasing worker counts",
		Args:  cobra.NoArgs,
		RunE:  benchScene,
	}
	benchCmd.Flags().IntVar(&benchSize, "particles", 1000, "cloud size")
	benchCmd.Flags().IntVar(&benchTicks, "ticks", 20, "ticks per worker count")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the metric histories of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as json or csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json, csv or svg")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (json defaults to stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset scenes",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file to start from",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "pool size (0 = one per CPU)")
	batchCmd.Flags().IntVar(&record, "record", 10, "record a frame every n ticks (0 = none)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a scene once per value of a parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "friction", fmt.Sprintf("parameter to vary %v", automation.SweepParams))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.9, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1.0, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, listCmd, plotCmd, exportCmd, presetsCmd, initCmd, batchCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadConfig resolves --config, then --preset, then the defaults, and
// applies explicit flag overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if c.Name == "" {
			c.Name = filepath.Base(configFile)
		}
		cfg = c
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (try: fvsim presets)", preset)
		}
	default:
		cfg = config.DefaultConfig()
		cfg.Name = "default"
	}

	if cmd.Flags().Changed("ticks") {
		cfg.Ticks = ticks
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if verbose {
		cfg.CheckPartitions = true
	}
	return cfg, cfg.Validate()
}

func newPool(cfg *config.Config) (*solver.Pool, error) {
	n := cfg.Workers
	if n == 0 {
		n = solver.DefaultWorkers()
	}
	return solver.NewPool(n, solver.WithPoolLogger(log))
}

func addMetrics(s *scene.Scene) {
	s.AddMetric(metrics.NewKineticEnergy())
	s.AddMetric(metrics.NewSpread())
	if n := len(s.Particles()); n >= 2 && n <= maxSeparationParticles {
		s.AddMetric(metrics.NewMinSeparation())
	}
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	s, err := scene.Build(cfg, pool, log)
	if err != nil {
		return err
	}
	addMetrics(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s: %d particles, %d ticks\n", cfg.Name, len(s.Particles()), cfg.Ticks)
	start := time.Now()
	result, runErr := s.Run(ctx, scene.RunConfig{Ticks: cfg.Ticks, RecordEvery: record})
	elapsed := time.Since(start)
	if result.TicksTaken == 0 {
		return runErr
	}

	meta := store.NewMetadata(cfg.Name, result)
	meta.Particles = len(s.Particles())
	meta.Workers = s.Integrator().Workers()
	meta.Friction = cfg.Friction
	if eye, ok := s.Viewpoint(); ok {
		meta.Viewpoint = &[3]float64{eye.X, eye.Y, eye.Z}
	}

	if !noSave {
		st := store.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(meta, result)
		if err != nil {
			return err
		}
		meta.ID = runID
		fmt.Printf("run id: %s\n", runID)
	}
	if exportCSV != "" {
		if err := store.ExportCSV(exportCSV, result); err != nil {
			return err
		}
		log.WithField("path", exportCSV).Info("frames exported")
	}
	if exportJSON != "" {
		if err := writeJSON(exportJSON, meta, result); err != nil {
			return err
		}
		log.WithField("path", exportJSON).Info("run exported")
	}

	fmt.Printf("completed %d ticks in %v (%v/tick)\n", result.TicksTaken, elapsed, elapsed/time.Duration(result.TicksTaken))
	fmt.Println("\nmetrics:")
	for _, m := range s.Metrics() {
		fmt.Printf("  %s: %.6g\n", m.Name(), m.Value())
	}
	if plot {
		fmt.Println()
		fmt.Print(viz.PlotMetrics(result.Metrics, 80, 10))
	}
	return runErr
}

func writeJSON(path string, meta store.RunMetadata, result *scene.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.ExportJSON(f, meta, result)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The alternate screen owns the terminal.
	log.SetOutput(io.Discard)

	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	s, err := scene.Build(cfg, pool, log)
	if err != nil {
		return err
	}
	addMetrics(s)
	return viz.Run(s, cfg.Name, frameRate)
}

func benchScene(cmd *cobra.Command, args []string) error {
	base := particle.Cloud(benchSize, r3.Vec{}, config.DefaultRadius, 1)

	counts := []int{1}
	for n := 2; n <= 2*runtime.NumCPU(); n *= 2 {
		counts = append(counts, n)
	}

	fmt.Printf("benchmarking %d particles, %d ticks\n\n", benchSize, benchTicks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tTIME/TICK\tSPEEDUP\tDRIFT")

	var baseline []*particle.Particle
	var first time.Duration
	for _, n := range counts {
		ps, perTick, err := benchRun(base, n)
		if err != nil {
			return err
		}
		if baseline == nil {
			baseline, first = ps, perTick
		}
		fmt.Fprintf(w, "%d\t%v\t%.2fx\t%.3g\n", n, perTick, float64(first)/float64(perTick), drift(baseline, ps))
	}
	return w.Flush()
}

// benchRun advances a copy of base with n partitions and returns the final
// particles and the mean tick time.
func benchRun(base []*particle.Particle, n int) ([]*particle.Particle, time.Duration, error) {
	pool, err := solver.NewPool(n, solver.WithPoolLogger(log))
	if err != nil {
		return nil, 0, err
	}
	defer pool.Close()

	ps := particle.Clone(base)
	forces, err := solver.New(pool, behavior.NewCameraOverlap(r3.Vec{Z: -3 * config.DefaultRadius}), ps, solver.WithWorkers(n), solver.WithLogger(log))
	if err != nil {
		return nil, 0, err
	}
	integ, err := solver.New(pool, behavior.NewVerlet(), ps, solver.WithWorkers(n), solver.WithLogger(log))
	if err != nil {
		return nil, 0, err
	}
	s, err := scene.New(ps, integ, forces)
	if err != nil {
		return nil, 0, err
	}
	s.SetLogger(log)

	start := time.Now()
	if _, err := s.Run(context.Background(), scene.RunConfig{Ticks: benchTicks}); err != nil {
		return nil, 0, err
	}
	return ps, time.Since(start) / time.Duration(max(benchTicks, 1)), nil
}

// drift is the largest position difference between two runs of the same
// scene.
func drift(a, b []*particle.Particle) float64 {
	d := 0.0
	for i := range a {
		d = math.Max(d, r3.Norm(r3.Sub(a[i].Position, b[i].Position)))
	}
	return d
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := store.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tPARTICLES\tWORKERS\tTICKS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Workers,
			run.Ticks,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, err := store.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("ticks: %d\n\n", meta.Ticks)
	fmt.Print(viz.PlotMetrics(meta.History, 80, 10))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	result := &scene.Result{Frames: frames, Metrics: meta.History, TicksTaken: meta.Ticks}

	switch format {
	case "json":
		if outPath == "" {
			return store.ExportJSON(os.Stdout, *meta, result)
		}
		err = writeJSON(outPath, *meta, result)
	case "csv":
		if outPath == "" {
			outPath = runID + ".csv"
		}
		err = store.ExportCSV(outPath, result)
	case "svg":
		if outPath == "" {
			outPath = runID + ".svg"
		}
		err = writeSVG(outPath, meta, frames)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", runID, outPath)
	return nil
}

func writeSVG(path string, meta *store.RunMetadata, frames []scene.Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("run %s has no recorded frames", meta.ID)
	}
	eye := r3.Vec{Z: -3 * config.DefaultRange}
	if v := meta.Viewpoint; v != nil {
		eye = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	const w, h = 800, 600
	return export.TrajectorySVG(f, frames, export.FitProjector(frames, eye, w, h), w, h)
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	n := workers
	if n == 0 {
		n = solver.DefaultWorkers()
	}
	pool, err := solver.NewPool(n, solver.WithPoolLogger(log))
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, runErr := automation.RunScenario(ctx, sc, pool, log, record)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSCENE\tTICKS\tKINETIC\tRUN ID")
	for i, r := range results {
		meta := store.NewMetadata(r.Name, r.Result)
		meta.Particles = len(r.Scene.Particles())
		meta.Workers = r.Scene.Integrator().Workers()
		meta.Friction = r.Config.Friction
		runID, err := st.Save(meta, r.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.6g\t%s\n", i+1, r.Name, r.Result.TicksTaken, meta.Metrics["kinetic_energy"], runID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sw := &automation.Sweep{Base: cfg, Param: sweepParam, Min: sweepMin, Max: sweepMax, Steps: sweepSteps}
	results, err := automation.RunSweep(ctx, sw, pool, log)
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %s over %s, %d ticks each\n\n", sweepParam, cfg.Name, cfg.Ticks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tKINETIC\tSPREAD\tSTABLE\n", strings.ToUpper(sweepParam))
	spreads := make([]float64, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.6g\t%.6g\t%v\n", r.Value, r.KineticEnergy, r.Spread, r.Stable)
		spreads = append(spreads, r.Spread)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(spreads) > 1 {
		fmt.Println()
		fmt.Print(viz.PlotSeries("spread vs "+sweepParam, spreads, 60, 8))
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tCAMERA\tFRICTION")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		ps, err := scene.BuildParticles(cfg)
		if err != nil {
			return err
		}
		camera := "off"
		if cfg.CameraOverlap.Enabled {
			v := cfg.CameraOverlap.Viewpoint
			camera = fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%g\n", name, len(ps), camera, cfg.Friction)
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return fmt.Errorf("unknown preset %q", preset)
		}
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}
