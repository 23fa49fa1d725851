package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/san-kum/dctl/internal/compare"
	"github.com/san-kum/dctl/internal/config"
	"github.com/san-kum/dctl/internal/control"
	"github.com/san-kum/dctl/internal/experiment"
	"github.com/san-kum/dctl/internal/logging"
	"github.com/san-kum/dctl/internal/optim"
	"github.com/san-kum/dctl/internal/storage"
)

var (
	presets   []string
	kc        float64
	ti        float64
	steps     int
	mode      string
	freeze    string
	validate  bool
	dryRun    bool
	threshold float64
	columns   []string
	writeTo   string
	kcGrid    []float64
	tiGrid    []float64
	metric    string

	log *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dctl",
		Short:         "discrete PI control lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			log = l
			return nil
		},
	}

	rootCmd.PersistentFlags().String("data", ".dctl", "data directory")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	viper.SetEnvPrefix("DCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	runCmd := &cobra.Command{
		Use:   "run [scenario.yaml...]",
		Short: "run closed-loop scenarios",
		RunE:  runScenarios,
	}
	runCmd.Flags().StringSliceVar(&presets, "preset", nil, "run a preset scenario (repeatable)")
	runCmd.Flags().Float64Var(&kc, "kc", config.DefaultKc, "controller gain")
	runCmd.Flags().Float64Var(&ti, "ti", config.DefaultTi, "integral time, 0 for proportional only")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of cycles")
	runCmd.Flags().StringVar(&mode, "mode", "auto", "initial controller mode")
	runCmd.Flags().StringVar(&freeze, "freeze", "no_freeze", "default anti-windup policy")
	runCmd.Flags().BoolVar(&validate, "validate", false, "stop on NaN or Inf")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not store the runs")

	plantCmd := &cobra.Command{
		Use:   "plant [scenario.yaml]",
		Short: "step a plant open loop over its inputs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlant,
	}
	plantCmd.Flags().StringSliceVar(&presets, "preset", nil, "use a preset scenario")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run trace to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&writeTo, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&writeTo, "output", "o", "", "output file (default stdout)")

	verifyCmd := &cobra.Command{
		Use:   "verify [run_id] [reference.csv]",
		Short: "compare a run against a reference trace",
		Args:  cobra.ExactArgs(2),
		RunE:  verifyRun,
	}
	verifyCmd.Flags().Float64Var(&threshold, "threshold", compare.DefaultThreshold, "maximum trace error in percent")
	verifyCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to compare (default: all shared)")

	tuneCmd := &cobra.Command{
		Use:   "tune [scenario.yaml]",
		Short: "grid-search kc and ti for a scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneScenario,
	}
	tuneCmd.Flags().StringSliceVar(&presets, "preset", nil, "use a preset scenario")
	tuneCmd.Flags().Float64SliceVar(&kcGrid, "kc", []float64{0.2, 0.4, 0.8, 1.6, 3.2}, "kc values")
	tuneCmd.Flags().Float64SliceVar(&tiGrid, "ti", []float64{0.5, 1, 2, 4, 8}, "ti values")
	tuneCmd.Flags().StringVar(&metric, "metric", "iae", "metric to minimise")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset scenarios",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, plantCmd, listCmd, exportCSVCmd, exportJSONCmd, verifyCmd, tuneCmd, presetsCmd)
	return rootCmd
}

func openStore() *storage.Store {
	return storage.New(viper.GetString("data"), log)
}

// loadScenarios resolves file arguments and presets, in that order.
func loadScenarios(args []string) ([]*config.Scenario, error) {
	var scenarios []*config.Scenario
	for _, path := range args {
		s, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		if s.Name == "" {
			s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		scenarios = append(scenarios, s)
	}
	for _, name := range presets {
		s := config.GetPreset(name)
		if s == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// applyFlags overrides scenario values with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, s *config.Scenario) error {
	if cmd.Flags().Changed("kc") {
		s.Controller.Kc = kc
	}
	if cmd.Flags().Changed("ti") {
		s.Controller.Ti = ti
	}
	if cmd.Flags().Changed("steps") {
		s.Loop.Steps = steps
	}
	if cmd.Flags().Changed("mode") {
		m, err := control.ParseMode(mode)
		if err != nil {
			return err
		}
		s.Controller.Mode = m
	}
	if cmd.Flags().Changed("freeze") {
		f, err := control.ParseFreezeMode(freeze)
		if err != nil {
			return err
		}
		s.Controller.Freeze = f
	}
	if cmd.Flags().Changed("validate") {
		s.Loop.ValidateState = validate
	}
	return nil
}

func runScenarios(cmd *cobra.Command, args []string) error {
	scenarios, err := loadScenarios(args)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		scenarios = []*config.Scenario{config.DefaultScenario()}
	}
	for _, s := range scenarios {
		if err := applyFlags(cmd, s); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	exps, results, err := experiment.RunAll(ctx, scenarios, log)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := openStore()
	if !dryRun {
		if err := st.Init(); err != nil {
			return err
		}
	}

	for i, exp := range exps {
		s := exp.Scenario()
		runID := "-"
		if !dryRun {
			runID, err = st.Save(s.Name, s.Controller.Ts, exp.Params(), results[i])
			if err != nil {
				return err
			}
		}
		fmt.Println(renderSummary(s.Name, runID, results[i]))
	}
	fmt.Println(subtleStyle.Render(fmt.Sprintf("completed %d run(s) in %v", len(exps), elapsed)))
	return nil
}

func runPlant(cmd *cobra.Command, args []string) error {
	scenarios, err := loadScenarios(args)
	if err != nil {
		return err
	}
	if len(scenarios) != 1 {
		return fmt.Errorf("plant needs exactly one scenario file or preset, got %d", len(scenarios))
	}

	trace, err := experiment.RunPlant(scenarios[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "K\tU\tY\tX")
	for _, s := range trace {
		fmt.Fprintf(w, "%d\t%v\t%v\t%v\n", s.Step, s.Input, s.Output, s.State)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := openStore().List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tSTEPS\tTS\tIAE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4fs\t%.4f\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Ts,
			run.Metrics["iae"],
		)
	}

	return w.Flush()
}

func output() (*os.File, func() error, error) {
	if writeTo == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(writeTo)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	out, done, err := output()
	if err != nil {
		return err
	}
	if err := openStore().ExportCSV(args[0], out); err != nil {
		done()
		return err
	}
	return done()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	out, done, err := output()
	if err != nil {
		return err
	}
	if err := openStore().ExportJSON(args[0], out); err != nil {
		done()
		return err
	}
	return done()
}

func verifyRun(cmd *cobra.Command, args []string) error {
	runID, refPath := args[0], args[1]
	st := openStore()

	if _, err := st.Load(runID); err != nil {
		return err
	}
	actual, err := readTable(st.TracePath(runID))
	if err != nil {
		return err
	}
	reference, err := readTable(refPath)
	if err != nil {
		return err
	}

	cols := columns
	if len(cols) == 0 {
		cols = compare.SharedColumns(actual, reference, "step", "time")
	}
	if len(cols) == 0 {
		return fmt.Errorf("no shared numeric columns between run and reference")
	}

	report, err := compare.Tables(actual, reference, cols, threshold)
	if err != nil {
		return err
	}
	fmt.Println(renderReport(runID, report))

	if !report.Pass {
		return fmt.Errorf("trace error %.4f%% exceeds threshold %.4f%%", report.Error, report.Threshold)
	}
	return nil
}

func readTable(path string) (*storage.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := storage.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func tuneScenario(cmd *cobra.Command, args []string) error {
	scenarios, err := loadScenarios(args)
	if err != nil {
		return err
	}
	if len(scenarios) != 1 {
		return fmt.Errorf("tune needs exactly one scenario file or preset, got %d", len(scenarios))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g := optim.NewGridSearch([]string{"kc", "ti"}, [][]float64{kcGrid, tiGrid})
	log.Info("tuning", zap.String("scenario", scenarios[0].Name), zap.Int("points", len(kcGrid)*len(tiGrid)))

	params, best, err := g.Search(ctx, optim.ScenarioBuilder(scenarios[0]), metric)
	if err != nil {
		return err
	}

	fmt.Println(panelStyle.Render(strings.Join([]string{
		titleStyle.Render("tune " + scenarios[0].Name),
		row("kc", fmt.Sprintf("%g", params["kc"])),
		row("ti", fmt.Sprintf("%g", params["ti"])),
		row(metric, fmt.Sprintf("%.6f", best)),
	}, "\n")))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTEPS\tTS\tWINDOWS\tOVERRIDE")
	for _, name := range config.ListPresets() {
		s := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%.4fs\t%d\t%t\n", name, s.Loop.Steps, s.Controller.Ts, len(s.Schedule), s.Override != nil)
	}
	return w.Flush()
}
