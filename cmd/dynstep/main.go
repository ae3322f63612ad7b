package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dynstep/internal/config"
	"github.com/san-kum/dynstep/internal/driver"
	"github.com/san-kum/dynstep/internal/experiment"
	"github.com/san-kum/dynstep/internal/stepper"
	"github.com/san-kum/dynstep/internal/storage"
	"github.com/san-kum/dynstep/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	current    float64
	duration   float64
	steps      int
	cutoff     float64
	ministeps  bool
	quantity   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dynstep",
		Short: "implicit time-stepping lab for nonlinear models",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynstep", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().Float64Var(&current, "current", config.DefaultCurrent, "applied current (cell)")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "schedule duration")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "nominal steps")
	runCmd.Flags().Float64Var(&cutoff, "cutoff", 0, "voltage cutoff (cell)")
	runCmd.Flags().BoolVar(&ministeps, "ministeps", false, "keep accepted ministeps in output")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored quantity",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&quantity, "quantity", "voltage", "quantity column to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets(args[0])
			if len(names) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range names {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run a schedule with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	liveCmd.Flags().StringVar(&quantity, "quantity", "", "quantity to chart")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, presetsCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := "cell"
	if len(args) > 0 {
		model = args[0]
	}

	var cfg *config.Config
	switch {
	case preset != "":
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	default:
		cfg = config.DefaultConfig()
		cfg.Model = model
	}

	// CLI flags override the single-interval quick-run settings.
	if len(cfg.Schedule) == 1 {
		if cmd.Flags().Changed("current") {
			cfg.Schedule[0].Control = config.ControlConfig{Kind: "current", Value: current}
		}
		if cmd.Flags().Changed("time") {
			cfg.Schedule[0].Duration = duration
		}
		if cmd.Flags().Changed("steps") {
			cfg.Schedule[0].Steps = steps
		}
		if cmd.Flags().Changed("cutoff") {
			cfg.Schedule[0].Stops = []config.StopConfig{
				{Quantity: "voltage", Op: "below", Value: cutoff},
			}
		}
	}
	if cmd.Flags().Changed("ministeps") {
		cfg.Output.Ministeps = ministeps
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	model, sched, drvCfg, err := experiment.Build(cfg)
	if err != nil {
		return err
	}

	d, err := driver.New(model, sched, drvCfg)
	if err != nil {
		return err
	}

	result, runErr := d.Run(context.Background())

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	quantities := experiment.NewRegistry().Quantities(cfg.Model)
	runID, err := st.Save(cfg.Model, quantities, result)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", runID)
	fmt.Fprintf(w, "status\t%s\n", result.Report.Status)
	fmt.Fprintf(w, "steps\t%d\n", len(result.Report.Steps))
	fmt.Fprintf(w, "newton iterations\t%d\n", result.Report.Stats.NewtonIterations)
	fmt.Fprintf(w, "rejected attempts\t%d\n", result.Report.Stats.RejectedAttempts)
	if n := len(result.States); n > 0 {
		fmt.Fprintf(w, "final time\t%.1f\n", result.Times[n-1])
		for _, q := range quantities {
			if v, ok := result.States[n-1].Quantity(q); ok {
				fmt.Fprintf(w, "final %s\t%.4f\n", q, v)
			}
		}
	}
	w.Flush()

	if runErr != nil {
		return fmt.Errorf("run ended with error: %w", runErr)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tSTEPS\tFINAL TIME")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\n", r.ID, r.Model, r.Status, r.Steps, r.FinalTime)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	series, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	data, ok := series[quantity]
	if !ok {
		return fmt.Errorf("run has no quantity %q", quantity)
	}
	if len(data) < 2 {
		return fmt.Errorf("not enough points to plot")
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption(fmt.Sprintf("%s — %s", args[0], quantity)),
	)
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.LoadMetadata(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	model, sched, drvCfg, err := experiment.Build(cfg)
	if err != nil {
		return err
	}

	d, err := driver.New(model, sched, drvCfg)
	if err != nil {
		return err
	}

	q := quantity
	if q == "" {
		if cfg.Model == "thermal" {
			q = "temperature"
		} else {
			q = "voltage"
		}
	}

	p := tea.NewProgram(viz.NewLive(q))

	d.AddObserver(driver.ObserverFunc(func(state stepper.State, rec stepper.StepRecord) {
		v, _ := state.Quantity(q)
		p.Send(viz.StepMsg{Rec: rec, Value: v})
	}))

	go func() {
		result, runErr := d.Run(context.Background())
		p.Send(viz.DoneMsg{Status: result.Report.Status, Err: runErr})
	}()

	_, err = p.Run()
	return err
}
