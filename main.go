package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-grrt/pkg/catalog"
	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/output"
	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/df07/go-grrt/pkg/scene"
	"github.com/df07/go-grrt/web/server"
)

var rootCmd = &cobra.Command{
	Use:   "grrt",
	Short: "General-relativistic ray tracer for Kerr black holes",
	Long: `grrt traces photon geodesics backward from a distant observer's image plane
through the Kerr spacetime and integrates an observable per pixel:
- redshift: the redshift factor g of a thin Keplerian disk
- synchrotron: the thermal synchrotron luminosity of a hot Keplerian shell

Scenes are built-in presets ("redshift", "synchrotron"), run files in ./scenes
("file:kerr-disk") or paths to run YAML files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		core.SetLogger(logger)
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GRRT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory holding the run catalog")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "output", "directory for rendered files")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("no-catalog", false, "do not record runs in the catalog")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("output-dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("no-catalog", rootCmd.PersistentFlags().Lookup("no-catalog"))
}

func registerCommands() {
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scenesCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(tokenCmd())
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// openCatalog returns nil when cataloguing is disabled.
func openCatalog() (*catalog.Repo, func(), error) {
	if viper.GetBool("no-catalog") {
		return nil, func() {}, nil
	}
	conn, err := catalog.Open(viper.GetString("workspace"))
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	return &catalog.Repo{DB: conn}, func() { conn.Close() }, nil
}

// overrides are command-line replacements for run parameters; nil fields
// keep the scene's value.
type overrides struct {
	Spin        *float64
	Inclination *float64
	Resolution  *int
	Device      *string
	File        string // run YAML applied before the individual flags
}

func (o overrides) apply(run config.Run) (config.Run, error) {
	if o.File != "" {
		var err error
		if run, err = config.FromFile(o.File, run); err != nil {
			return config.Run{}, err
		}
	}
	if o.Spin != nil {
		run.Spin = *o.Spin
	}
	if o.Inclination != nil {
		run.Inclination = *o.Inclination
	}
	if o.Resolution != nil {
		run.Resolution = *o.Resolution
	}
	if o.Device != nil {
		run.Device = *o.Device
	}
	return run, run.Validate()
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spin", 0, "black hole spin a in [0, 1)")
	cmd.Flags().Float64("inclination", 0, "observer inclination in degrees")
	cmd.Flags().Int("resolution", 0, "pixels per image side")
	cmd.Flags().String("device", "", "accelerator name")
	cmd.Flags().String("set", "", "run YAML file applied over the scene")
}

// readOverrides collects the override flags the user actually set.
func readOverrides(cmd *cobra.Command) overrides {
	var o overrides
	f := cmd.Flags()
	if f.Changed("spin") {
		v, _ := f.GetFloat64("spin")
		o.Spin = &v
	}
	if f.Changed("inclination") {
		v, _ := f.GetFloat64("inclination")
		o.Inclination = &v
	}
	if f.Changed("resolution") {
		v, _ := f.GetInt("resolution")
		o.Resolution = &v
	}
	if f.Changed("device") {
		v, _ := f.GetString("device")
		o.Device = &v
	}
	o.File, _ = f.GetString("set")
	return o
}

// renderOptions configure renderScene.
type renderOptions struct {
	OutputDir string
	Compress  bool // zstd text output
	EXR       bool
	PNG       bool
	Catalog   *catalog.Repo
}

// renderResult is one finished scene.
type renderResult struct {
	Scene   string
	RunID   string
	Run     config.Run
	Stats   renderer.RenderStats
	Outputs []string
}

// outputPath names the text output of a run. Runs sharing a scenario are
// told apart by name.
func outputPath(dir string, run config.Run, compress bool) string {
	name := run.Scenario
	if run.Name != "" && run.Name != run.Scenario {
		name = run.Scenario + "_" + run.Name
	}
	path := filepath.Join(dir, output.DefaultName(name))
	if compress {
		path += ".zst"
	}
	return path
}

// renderScene renders one resolved run and writes its outputs.
func renderScene(ctx context.Context, sceneID string, run config.Run, opts renderOptions) (res renderResult, err error) {
	res = renderResult{Scene: sceneID, Run: run}
	sc, err := scene.New(run)
	if err != nil {
		return res, err
	}
	dev, err := device.Select(run.Device)
	if err != nil {
		return res, err
	}
	defer dev.Close()

	if opts.Catalog != nil {
		if res.RunID, err = opts.Catalog.StartRun(ctx, run); err != nil {
			return res, err
		}
		defer func() {
			if err == nil {
				return
			}
			status := catalog.StatusFailed
			if errors.Is(err, context.Canceled) {
				status = catalog.StatusCancelled
			}
			if ferr := opts.Catalog.FailRun(context.Background(), res.RunID, status, err); ferr != nil {
				slog.Warn("catalog update failed", "run", res.RunID, "error", ferr)
			}
		}()
	}

	slog.Info("render started", "scene", sceneID, "scenario", run.Scenario, "resolution", run.Resolution, "device", dev.Name())
	img, stats, err := sc.Orchestrator(dev).Render(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("render %s: %w", sceneID, err)
	}
	res.Stats = stats

	observable := sc.Observable()
	text := outputPath(opts.OutputDir, run, opts.Compress)
	if err := output.WriteFile(text, img, observable); err != nil {
		return res, err
	}
	res.Outputs = append(res.Outputs, text)
	base := strings.TrimSuffix(strings.TrimSuffix(text, ".zst"), ".txt")
	if opts.EXR {
		if err := output.WriteEXR(base+".exr", img); err != nil {
			return res, err
		}
		res.Outputs = append(res.Outputs, base+".exr")
	}
	if opts.PNG {
		if err := output.WritePNG(base+".png", img, observable); err != nil {
			return res, err
		}
		res.Outputs = append(res.Outputs, base+".png")
	}

	if opts.Catalog != nil {
		if err := opts.Catalog.CompleteRun(ctx, res.RunID, stats, text); err != nil {
			return res, err
		}
		if _, err := opts.Catalog.RecordDiagnostics(ctx, res.RunID, img); err != nil {
			return res, err
		}
	}
	slog.Info("render finished", "scene", sceneID, "duration", stats.Duration.Round(time.Millisecond), "output", text)
	return res, nil
}

func renderCmd() *cobra.Command {
	var opts renderOptions
	var parallel int
	cmd := &cobra.Command{
		Use:   "render [scene...]",
		Short: "Render scenes to text output files",
		Long: `Render one or more scenes. Without arguments the redshift preset is rendered.
Each scene writes Output_<scenario>.txt (alpha, beta, value per pixel) to the
output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{config.Redshift}
			}
			ov := readOverrides(cmd)
			runs := make([]config.Run, len(args))
			for i, id := range args {
				run, err := scene.Resolve(id)
				if err != nil {
					return err
				}
				if runs[i], err = ov.apply(run); err != nil {
					return fmt.Errorf("scene %s: %w", id, err)
				}
			}

			repo, closeCatalog, err := openCatalog()
			if err != nil {
				return err
			}
			defer closeCatalog()
			opts.Catalog = repo
			opts.OutputDir = viper.GetString("output-dir")

			results := make([]renderResult, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(parallel, 1))
			for i := range args {
				g.Go(func() error {
					res, err := renderScene(ctx, args[i], runs[i], opts)
					results[i] = res
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(results)
			}
			printRenderSummary(results)
			return nil
		},
	}
	addOverrideFlags(cmd)
	cmd.Flags().BoolVar(&opts.Compress, "zstd", false, "zstd-compress the text output")
	cmd.Flags().BoolVar(&opts.EXR, "exr", false, "also write an OpenEXR image of the observable")
	cmd.Flags().BoolVar(&opts.PNG, "png", false, "also write a PNG preview")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "scenes rendered at once")
	return cmd
}

func printRenderSummary(results []renderResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Scene", "Pixels", "Batches", "Captured", "Escaped", "Step limit", "Diverged", "Emitting", "Avg steps", "Max", "Total", "Time", "Output"})
	for _, r := range results {
		s := r.Stats
		tw.AppendRow(table.Row{
			r.Scene, s.TotalPixels, s.Batches, s.Captured, s.Escaped, s.StepLimited, s.Diverged, s.Emitting,
			fmt.Sprintf("%.1f", s.AverageSteps), fmt.Sprintf("%.4g", s.Max), fmt.Sprintf("%.4g", s.Total),
			s.Duration.Round(time.Millisecond), strings.Join(r.Outputs, "\n"),
		})
	}
	tw.Render()
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var maxJobs int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeCatalog, err := openCatalog()
			if err != nil {
				return err
			}
			defer closeCatalog()

			jobs := server.NewManager(server.ManagerConfig{
				OutputDir:     viper.GetString("output-dir"),
				Catalog:       repo,
				MaxConcurrent: maxJobs,
				Logger:        slog.Default(),
			})
			defer jobs.Close()

			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret")}
			if authCfg.JWTSecret == "" {
				slog.Warn("GRRT_JWT_SECRET not set; job submission is open")
			}
			handler, err := server.New(server.Config{Jobs: jobs, Catalog: repo, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving GRRT API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 1, "renders running at once")
	cmd.Flags().String("jwt-secret", "", "HS256 secret required to submit or cancel jobs")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func scenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List built-in scenes and run files",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := scene.ListAllScenes()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(scenes)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Group", "Scenario", "Description"})
			for _, g := range scenes.Groups {
				for _, s := range g.Scenes {
					tw.AppendRow(table.Row{s.ID, s.DisplayName, g.Name, s.Scenario, s.Description})
				}
			}
			tw.Render()
			return nil
		},
	}
}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Browse the run catalog"}
	runs.AddCommand(runsListCmd())
	runs.AddCommand(runsShowCmd())
	return runs
}

func runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(repo *catalog.Repo) error {
				items, err := repo.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Scenario", "Status", "Created", "Pixels", "Step limit", "Diverged", "Duration"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Name, r.Scenario, r.Status, r.CreatedAt, r.Pixels, r.StepLimited, r.Diverged,
						(time.Duration(r.DurationMS) * time.Millisecond).String()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs listed")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its pixel diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(repo *catalog.Repo) error {
				run, err := repo.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				diags, err := repo.Diagnostics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "diagnostics": diags})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", run.ID},
					{"Name", run.Name},
					{"Scenario", run.Scenario},
					{"Status", run.Status},
					{"Error", run.Error},
					{"Output", run.OutputPath},
					{"Created", run.CreatedAt},
					{"Finished", run.FinishedAt},
					{"Pixels", run.Pixels},
					{"Captured / Escaped", fmt.Sprintf("%d / %d", run.Captured, run.Escaped)},
					{"Step limit / Diverged", fmt.Sprintf("%d / %d", run.StepLimited, run.Diverged)},
					{"Average steps", fmt.Sprintf("%.1f", run.AverageSteps)},
					{"Mean / Max / Total", fmt.Sprintf("%.4g / %.4g / %.4g", run.MeanValue, run.MaxValue, run.TotalValue)},
				})
				tw.Render()
				if len(diags) == 0 {
					return nil
				}
				dw := table.NewWriter()
				dw.SetOutputMirror(os.Stdout)
				dw.AppendHeader(table.Row{"Row", "Col", "Alpha", "Beta", "Status", "Steps"})
				for _, d := range diags {
					dw.AppendRow(table.Row{d.Row, d.Col, fmt.Sprintf("%.4f", d.Alpha), fmt.Sprintf("%.4f", d.Beta), d.Status, d.Steps})
				}
				dw.Render()
				return nil
			})
		},
	}
}

func withCatalog(fn func(repo *catalog.Repo) error) error {
	conn, err := catalog.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(&catalog.Repo{DB: conn})
}

func inspectCmd() *cobra.Command {
	var row, col, maxPoints int
	cmd := &cobra.Command{
		Use:   "inspect <scene>",
		Short: "Trace a single pixel and print its geodesic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := scene.Resolve(args[0])
			if err != nil {
				return err
			}
			if run, err = readOverrides(cmd).apply(run); err != nil {
				return err
			}
			if row < 0 || col < 0 || row >= run.Resolution || col >= run.Resolution {
				return fmt.Errorf("pixel (%d, %d) outside a %dx%d image", row, col, run.Resolution, run.Resolution)
			}
			sc, err := scene.New(run)
			if err != nil {
				return err
			}
			in := sc.Pipeline.Inspect(sc.Camera.Task(row, col), maxPoints)
			if viper.GetBool("json") {
				return printJSON(in)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Pixel", fmt.Sprintf("(%d, %d)", row, col)},
				{"Alpha, Beta", fmt.Sprintf("%.6f, %.6f", in.Result.Alpha, in.Result.Beta)},
				{"E, L, Q", fmt.Sprintf("%.6f, %.6f, %.6f", in.Constants.E, in.Constants.L, in.Constants.Q)},
				{"Status", in.Result.Status},
				{"Value", in.Result.Value},
				{"Steps (rejected)", fmt.Sprintf("%d (%d)", in.Context.Steps, in.Context.Rejected)},
				{"Turning points r, theta", fmt.Sprintf("%d, %d", in.Context.RadialTurns, in.Context.PolarTurns)},
				{"Max Carter drift", fmt.Sprintf("%.3g", in.Context.MaxDrift)},
				{"Samples", len(in.Samples)},
			})
			tw.Render()

			pw := table.NewWriter()
			pw.SetOutputMirror(os.Stdout)
			pw.AppendHeader(table.Row{"Lambda", "r", "theta", "x", "y", "z"})
			for _, p := range in.Path {
				pw.AppendRow(table.Row{
					fmt.Sprintf("%.4f", p.Lambda), fmt.Sprintf("%.4f", p.State.R), fmt.Sprintf("%.4f", p.State.Theta),
					fmt.Sprintf("%.4f", p.X), fmt.Sprintf("%.4f", p.Y), fmt.Sprintf("%.4f", p.Z),
				})
			}
			pw.Render()
			return nil
		},
	}
	addOverrideFlags(cmd)
	cmd.Flags().IntVar(&row, "row", 0, "pixel row")
	cmd.Flags().IntVar(&col, "col", 0, "pixel column")
	cmd.Flags().IntVar(&maxPoints, "max-points", 40, "path points printed; 0 prints all")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("GRRT_JWT_SECRET is required to sign tokens")
			}
			now := time.Now()
			token, err := server.IssueToken(secret, subject, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
