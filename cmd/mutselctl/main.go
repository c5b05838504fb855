package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"mutsel/internal/storage"
	"mutsel/pkg/mutsel"
)

const defaultDBPath = "mutsel.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "equilibrium":
		return runEquilibrium(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func storeFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", defaultDBPath, "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*mutsel.Client, error) {
	return mutsel.New(mutsel.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *storeKind == "sqlite" {
		if err := os.Remove(*dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	configPath := fs.String("config", "", "JSON run configuration")
	label := fs.String("label", "", "run label")
	classes := fs.Int("classes", 0, "number of growth-rate classes")
	epochs := fs.Int("epochs", 0, "reporting epochs to simulate")
	stepsPerYear := fs.Int("steps-per-year", 0, "Euler sub-steps per year")
	threshold := fs.Float64("threshold", 0, "relative zeroing threshold")
	norm := fs.String("norm", "", "threshold norm: sum|max")
	zeroForever := fs.Bool("zero-forever", false, "zeroed classes stay zero")
	adaptive := fs.Bool("adaptive", false, "adaptive Runge-Kutta integrator")
	precision := fs.String("precision", "", "numeric regime: fixed|big")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *label != "" {
		req.Label = *label
	}
	if *classes > 0 {
		req.Classes = *classes
	}
	if *epochs > 0 {
		req.Epochs = *epochs
	}
	if *stepsPerYear > 0 {
		req.StepsPerYear = *stepsPerYear
	}
	if *threshold > 0 {
		req.Threshold = *threshold
	}
	if *norm != "" {
		req.Norm = *norm
	}
	if *zeroForever {
		req.ZeroForever = true
	}
	if *adaptive {
		req.Adaptive = true
	}
	if *precision != "" {
		req.Precision = *precision
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s epochs=%d last_valid=%d log_scalar=%d mean=%.6g var=%.6g\n",
		summary.RunID, summary.Epochs, summary.LastValidEpoch, summary.LogScalar,
		summary.FinalMean, summary.FinalVariance)
	return nil
}

func runEquilibrium(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("equilibrium", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "reuse parameters of a stored run")
	configPath := fs.String("config", "", "JSON run configuration for inline parameters")
	blockSize := fs.Int("block-size", 0, "power iterations per residual check")
	maxBlocks := fs.Int("max-blocks", 0, "maximum power-iteration blocks")
	tolerance := fs.Float64("tolerance", 0, "residual stopping tolerance")
	refine := fs.Int("refine", 0, "inverse-power refinement iterations (-1 disables)")
	workers := fs.Int("workers", 0, "parallel row blocks for the matrix product")
	seed := fs.Int64("seed", 0, "random fallback seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eqReq := mutsel.EquilibriumRequest{
		RunID:            *runID,
		BlockSize:        *blockSize,
		MaxBlocks:        *maxBlocks,
		Tolerance:        *tolerance,
		RefineIterations: *refine,
		Workers:          *workers,
		Seed:             *seed,
	}
	if *runID == "" {
		req, err := loadOrDefaultRunRequest(*configPath)
		if err != nil {
			return err
		}
		eqReq.Run = &req
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Equilibrium(ctx, eqReq)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s value=%.12g error=%.3e mean=%.6g\n",
		summary.RunID, summary.Value, summary.Error, summary.Mean)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	limit := fs.Int("limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, mutsel.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	for _, item := range runs {
		fmt.Printf("%s  %s  classes=%d epochs=%d  %s\n",
			item.RunID, item.CreatedAtUTC, item.Classes, item.Epochs, item.Label)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run to show")
	latest := fs.Bool("latest", false, "show the most recent run")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Show(ctx, mutsel.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Printf("run=%s label=%q classes=%d epochs=%d last_valid=%d mean=%.6g var=%.6g\n",
		summary.Run.ID, summary.Run.Label, summary.Run.Lattice.Classes,
		summary.Epochs, summary.LastValidEpoch, summary.FinalMean, summary.FinalVariance)
	if summary.Equilibrium != nil {
		fmt.Printf("equilibrium value=%.12g error=%.3e\n",
			summary.Equilibrium.Value, summary.Equilibrium.Error)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	out := fs.String("out", "", "output path (defaults to <run-id>.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Export(ctx, mutsel.ExportRequest{RunID: *runID, Latest: *latest, Path: *out})
	if err != nil {
		return err
	}
	fmt.Printf("exported run=%s to %s\n", summary.RunID, summary.Path)
	return nil
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run to validate")
	latest := fs.Bool("latest", false, "validate the most recent run")
	refPath := fs.String("reference", "", "reference JSON document")
	tolerance := fs.Float64("tolerance", 0, "maximum acceptable relative error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Validate(ctx, mutsel.ValidateRequest{
		RunID:         *runID,
		Latest:        *latest,
		ReferencePath: *refPath,
		Tolerance:     *tolerance,
	})
	if err != nil {
		return err
	}
	status := "FAIL"
	if summary.Pass {
		status = "PASS"
	}
	fmt.Printf("%s run=%s %s\n", status, summary.RunID, summary.Worst)
	if !summary.Pass {
		return errors.New("validation failed")
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: mutselctl <init|reset|run|equilibrium|runs|show|export|validate> [flags]", msg)
}
