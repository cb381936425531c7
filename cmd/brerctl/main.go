package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/kassonlab/brer-md/pkg/brer"
)

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
	case "resample":
		return runResample(ctx, args[1:])
	case "run":
		return runPhase(ctx, args[1:])
	case "state":
		return runState(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	pairsPath := fs.String("pairs", "", "reference pair data JSON path (required)")
	configPath := fs.String("config", "", "optional general parameters JSON path")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	member := fs.Int("member", 0, "ensemble member index")
	seed := fs.Int64("seed", 0, "rng seed for target resampling (0 derives one from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pairsPath == "" {
		return fmt.Errorf("init requires -pairs")
	}

	req := brer.SetupRequest{
		PairsFile: *pairsPath,
		Member:    *member,
		Seed:      *seed,
	}
	if *configPath != "" {
		general, err := loadGeneralFromConfig(*configPath)
		if err != nil {
			return err
		}
		req.General = general
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.InitRun(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("initialized run=%s state=%s\n", summary.RunID, summary.StateFile)
	printTargets(summary.Targets)
	return nil
}

func runResample(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resample", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	seed := fs.Int64("seed", 0, "rng seed (0 derives one from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("resample requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	targets, err := client.Resample(ctx, *runID, *seed)
	if err != nil {
		return err
	}
	printTargets(targets)
	return nil
}

func runPhase(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	trajPath := fs.String("traj", "", "trajectory frames JSON path (required)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	member := fs.Int("member", 0, "ensemble member index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("run requires -run-id")
	}
	if *trajPath == "" {
		return fmt.Errorf("run requires -traj")
	}

	steps, err := loadTrajectory(*trajPath)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunPhase(ctx, *runID, *member, brer.Steps(steps))
	if err != nil {
		return err
	}

	fmt.Printf("run=%s phase=%s iteration=%d completed=%v span=[%g, %g] next=%s\n",
		summary.RunID, summary.Phase, summary.Iteration, summary.Completed,
		summary.StartTime, summary.EndTime, summary.NextPhase)
	for _, name := range sortedKeys(summary.Alphas) {
		fmt.Printf("  %s alpha=%g target=%g\n", name, summary.Alphas[name], summary.Targets[name])
	}
	return nil
}

func runState(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	member := fs.Int("member", 0, "ensemble member index")
	jsonOut := fs.Bool("json", false, "emit state as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("state requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	st, err := client.RunState(ctx, *runID, *member)
	if err != nil {
		return err
	}

	if *jsonOut {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("run=%s phase=%s iteration=%d seed=%d\n",
		st.RunID, st.General.Phase, st.General.Iteration, st.General.Seed)
	names := make([]string, 0, len(st.Pairs))
	for name := range st.Pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := st.Pairs[name]
		fmt.Printf("  %s sites=%v alpha=%g target=%g\n", name, p.Sites, p.Alpha, p.Target)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (required)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("history requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, *runID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no completed phases")
		return nil
	}
	for _, rec := range history {
		fmt.Printf("iteration=%d phase=%s span=[%g, %g] completed=%v\n",
			rec.Iteration, rec.Phase, rec.StartTime, rec.EndTime, rec.Stopped)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "brer.db", "sqlite database path")
	workDir := fs.String("workdir", "brer_runs", "working directory root")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *workDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, id := range runs {
		fmt.Println(id)
	}
	return nil
}

func newClient(ctx context.Context, storeKind, dbPath, workDir string) (*brer.Client, error) {
	client, err := brer.New(brer.Options{StoreKind: storeKind, DBPath: dbPath, WorkDir: workDir})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func printTargets(targets map[string]float64) {
	for _, name := range sortedKeys(targets) {
		fmt.Printf("  %s target=%g\n", name, targets[name])
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: brerctl <init|resample|run|state|history|runs> [flags]", msg)
}
