package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/tanuj-rai/matrixci/internal/config"
	"github.com/tanuj-rai/matrixci/internal/core"
	"github.com/tanuj-rai/matrixci/internal/history"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  matrixci plan   -f matrix.yaml [flags]   show the expanded job plan")
	fmt.Println("  matrixci run    -f matrix.yaml [flags]   run the matrix locally")
	fmt.Println("  matrixci history <ledger.jsonl>          list recorded runs")
	fmt.Println("  matrixci verify  <ledger.jsonl>          verify the run history chain")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "plan":
		cfg, matrix := parseRunArgs(os.Args[2:])
		specs := core.Expand(cfg, matrix)
		kept, skipped := core.FilterSkipped(cfg, specs)
		renderPlan(kept, skipped)

	case "run":
		cfg, matrix := parseRunArgs(os.Args[2:])
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		runner := core.NewRunner(logger)
		runID := uuid.NewString()
		rep, uploadErr := runner.RunMatrix(context.Background(), runID, cfg, matrix)
		renderReport(runID, rep, uploadErr)
		if rep.Verdict != core.VerdictSuccess {
			os.Exit(1)
		}

	case "history":
		ledger := openLedger(os.Args[2:])
		renderHistory(ledger.Entries())

	case "verify":
		ledger := openLedger(os.Args[2:])
		if err := ledger.VerifyChain(); err != nil {
			fmt.Println(failStyle.Render("verification FAILED: " + err.Error()))
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("ledger verification ok"))

	default:
		usage()
	}
}

// parseRunArgs resolves the shared plan/run flag set into a run
// configuration plus the loaded matrix.
func parseRunArgs(args []string) (config.RunConfig, *core.Matrix) {
	fs := flag.NewFlagSet("matrixci", flag.ExitOnError)
	matrixPath := fs.String("f", "matrix.yaml", "matrix file")
	branch := fs.String("branch", "", "branch under test")
	lightened := fs.Bool("lightened", false, "lightened run (single python version, skip list honored)")
	warnLevel := fs.String("warnings", "", `warning level ("default" or "error")`)
	skip := fs.String("skip", "", "comma-separated categories to skip (lightened runs only)")
	prefix := fs.String("prefix", "", "job name prefix")
	suffix := fs.String("suffix", "", "job name suffix")
	scheduled := fs.Bool("scheduled", false, "scheduled run (pins requirements on first shards)")
	noFailFast := fs.Bool("no-fail-fast", false, "keep dispatching a category after a failure")
	noUpload := fs.Bool("no-upload", false, "disable codecov upload")
	large := fs.Bool("large-runner", false, "request large runners")
	_ = fs.Parse(args)

	ov := config.Overrides{
		Branch:         *branch,
		Lightened:      *lightened,
		WarningLevel:   *warnLevel,
		JobNamePrefix:  *prefix,
		JobNameSuffix:  *suffix,
		Scheduled:      *scheduled,
		UseLargeRunner: *large,
		SkipList:       splitList(*skip),
	}
	if *noFailFast {
		ov.FailFast = false
		ov.FailFastSet = true
	}
	if *noUpload {
		ov.UploadCodecov = false
		ov.UploadSet = true
	}

	cfg, err := config.Resolve(ov)
	if err != nil {
		fmt.Println(failStyle.Render(err.Error()))
		os.Exit(2)
	}
	matrix, err := core.LoadMatrix(*matrixPath)
	if err != nil {
		fmt.Println(failStyle.Render("cannot load matrix: " + err.Error()))
		os.Exit(2)
	}
	return cfg, matrix
}

func openLedger(args []string) *history.Ledger {
	if len(args) < 1 {
		usage()
	}
	ledger, err := history.OpenLedger(args[0])
	if err != nil {
		fmt.Println(failStyle.Render("cannot open ledger: " + err.Error()))
		os.Exit(2)
	}
	return ledger
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
