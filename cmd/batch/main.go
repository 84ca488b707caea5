package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"go-xray-inspector/internal/config"
	"go-xray-inspector/internal/container"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/observer"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/internal/ranking"
	"go-xray-inspector/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		set      = flag.StringP("panel", "p", panel.SetBatch, "panel set for batch runs: full or batch")
		seed     = flag.Int64P("seed", "s", 0, "seed for the simulated oracle (0 keeps RANDOM_SEED)")
		top      = flag.IntP("top", "n", ranking.DefaultTopN, "number of top models in the report")
		withImg  = flag.Bool("image", false, "embed the normalized image in single-image reports")
		logLevel = flag.String("log-level", "warn", "log level written to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: batch [flags] <image path or ref>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	_ = godotenv.Load()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(*logLevel)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *seed != 0 {
		cfg.RandomSeed = *seed
	}
	refs, err := resolveRefs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	if cfg.ImageRoot == "" {
		cfg.ImageRoot = string(filepath.Separator)
	}

	opts := service.DefaultOptions()
	opts.TopN = *top
	opts.IncludeImage = *withImg

	progress := observer.NewProgressObserver("cli_progress", func(completed, total int) {
		fmt.Fprintf(os.Stderr, "[%d/%d] images processed\n", completed, total)
	})

	c, err := container.NewContainer(cfg,
		container.WithBatchSet(*set),
		container.WithServiceOptions(opts),
		container.WithObserver(progress),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(refs) == 1 {
		report, err := c.Service().AnalyzeSingleRef(ctx, refs[0])
		if report != nil {
			if encErr := emit(report); encErr != nil {
				return fail("encode", encErr)
			}
		}
		if err != nil {
			return fail("analysis", err)
		}
		return 0
	}

	// A canceled batch still prints what it finished.
	report, err := c.Service().AnalyzeBatchRefs(ctx, refs)
	if report != nil {
		if encErr := emit(report); encErr != nil {
			return fail("encode", encErr)
		}
	}
	if err != nil {
		return fail("analysis", err)
	}
	return 0
}

func emit(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(stage string, err error) int {
	fmt.Fprintf(os.Stderr, "%s: %v\n", stage, err)
	return 1
}

// resolveRefs turns bare local paths into absolute file references so they
// resolve below the file system root.
func resolveRefs(args []string) ([]string, error) {
	refs := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.Contains(arg, "://") {
			refs = append(refs, arg)
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", arg, err)
		}
		refs = append(refs, "file://"+filepath.ToSlash(abs))
	}
	return refs, nil
}
