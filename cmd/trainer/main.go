// Command trainer fetches history and trains forecast models, either once
// from the command line or as a queue worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PriceCast/internal/di"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	"PriceCast/pkg/util"
)

var (
	configPath string
	interval   string
	epochs     int
	batchSize  int
	seed       int64
	refresh    bool
)

func main() {
	root := &cobra.Command{
		Use:           "trainer",
		Short:         "Fetch price history and train forecast models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	root.PersistentFlags().StringVar(&interval, "interval", models.DefaultInterval, "bar interval, e.g. 1day or 1h")

	fetch := &cobra.Command{
		Use:   "fetch TICKER",
		Short: "Download and store training history",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}

	train := &cobra.Command{
		Use:   "train TICKER",
		Short: "Train one model and write its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrain,
	}
	addFitFlags(train)
	train.Flags().BoolVar(&refresh, "refresh", false, "fetch new history even when some is stored")

	pretrain := &cobra.Command{
		Use:   "pretrain [TICKERS...]",
		Short: "Train the popular tickers, or the ones given",
		RunE:  runPretrain,
	}
	addFitFlags(pretrain)

	worker := &cobra.Command{
		Use:   "worker",
		Short: "Run queued training jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWorker,
	}

	root.AddCommand(fetch, train, pretrain, worker)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addFitFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&epochs, "epochs", 0, "training epochs (0 uses the config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "mini-batch size (0 uses the config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "weight initialisation seed (0 uses the config)")
}

func fitOptions() service.FitOptions {
	return service.FitOptions{Epochs: epochs, BatchSize: batchSize, Seed: seed}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func withTrainer(fn func(ctx context.Context, t *usecase.TrainerUseCase) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	t, cleanup, err := di.InitializeTrainer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, t)
}

func runFetch(_ *cobra.Command, args []string) error {
	return withTrainer(func(ctx context.Context, t *usecase.TrainerUseCase) error {
		id := models.NewIdentity(args[0], interval)
		bars, err := t.Fetch(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s: stored %d bars (%s .. %s)\n", id.Key(), len(bars),
			bars[0].Time.Format(util.DateLayout), bars[len(bars)-1].Time.Format(util.DateLayout))
		return nil
	})
}

func runTrain(_ *cobra.Command, args []string) error {
	return withTrainer(func(ctx context.Context, t *usecase.TrainerUseCase) error {
		id := models.NewIdentity(args[0], interval)
		rep, err := t.Train(ctx, usecase.TrainParams{ID: id, Options: fitOptions(), Refresh: refresh})
		if err != nil {
			return err
		}
		printReport(id, rep)
		return nil
	})
}

func runPretrain(_ *cobra.Command, args []string) error {
	return withTrainer(func(ctx context.Context, t *usecase.TrainerUseCase) error {
		tickers := args
		if len(tickers) == 0 {
			tickers = usecase.PopularTickers
		}
		failed := t.Pretrain(ctx, tickers, interval, fitOptions())
		fmt.Printf("pretrained %d of %d tickers\n", len(tickers)-len(failed), len(tickers))
		if len(failed) == 0 {
			return nil
		}
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %v\n", name, failed[name])
		}
		return fmt.Errorf("training failed for %s", strings.Join(names, ", "))
	})
}

func runWorker(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeWorker(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return app.Run(context.Background())
}

func printReport(id models.Identity, r forecast.Report) {
	fmt.Printf("%s: trained on %d samples (%d train / %d test) for %d epochs in %s\n",
		id.Key(), r.Samples, r.TrainSize, r.TestSize, r.Epochs, r.Duration.Round(time.Millisecond))
	fmt.Printf("  train loss %.6f, test loss %.6f, last bar %s\n",
		r.TrainLoss, r.TestLoss, r.LastBar.Format(util.DateLayout))
}
