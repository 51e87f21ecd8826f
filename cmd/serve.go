package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/logger"
	"github.com/kpetrov/jobscout/internal/notify"
	"github.com/kpetrov/jobscout/internal/scheduler"
	"github.com/kpetrov/jobscout/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on the weekday schedule until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	pl, st, cleanup, err := buildPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer cleanup()

	sched := scheduler.New(func(ctx context.Context) error {
		if _, err := pl.Run(ctx); err != nil {
			return err
		}
		return announce(ctx, st, minScore(config), logger)
	}, logger)

	spec := ""
	if config != nil {
		spec = config.Schedule
	}
	if err := sched.Start(ctx, spec); err != nil {
		logger.Fatal("scheduler failed", zap.Error(err))
	}
}

// announce prints the postings no digest has surfaced yet and flags them,
// so the next scheduled run stays quiet about old news.
func announce(ctx context.Context, st *store.Store, floor int, logger *zap.Logger) error {
	pending, err := st.Unnotified(ctx, floor)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info("nothing new to announce")
		return nil
	}

	fmt.Println(notify.BuildPending(pending))

	keys := make([]string, 0, len(pending))
	for _, p := range pending {
		keys = append(keys, p.IdentityKey())
	}
	if err := st.MarkNotified(ctx, keys); err != nil {
		return err
	}
	logger.Info("announced", zap.Int("postings", len(pending)))
	return nil
}
