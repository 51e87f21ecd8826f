package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/logger"
	"github.com/kpetrov/jobscout/internal/notify"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one aggregation pass over all configured sources",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("quiet", "q", false, "do not print the digest, only log")
}

// run is the single-pass command: fetch, filter, score, dedup, store.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting jobscout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	pl, _, cleanup, err := buildPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer cleanup()

	report, err := pl.Run(ctx)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	if cmd.Flag("quiet").Value.String() == "true" {
		return
	}
	if digest := notify.BuildDigest(report); digest != "" {
		fmt.Println(digest)
	} else {
		logger.Info("nothing new this run")
	}
}
