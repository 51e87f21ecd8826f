package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/logger"
	"github.com/kpetrov/jobscout/internal/store"
)

const (
	PromptBack        = "back"
	PromptExit        = "exit"
	PromptInterested  = "Mark interested"
	PromptApplied     = "Mark applied"
	PromptRejected    = "Mark rejected"
	PromptArchive     = "Archive"
	PromptShowDetails = "Show details"
	PromptDumpToFile  = "Dump postings to file"

	descriptionPreview = 600
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Triage new postings interactively",
	Run: func(_ *cobra.Command, _ []string) {
		review()
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().IntP("min-score", "m", 0, "only show postings at or above this score")
	viper.BindPFlag("min-score", reviewCmd.Flags().Lookup("min-score"))
}

func review() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Database == "" {
		logger.Fatal("database DSN is required")
	}

	st, err := store.New(ctx, config.Database, logger)
	if err != nil {
		logger.Fatal("connecting to the store", zap.Error(err))
	}
	defer st.Close()

	for {
		if err := reviewLoop(ctx, st, config, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func reviewLoop(ctx context.Context, st *store.Store, config *Config, logger *zap.Logger) error {
	postings, err := st.Query(ctx, store.QueryOpts{
		Status:   jobs.StatusNew,
		MinScore: minScore(config),
	})
	if err != nil {
		return err
	}
	if len(postings) == 0 {
		logger.Info("nothing to review")
		return errExit
	}

	items := make([]string, 0, len(postings)+2)
	for _, p := range postings {
		items = append(items, p.Summary())
	}
	items = append(items, PromptDumpToFile, PromptExit)

	prompt := promptui.Select{
		Label: fmt.Sprintf("%d postings to review, choose one and press ENTER", len(postings)),
		Items: items,
		Size:  15,
	}
	idx, selected, err := prompt.Run()
	if err != nil {
		return err
	}

	switch selected {
	case PromptExit:
		return errExit
	case PromptDumpToFile:
		collection := &jobs.Postings{Items: postings}
		filename, err := collection.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump postings to file: %w", err)
		}
		logger.Info("dumped postings to file", zap.String("filename", filename))
		return nil
	default:
		return triage(ctx, st, postings[idx], logger)
	}
}

// triage handles one selected posting until the reviewer goes back.
func triage(ctx context.Context, st *store.Store, p *jobs.Posting, zlog *zap.Logger) error {
	for {
		actionPrompt := promptui.Select{
			Label: p.Summary(),
			Items: []string{
				PromptShowDetails, PromptInterested, PromptApplied,
				PromptRejected, PromptArchive, PromptBack,
			},
		}
		_, action, err := actionPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptBack:
			return nil
		case PromptShowDetails:
			fmt.Printf("\n%s\n%s\n\n%s\n\n", p.Summary(), p.URL,
				logger.TruncateForLog(p.Description, descriptionPreview))
			continue
		}

		var target jobs.Status
		switch action {
		case PromptInterested:
			target = jobs.StatusInterested
		case PromptApplied:
			target = jobs.StatusApplied
		case PromptRejected:
			target = jobs.StatusRejected
		case PromptArchive:
			target = jobs.StatusArchived
		default:
			return fmt.Errorf("invalid action: %s", action)
		}

		if err := st.UpdateStatus(ctx, p.IdentityKey(), target); err != nil {
			return err
		}
		zlog.Info("posting updated",
			zap.String("title", p.Title),
			zap.String("company", p.Company),
			zap.String("status", string(target)),
		)
		return nil
	}
}
