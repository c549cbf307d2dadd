package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/logger"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Print the portfolio links matching a list of skills",
	Example: `  coldmail match --skills "python, machine learning"
  coldmail match --skills go --skills k8s`,
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringSlice("skills", nil, "skills to look up, comma separated or repeated")
	_ = matchCmd.MarkFlagRequired("skills")
}

func match(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := validatePortfolio(config); err != nil {
		logger.Fatal("invalid portfolio config", zap.Error(err))
	}

	catalog, err := loadCatalog(context.Background(), &config.Portfolio, logger)
	if err != nil {
		logger.Fatal("loading the portfolio catalog", zap.Error(err))
	}

	skills, _ := cmd.Flags().GetStringSlice("skills")
	links := catalog.QueryLinks(skills)
	if len(links) == 0 {
		logger.Info("no matching projects", zap.Strings("skills", skills))
		return
	}

	for _, link := range links {
		fmt.Fprintln(cmd.OutOrStdout(), link)
	}
}
