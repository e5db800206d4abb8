package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bouncewatch/internal/suppression"
)

var (
	suppressionListLimit  int
	suppressionListOffset int
)

var suppressionCmd = &cobra.Command{
	Use:   "suppression",
	Short: "Suppression list commands",
}

var suppressionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the local suppression mirror",
	RunE:  runSuppressionList,
}

var suppressionCheckCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Check whether an address is suppressed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuppressionCheck,
}

var suppressionSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the SES account suppression list now",
	RunE:  runSuppressionSync,
}

func init() {
	suppressionListCmd.Flags().IntVar(&suppressionListLimit, "limit", 50, "Maximum number of entries to show")
	suppressionListCmd.Flags().IntVar(&suppressionListOffset, "offset", 0, "Number of entries to skip")

	suppressionCmd.AddCommand(suppressionListCmd, suppressionCheckCmd, suppressionSyncCmd)
	rootCmd.AddCommand(suppressionCmd)
}

func runSuppressionList(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	sups, err := st.ListSuppressions(ctx, suppressionListLimit, suppressionListOffset)
	if err != nil {
		return fmt.Errorf("failed to list suppressions: %w", err)
	}

	if len(sups) == 0 {
		fmt.Println("Suppression mirror is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tREASON\tLAST UPDATE")
	for _, s := range sups {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Email, s.Reason, s.LastUpdate.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runSuppressionCheck(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sup, err := st.Suppressed(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to check suppression: %w", err)
	}
	if sup == nil {
		fmt.Printf("%s is not on the suppression list\n", args[0])
		return nil
	}

	fmt.Printf("%s is suppressed (%s, last update %s)\n",
		sup.Email, sup.Reason, sup.LastUpdate.Format("2006-01-02 15:04:05"))
	return nil
}

func runSuppressionSync(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if !cfg.Suppression.Enabled {
		return fmt.Errorf("suppression sync is disabled in the configuration")
	}

	ctx := context.Background()
	client, err := suppression.NewSESClient(ctx, suppression.Config{
		Region:    cfg.Suppression.Region,
		AccessKey: cfg.Suppression.AccessKey,
		SecretKey: cfg.Suppression.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create SES client: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	syncer := suppression.NewSyncer(client, st, 0, logger)

	entries, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Suppression mirror updated, %d entries\n", entries)
	return nil
}
