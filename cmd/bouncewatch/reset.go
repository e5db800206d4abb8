package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bouncewatch/internal/events"
	"bouncewatch/internal/policy"
	"bouncewatch/internal/processor"
	"bouncewatch/internal/recipient"
)

var (
	resetEmail string
	resetID    int64
	resetActor int64
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset bounce counters for a recipient",
	Long:  `Reset bounce counters manually. In ratio mode the send count is cleared as well.`,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetEmail, "email", "", "Reset every recipient registered for this address")
	resetCmd.Flags().Int64Var(&resetID, "id", 0, "Reset a single recipient by ID")
	resetCmd.Flags().Int64Var(&resetActor, "actor", 0, "Actor ID recorded on the reset event")

	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if (resetEmail == "") == (resetID == 0) {
		return fmt.Errorf("exactly one of --email or --id is required")
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	policyCfg := policy.Resolve(cfg.PolicySettings())
	emitter := events.NewEmitter(logger)
	resolver := recipient.NewResolver(st, logger)
	proc := processor.New(st, resolver, emitter, policyCfg, logger)

	ctx := context.Background()

	if resetID != 0 {
		changed, err := proc.ResetRecipient(ctx, resetID, resetActor)
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("Counters reset for recipient %d\n", resetID)
		} else {
			fmt.Printf("Recipient %d had nothing to reset\n", resetID)
		}
		return nil
	}

	changed, err := proc.ResetByEmail(ctx, resetEmail, resetActor)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		fmt.Printf("No counters to reset for %s\n", resetEmail)
		return nil
	}
	for _, r := range changed {
		fmt.Printf("Counters reset for recipient %d (%s)\n", r.ID, r.Email)
	}
	return nil
}
