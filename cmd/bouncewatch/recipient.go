package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bouncewatch/internal/config"
	"bouncewatch/internal/policy"
	"bouncewatch/internal/store"
)

var (
	recipientListLimit  int
	recipientListOffset int
	recipientListEmail  string
)

var recipientCmd = &cobra.Command{
	Use:   "recipient",
	Short: "Recipient registry commands",
}

var recipientAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Register a recipient address",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipientAdd,
}

var recipientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered recipients with their counters",
	RunE:  runRecipientList,
}

func init() {
	recipientListCmd.Flags().IntVar(&recipientListLimit, "limit", 50, "Maximum number of recipients to show")
	recipientListCmd.Flags().IntVar(&recipientListOffset, "offset", 0, "Number of recipients to skip")
	recipientListCmd.Flags().StringVar(&recipientListEmail, "email", "", "Filter by address")

	recipientCmd.AddCommand(recipientAddCmd, recipientListCmd)
	rootCmd.AddCommand(recipientCmd)
}

func openStore() (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return st, cfg, nil
}

func runRecipientAdd(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.PutRecipient(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to add recipient: %w", err)
	}

	fmt.Printf("Recipient %d registered for %s\n", r.ID, r.Email)
	return nil
}

func runRecipientList(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	policyCfg := policy.Resolve(cfg.PolicySettings())

	recipients, err := st.ListRecipients(ctx, recipientListLimit, recipientListOffset)
	if err != nil {
		return fmt.Errorf("failed to list recipients: %w", err)
	}
	if recipientListEmail != "" {
		recipients, err = st.RecipientsByEmail(ctx, recipientListEmail)
		if err != nil {
			return fmt.Errorf("failed to list recipients: %w", err)
		}
	}

	if len(recipients) == 0 {
		fmt.Println("No recipients registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tBOUNCES\tSENDS\tOVER THRESHOLD")
	for _, r := range recipients {
		c, err := st.Counters(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to read counters for %d: %w", r.ID, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%v\n",
			r.ID, r.Email, c.BounceCount, c.SendCount, policy.OverThreshold(c, policyCfg))
	}
	return w.Flush()
}
