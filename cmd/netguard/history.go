package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent monitoring events from the journal",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("event history requires data_dir to be set in the config")
	}

	limit, _ := cmd.Flags().GetInt("limit")

	jnl, err := journal.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer jnl.Close()

	evs, err := jnl.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tTARGET\tMESSAGE")
	for _, e := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Type, e.Target, e.Message)
	}
	return w.Flush()
}
