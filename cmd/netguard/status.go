package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/journal"
	"github.com/netguard/netguard/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current health of all monitored targets",
	Long: `Query a running netguard daemon for each target's current health
state and print a summary table. When the daemon is not reachable and a
journal is configured, the last recorded status of each target is shown
instead.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("addr", "", "Daemon control address (default: listen_addr from config)")
}

type statusPayload struct {
	Timestamp time.Time        `json:"timestamp"`
	Targets   []state.Snapshot `json:"targets"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.ListenAddr
	}

	snaps, err := fetchStatus(addr)
	if err != nil {
		if cfg.DataDir == "" {
			return fmt.Errorf("is the daemon running? failed to query %s: %w", addr, err)
		}

		// Daemon unreachable; fall back to the snapshots it last journaled
		snaps, err = journaledStatus(cfg.DataDir)
		if err != nil {
			return err
		}
		fmt.Println("daemon not reachable, showing last recorded status")
	}

	return printStatusTable(snaps)
}

func fetchStatus(addr string) ([]state.Snapshot, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/v1/status", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return payload.Targets, nil
}

func journaledStatus(dataDir string) ([]state.Snapshot, error) {
	jnl, err := journal.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer jnl.Close()

	snaps, err := jnl.Statuses()
	if err != nil {
		return nil, fmt.Errorf("failed to read journaled status: %w", err)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Target < snaps[j].Target })
	return snaps, nil
}

func printStatusTable(snaps []state.Snapshot) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATUS\tFAILURES\tLAST CHECK\tLATENCY")
	for _, t := range snaps {
		lastCheck := "-"
		if !t.LastCheck.IsZero() {
			lastCheck = t.LastCheck.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			t.Target, t.Status, t.ConsecutiveFailures, lastCheck, t.LastLatency)
	}
	return w.Flush()
}
