package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/probe"
)

// commonPorts are tried during a one-off connection test
var commonPorts = []int{80, 443, 8080}

var checkCmd = &cobra.Command{
	Use:   "check [address]",
	Short: "Run a one-off connectivity test against an address",
	Long: `Probe an arbitrary address once: a ping reachability test followed
by TCP connection attempts against common service ports. Without an
argument the configured default target is tested.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	address := cfg.DefaultTarget
	if len(args) > 0 {
		address = args[0]
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Testing %s\n\n", address)

	ping := probe.NewPingChecker(address).WithTimeout(cfg.ProbeTimeout.Std())
	printResult("ping", ping.Check(ctx))

	for _, port := range commonPorts {
		tcp := probe.NewTCPChecker(fmt.Sprintf("%s:%d", address, port)).
			WithTimeout(cfg.ProbeTimeout.Std())
		printResult(fmt.Sprintf("tcp/%d", port), tcp.Check(ctx))
	}

	return nil
}

func printResult(label string, r probe.Result) {
	if r.Healthy {
		fmt.Printf("  %-10s ok       %s (%s)\n", label, r.Message, r.Latency)
		return
	}
	fmt.Printf("  %-10s failed   %s\n", label, r.Message)
}
