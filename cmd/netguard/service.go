package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netguard/netguard/pkg/svc"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the background service registration",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start netguard as a background service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Install(flagConfig); err != nil {
			return err
		}
		fmt.Println("✓ Service installed and started")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the background service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Uninstall(); err != nil {
			return err
		}
		fmt.Println("✓ Service removed")
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
}
