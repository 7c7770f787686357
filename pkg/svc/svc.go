// Package svc registers the daemon as a background service. It is a thin
// adapter over systemd; the monitoring core does not depend on it.
package svc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	serviceName = "netguard"
	unitPath    = "/etc/systemd/system/netguard.service"
)

const unitTemplate = `[Unit]
Description=netguard network health monitor
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s monitor --config %s --json-log
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// Install writes the systemd unit and enables the service
func Install(configPath string) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("service install is only supported on linux (systemd)")
	}

	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	unit := fmt.Sprintf(unitTemplate, bin, absConfig)
	if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", serviceName); err != nil {
		return err
	}
	return nil
}

// Uninstall stops the service and removes the unit
func Uninstall() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("service uninstall is only supported on linux (systemd)")
	}

	// Best effort: the unit may not be enabled or running
	_ = systemctl("disable", "--now", serviceName)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}

	return systemctl("daemon-reload")
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %v failed: %w: %s", args, err, out)
	}
	return nil
}
