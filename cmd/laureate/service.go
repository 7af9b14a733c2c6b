package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const serviceName = "laureate"

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the systemd user unit that runs 'laureate serve'",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write the systemd user unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runtime.GOOS != "linux" {
				return fmt.Errorf("unsupported OS: %s (systemd units need linux)", runtime.GOOS)
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			unitPath, err := installSystemd(execPath, resolveConfigPath())
			if err != nil {
				return err
			}
			fmt.Printf("Service installed: %s\n", unitPath)
			fmt.Printf("To start:  systemctl --user start %s\n", serviceName)
			fmt.Printf("To enable: systemctl --user enable %s\n", serviceName)
			fmt.Printf("To stop:   systemctl --user stop %s\n", serviceName)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the systemd user unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			unitPath := systemdUnitPath()
			if err := os.Remove(unitPath); err != nil {
				return fmt.Errorf("remove unit: %w", err)
			}
			fmt.Printf("Service uninstalled: %s\n", unitPath)
			return nil
		},
	})

	return cmd
}

func systemdUnitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", serviceName+".service")
}

func installSystemd(execPath, cfgPath string) (string, error) {
	unitPath := systemdUnitPath()
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(unitPath, []byte(renderUnit(execPath, cfgPath)), 0o644); err != nil {
		return "", err
	}
	return unitPath, nil
}

func renderUnit(execPath, cfgPath string) string {
	unit := strings.ReplaceAll(systemdTemplate, "{{EXEC}}", execPath)
	return strings.ReplaceAll(unit, "{{CONFIG}}", cfgPath)
}

// The unit reads credentials from an optional environment file so they stay
// out of the config.
const systemdTemplate = `[Unit]
Description=LAUREATE WhatsApp tutor gateway
After=network-online.target

[Service]
Type=simple
EnvironmentFile=-%h/.laureate/env
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
