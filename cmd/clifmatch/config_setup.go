package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clifmatch/internal/config"
)

// loadConfig reads --config, or the nearest clifmatch.toml, into a.cfg.
func (a *app) loadConfig(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
		return nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, _, err := config.Discover(wd)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// stringSetting returns the flag value when it was given on the command
// line, fallback otherwise.
func stringSetting(cmd *cobra.Command, name, fallback string) (string, error) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return "", fmt.Errorf("unknown flag %q", name)
	}
	if !flag.Changed {
		return fallback, nil
	}
	return flag.Value.String(), nil
}

func intSetting(cmd *cobra.Command, name string, fallback int) (int, error) {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	if !cmd.Flags().Changed(name) {
		return fallback, nil
	}
	return v, nil
}

// stringsSetting appends repeated flag values to the manifest's list.
func stringsSetting(cmd *cobra.Command, name string, base []string) ([]string, error) {
	v, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	out := make([]string, 0, len(base)+len(v))
	out = append(out, base...)
	return append(out, v...), nil
}
