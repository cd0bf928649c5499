package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clifmatch/internal/version"
)

type versionInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	IRSchema  string
}

type versionOptions struct {
	format   string
	showHash bool
	showDate bool
}

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	IRSchema  string `json:"ir_schema"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var (
		format   string
		showHash bool
		showDate bool
		showFull bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show clifmatch build fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := versionOptions{
				format:   strings.ToLower(format),
				showHash: showHash || showFull,
				showDate: showDate || showFull,
			}
			switch opts.format {
			case "pretty", "json":
				// supported
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}

			info := collectVersionInfo()
			if opts.format == "json" {
				return renderVersionJSON(cmd.OutOrStdout(), info, opts)
			}
			renderVersionPretty(cmd.OutOrStdout(), info, opts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHash, "hash", false, "include git commit hash")
	cmd.Flags().BoolVar(&showDate, "date", false, "include build timestamp")
	cmd.Flags().BoolVar(&showFull, "full", false, "show every recorded bit of build metadata")
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	return cmd
}

func collectVersionInfo() versionInfo {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return versionInfo{
		Version:   v,
		GitCommit: strings.TrimSpace(version.GitCommit),
		BuildDate: strings.TrimSpace(version.BuildDate),
		IRSchema:  version.IRSchema,
	}
}

func renderVersionPretty(out io.Writer, info versionInfo, opts versionOptions) {
	fmt.Fprintf(out, "clifmatch %s (IR schema %s)\n", info.Version, info.IRSchema)
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, info versionInfo, opts versionOptions) error {
	payload := versionPayload{
		Tool:     "clifmatch",
		Version:  stripANSI(info.Version),
		IRSchema: info.IRSchema,
	}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// stripANSI drops the color escapes version.Version may carry.
func stripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
