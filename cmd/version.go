package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// resolveBuildInfo prefers the ldflags values and fills whatever is still
// unset from the build info embedded by `go build` / `go install`.
func resolveBuildInfo(bi *debug.BuildInfo, ok bool) buildInfo {
	info := buildInfo{
		Version:   Version,
		Commit:    CommitSHA,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if !ok || bi == nil {
		return info
	}

	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := resolveBuildInfo(debug.ReadBuildInfo())
		if mustGetBool(cmd, "json") {
			return printJSON(info)
		}

		commit := info.Commit
		if info.Modified {
			commit += " (modified)"
		}
		fmt.Printf("facerec %s\n", info.Version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", info.BuildDate)
		fmt.Printf("  Go:     %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
