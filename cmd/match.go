package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/facerec/internal/facematch"
	"github.com/kozaktomas/facerec/internal/roster"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Report which known faces appear in a picture",
	Long: `Report which known faces appear in a picture.

With --roster the picture is compared against a roster file (JSON or YAML,
either a list of {id, encoding} or an object with a "rostros" list).
Without it the faces directory is encoded first and used as the catalog;
--candidates N then lists the N nearest enrolled faces instead of the matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("roster", "", "Roster file to match against")
	matchCmd.Flags().Float64("tolerance", 0, "Maximum distance of a match (overrides MATCH_TOLERANCE)")
	matchCmd.Flags().Int("candidates", 0, "List this many nearest catalog faces per face, ignoring the tolerance")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	rosterPath := mustGetString(cmd, "roster")
	a := newApp(loadConfig(cmd), mustGetFloat64(cmd, "tolerance"))

	image, err := readPicture(args[0])
	if err != nil {
		return err
	}

	var result facematch.Result
	if rosterPath != "" {
		entries, err := roster.LoadFile(rosterPath)
		if err != nil {
			return err
		}
		result, err = a.manager.Recognize(cmd.Context(), image, entries)
		if err != nil {
			return fmt.Errorf("matching %s: %w", args[0], err)
		}
	} else {
		k := mustGetInt(cmd, "candidates")
		if k < 0 {
			return errors.New("--candidates must not be negative")
		}
		if _, err := a.manager.Bootstrap(cmd.Context(), nil); err != nil {
			return fmt.Errorf("loading stored faces: %w", err)
		}
		if k > 0 {
			result, err = a.manager.Candidates(cmd.Context(), image, k)
		} else {
			result, err = a.manager.Identify(cmd.Context(), image)
		}
		if err != nil {
			return fmt.Errorf("identifying %s: %w", args[0], err)
		}
	}

	if mustGetBool(cmd, "json") {
		return printJSON(result)
	}

	fmt.Printf("Faces found: %d (tolerance %.2f)\n", result.Count, a.manager.Tolerance())
	if len(result.Faces) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, f := range result.Faces {
		fmt.Printf("  face #%d  %-30s  dist %.4f\n", f.Query, f.ID, f.Dist)
	}
	return nil
}
