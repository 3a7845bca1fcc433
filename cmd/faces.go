package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/imageutil"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage the faces directory",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ids stored in the faces directory",
	Args:  cobra.NoArgs,
	RunE:  runFacesList,
}

var facesAddCmd = &cobra.Command{
	Use:   "add <id> <image>",
	Short: "Enroll or replace a face",
	Long: `Enroll or replace the face of <id> with the picture <image>.
The picture must contain exactly one face. Refused while a server holds
the faces directory; use its POST /faces endpoint instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runFacesAdd,
}

var facesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a stored face",
	Long: `Remove the stored picture of <id>. Refused while a server holds the
faces directory; use its DELETE /faces endpoint instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesRemove,
}

var facesScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Encode every stored face and report pictures the server would skip",
	Args:  cobra.NoArgs,
	RunE:  runFacesScan,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesAddCmd, facesRemoveCmd, facesScanCmd)

	facesListCmd.Flags().Bool("json", false, "Output as JSON")
	facesScanCmd.Flags().Bool("json", false, "Output the report as JSON")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func runFacesList(cmd *cobra.Command, args []string) error {
	a := newApp(loadConfig(cmd), 0)

	ids, err := a.store.ListStoredIDs()
	if err != nil {
		return fmt.Errorf("listing faces: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return printJSON(ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("\n%d faces in %s\n", len(ids), a.store.Dir())
	return nil
}

// readPicture loads an image file given on the command line.
func readPicture(path string) ([]byte, error) {
	if !imageutil.IsPicture(path) {
		return nil, fmt.Errorf("%w: %s is not a supported picture", catalog.ErrInvalidImage, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func runFacesAdd(cmd *cobra.Command, args []string) error {
	id, path := args[0], args[1]
	a := newApp(loadConfig(cmd), 0)
	lock, err := a.lockFacesDir()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	image, err := readPicture(path)
	if err != nil {
		return err
	}

	replaced, err := a.store.Exists(id)
	if err != nil {
		return fmt.Errorf("checking %s: %w", id, err)
	}
	if _, err := a.manager.Add(cmd.Context(), id, image); err != nil {
		return fmt.Errorf("adding %s: %w", id, err)
	}
	if replaced {
		fmt.Printf("Replaced %s from %s\n", id, path)
	} else {
		fmt.Printf("Enrolled %s from %s\n", id, path)
	}
	return nil
}

// runFacesRemove deletes the stored picture directly; the offline catalog is
// empty so there is no entry to drop.
func runFacesRemove(cmd *cobra.Command, args []string) error {
	a := newApp(loadConfig(cmd), 0)
	lock, err := a.lockFacesDir()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := a.store.Delete(args[0]); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("no stored face for %q", args[0])
		}
		return fmt.Errorf("removing %s: %w", args[0], err)
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runFacesScan(cmd *cobra.Command, args []string) error {
	a := newApp(loadConfig(cmd), 0)
	jsonOutput := mustGetBool(cmd, "json")

	ids, err := a.store.ListStoredIDs()
	if err != nil {
		return fmt.Errorf("listing faces: %w", err)
	}
	if len(ids) == 0 {
		fmt.Printf("No faces found in %s\n", a.store.Dir())
		return nil
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Encoding %d stored faces\n\n", len(ids))
		bar = progressbar.NewOptions(len(ids),
			progressbar.OptionSetDescription("Encoding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	report, err := a.manager.Bootstrap(cmd.Context(), func(string, error) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("scanning faces: %w", err)
	}

	if jsonOutput {
		return printJSON(report)
	}

	fmt.Printf("Loaded:  %d\n", len(report.Loaded))
	fmt.Printf("Skipped: %d\n", len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Printf("  %s: %s\n", s.ID, s.Reason)
	}
	fmt.Printf("Took %s\n", report.Duration.Round(time.Millisecond))
	return nil
}
