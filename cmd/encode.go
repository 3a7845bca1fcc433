package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <image>",
	Short: "Print the embedding of the single face in a picture",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	a := newApp(loadConfig(cmd), 0)

	image, err := readPicture(args[0])
	if err != nil {
		return err
	}

	enc, err := a.manager.Encode(cmd.Context(), image)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", args[0], err)
	}
	return printJSON(map[string][]float32{"encoding": enc})
}
