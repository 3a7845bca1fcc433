package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag through one of the typed FlagSet getters and panics
// when the flag was never registered. Flags are declared in init(), so a
// lookup failure is a programming bug rather than a user error.
func mustFlag[T any](cmd *cobra.Command, name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s on %q: %v", name, cmd.Name(), err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd, name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd, name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd, name, cmd.Flags().GetString)
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustFlag(cmd, name, cmd.Flags().GetFloat64)
}
