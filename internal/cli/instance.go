package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для инстансов backend'ов.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Inspect backend instances",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configured instances per backend family",
			RunE: func(cmd *cobra.Command, args []string) error {
				families, err := clientFn().ListInstances()
				if err != nil {
					return err
				}

				rows := make([][]string, len(families))
				for i, f := range families {
					rows[i] = []string{f.Family, f.DefaultInstance, strings.Join(f.Instances, ",")}
				}
				outputFn().Print([]string{"FAMILY", "DEFAULT", "INSTANCES"}, rows, families)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-cache <family>",
			Short: "Drop cached clients of a backend family",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := clientFn().ClearCache(args[0]); err != nil {
					return err
				}
				outputFn().Success(fmt.Sprintf("Client cache cleared: %s", args[0]))
				return nil
			},
		},
	)

	return cmd
}
