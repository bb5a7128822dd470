package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/ogrelay/internal/relay"
)

func newLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <url>",
		Short: "Resolve one Instagram post URL and print the relay response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := relay.ValidateURL(args[0])
			if err != nil {
				return err
			}

			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Relay.Lookup(cmd.Context(), relay.NormalizeURL(target))
			if err != nil {
				return fmt.Errorf("lookup %s: %w", target, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			return nil
		},
	}
}
