package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newModelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Print the configured model and its metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, h, err := opts.handler()
			if err != nil {
				return err
			}
			defer h.Close()

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(h.GetModel())
		},
	}
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models advertised by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, h, err := opts.handler()
			if err != nil {
				return err
			}
			defer h.Close()

			ids, err := h.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			configured := h.GetModel().ID
			for _, id := range ids {
				if id == configured {
					fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render(id+" *"))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
