package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/midgardlabs/tokend/internal/tokend/app"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tokend",
		Short:         "OAuth2 client_credentials token service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the token service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			return application.Run()
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load clients from a JSON seed file into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()

			count, err := app.Seed(cmd.Context(), cfg, file)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d clients\n", count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the seed file (defaults to TOKEND_SEED_FILE)")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tokend version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tokend %s\n", app.BuildVersion)
			return err
		},
	}
}
