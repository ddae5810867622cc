package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/params"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect and validate parameter tables",
}

var paramsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the parameter table in use as JSON",
	Long: `Write the parameter table in use as JSON: the table named by
scheduler.parameters_file in the config, or the built-in defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		schedCfg, err := cfg.SchedulerConfig()
		if err != nil {
			return err
		}

		if outPath == "" || outPath == "-" {
			return params.Export(cmd.OutOrStdout(), schedCfg.Parameters)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		if err := params.Export(f, schedCfg.Parameters); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", outPath)
		return nil
	},
}

var paramsCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a parameter table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := params.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (version %s)\n", args[0], p.Version)
		return nil
	},
}

func init() {
	paramsExportCmd.Flags().StringP("out", "o", "", "Output file (default stdout)")

	paramsCmd.AddCommand(paramsExportCmd)
	paramsCmd.AddCommand(paramsCheckCmd)
}
