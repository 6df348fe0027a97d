package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/export"
)

var (
	convertIn  string
	convertOut string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an exported JSON dataset to CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := convertIn, convertOut
		if in == "" || out == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if in == "" {
				in = cfg.Output.JSONPath
			}
			if out == "" {
				out = cfg.Output.CSVPath
			}
		}
		n, err := export.JSONToCSV(in, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, out)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertIn, "in", "", "JSON dataset to read (default output.json_path)")
	convertCmd.Flags().StringVar(&convertOut, "out", "", "CSV file to write (default output.csv_path)")
	rootCmd.AddCommand(convertCmd)
}
