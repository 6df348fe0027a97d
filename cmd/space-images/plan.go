package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/ingest"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/paginate"
)

var planCmd = &cobra.Command{
	Use:   "plan [total]",
	Short: "Print the page requests a run would make",
	Long: `Without arguments plan prints the requests for every configured source.
With a total it prints the pages needed to collect that many records.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			total, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("total: %w", err)
			}
			printPlan(out, "total", total)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, job := range ingest.JobsFromConfig(cfg) {
			name := job.Source.Name()
			if !job.Search {
				printPlan(out, name, job.Amount)
				continue
			}
			for _, term := range job.Terms {
				printPlan(out, fmt.Sprintf("%s[%s]", name, term), job.Amount)
			}
		}
		return nil
	},
}

func printPlan(w io.Writer, label string, total int) {
	pages := paginate.Plan(total)
	fmt.Fprintf(w, "%s: %d records in %d pages\n", label, max(total, 0), len(pages))
	for _, p := range pages {
		fmt.Fprintf(w, "  page %d size %d\n", p.Number, p.Size)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
}
