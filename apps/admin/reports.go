package main

import (
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/services/report"
)

func (cli *commandLine) statsCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the daily attendance breakdown by gender as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(date)
			if err != nil {
				return err
			}
			stats, err := cli.attSvc.DailyStats(cmd.Context(), d)
			if err != nil {
				return err
			}
			return report.DailyStatsCSV(cli.out, stats)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to report on, YYYY-MM-DD (default today)")
	return cmd
}

func (cli *commandLine) absenteesCommand() *cobra.Command {
	var (
		asOf string
		days int
	)
	cmd := &cobra.Command{
		Use:   "absentees",
		Short: "List the students without any attendance over the last days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(asOf)
			if err != nil {
				return err
			}
			abs, err := cli.attSvc.LongAbsentees(cmd.Context(), d, days)
			if err != nil {
				return cli.describe(err)
			}

			cli.printf("%d students absent from %s to %s\n", len(abs.Students), abs.From, abs.AsOf)
			w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			for _, std := range abs.Students {
				_, _ = w.Write([]byte(std.ID + "\t" + std.FullName() + "\t" + std.ClassName + "\n"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "last day of the window, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 0, "window size in days (default canteen.absenceWindowDays)")
	return cmd
}

func (cli *commandLine) reportCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "report OUT.pdf",
		Short: "Write the daily attendance report to a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(date)
			if err != nil {
				return err
			}
			stats, err := cli.attSvc.DailyStats(cmd.Context(), d)
			if err != nil {
				return err
			}
			if err = writeFile(args[0], func(f *os.File) error { return cli.reports.DailyPDF(f, stats) }); err != nil {
				return err
			}
			cli.printf("report for %s written to %s\n", stats.Date, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to report on, YYYY-MM-DD (default today)")
	return cmd
}
