package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/canteen/core/student"
)

func (cli *commandLine) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			students, err := cli.stdSvc.Seed(cmd.Context())
			if err != nil {
				return err
			}
			cli.printf("%d students seeded\n", len(students))
			return nil
		},
	}
}

func (cli *commandLine) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import students from a .csv or .xlsx roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.importStudents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cli.printf("%d students imported, %d rows failed\n", res.Imported, len(res.Failed))
			for _, rowErr := range res.Failed {
				cli.printf("  row %d (%s): %v\n", rowErr.Row, rowErr.ID, rowErr.Errors)
			}
			return nil
		},
	}
}

func (cli *commandLine) importStudents(ctx context.Context, path string) (student.ImportResult, error) {
	format, err := student.FormatFromFilename(path)
	if err != nil {
		return student.ImportResult{}, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return student.ImportResult{}, errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	res, err := cli.stdSvc.Import(ctx, f, format)
	if err != nil {
		return res, cli.describe(err)
	}
	return res, nil
}

func (cli *commandLine) badgesCommand() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "badges OUT.pdf",
		Short: "Print the QR badges of the students to a PDF sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			students, err := cli.stdSvc.Query(cmd.Context(), &student.QueryFilter{ClassName: class}, nil)
			if err != nil {
				return err
			}
			if err = writeFile(args[0], func(f *os.File) error { return cli.reports.BadgeSheetPDF(f, students) }); err != nil {
				return err
			}
			cli.printf("%d badges written to %s\n", len(students), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only print the badges of this class")
	return cmd
}

// writeFile creates path and hands it to write, removing it on failure.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	if err = write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	return f.Close()
}
