package student

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/canteen/core"
)

type ImportFormat string

const (
	FormatCSV  ImportFormat = "csv"
	FormatXLSX ImportFormat = "xlsx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrEmptyFile         = errors.New("file contains no students")

	// column order used when the file has no header row
	importColumns = []string{"id", "first_name", "last_name", "dob", "gender", "class_name"}
)

type (
	RowError struct {
		Row    int               `json:"row"` // 1-based, as displayed by spreadsheets
		ID     string            `json:"id,omitempty"`
		Errors map[string]string `json:"errors"`
	}

	ImportResult struct {
		Imported int        `json:"imported"`
		Failed   []RowError `json:"failed"`
	}
)

// FormatFromFilename guesses the ImportFormat from the file extension.
func FormatFromFilename(name string) (ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func readRows(r io.Reader, format ImportFormat) ([][]string, error) {
	switch format {
	case FormatCSV:
		rdr := csv.NewReader(r)
		rdr.FieldsPerRecord = -1
		rdr.TrimLeadingSpace = true
		rows, err := rdr.ReadAll()
		return rows, errors.Wrap(err, "reading csv")
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening xlsx")
		}
		defer func() { _ = f.Close() }()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		rows, err := f.GetRows(sheets[0])
		return rows, errors.Wrap(err, "reading xlsx")
	default:
		return nil, ErrUnsupportedFormat
	}
}

// columnIndexes maps the known columns to their position.
// hasHeader is false when the first row holds data, in which case importColumns order is assumed.
func columnIndexes(first []string) (idx map[string]int, hasHeader bool) {
	idx = make(map[string]int, len(importColumns))
	for i, cell := range first {
		name := strings.ReplaceAll(core.CleanString(strings.TrimPrefix(cell, "\ufeff"), true), " ", "_")
		for _, col := range importColumns {
			if name == col {
				idx[col] = i
			}
		}
	}
	if _, ok := idx["id"]; ok {
		return idx, true
	}
	for i, col := range importColumns {
		idx[col] = i
	}
	return idx, false
}

func rowToNewStudent(row []string, idx map[string]int) NewStudent {
	cell := func(col string) string {
		if i, ok := idx[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	return NewStudent{
		ID:        strings.TrimPrefix(cell("id"), "\ufeff"),
		FirstName: cell("first_name"),
		LastName:  cell("last_name"),
		DOB:       cell("dob"),
		Gender:    cell("gender"),
		ClassName: cell("class_name"),
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (svc *service) Import(ctx context.Context, r io.Reader, format ImportFormat) (ImportResult, error) {
	res := ImportResult{Failed: []RowError{}}

	rows, err := readRows(r, format)
	if err != nil {
		return res, err
	}
	if len(rows) == 0 {
		return res, ErrEmptyFile
	}

	idx, hasHeader := columnIndexes(rows[0])
	start := 0
	if hasHeader {
		start = 1
	}

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for i := start; i < len(rows); i++ {
			row := rows[i]
			if isBlankRow(row) {
				continue
			}
			ns := rowToNewStudent(row, idx)
			if vErr := ns.Validate(svc.validate, nil); vErr != nil {
				fldErrs, ok := core.FieldErrors(vErr, svc.translator)
				if !ok {
					return errors.Wrapf(vErr, "validating row %d", i+1)
				}
				res.Failed = append(res.Failed, RowError{Row: i + 1, ID: ns.ID, Errors: fldErrs})
				continue
			}
			if _, err := svc.upsert(ctx, ns, tx); err != nil {
				return errors.Wrapf(err, "importing row %d", i+1)
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{Failed: []RowError{}}, err
	}
	return res, nil
}
