// Package export serializes expenses to CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"expenses/internal/core"
)

// Header is the first line of every export.
const Header = "id,title,amount,category,date,notes"

const (
	// Filename is the suggested download name.
	Filename = "expenses.csv"
	// ContentType is the MIME type the export is served with.
	ContentType = "text/csv; charset=utf-8"
)

// MarshalExpense converts an expense to a CSV record in Header order.
func MarshalExpense(e core.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Title,
		core.FormatAmount(e.Amount),
		e.Category,
		e.Date,
		e.Notes,
	}
}

// WriteCSV writes the header followed by one record per expense, in the
// order given.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range expenses {
		if err := cw.Write(MarshalExpense(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// AttachmentDisposition is the Content-Disposition value for a download.
func AttachmentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", Filename)
}
