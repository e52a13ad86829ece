package projection

import (
	"encoding/csv"
	"io"

	"github.com/facturo/facturo-backend/internal/report/domain"
)

// WriteCSV writes a header of column labels followed by one record per row,
// cells in column order.
func WriteCSV(w io.Writer, columns []domain.Column, rows []map[string]string) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Label
		if header[i] == "" {
			header[i] = c.ID
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			record[i] = row[c.ID]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
