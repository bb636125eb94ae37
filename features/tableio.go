package features

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// ReadTable reads a CSV or XLSX upload, choosing the format by file extension.
func ReadTable(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	}
	return nil, fmt.Errorf("%w: %q (want .csv or .xlsx)", ErrUnsupportedFormat, filename)
}

// ReadCSV parses a comma-separated table whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	// Short or long rows are fitted to the header in newTable.
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return newTable(records)
}

// ReadXLSX reads the first sheet of a workbook; its first row is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing excel file")
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.New("table is empty (no header row)")
	}
	header := make([]string, len(records[0]))
	for j, h := range records[0] {
		header[j] = strings.TrimSpace(h)
	}
	header[0] = strings.TrimSpace(strings.TrimPrefix(header[0], utf8BOM))
	t := &Table{Columns: header, Rows: make([][]string, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, fitRow(rec, len(header), i+1))
	}
	return t, nil
}

// fitRow pads a short row with empty cells (xlsx drops trailing blanks, csv
// rows may be ragged) and cuts cells past the last named column.
func fitRow(rec []string, width, line int) []string {
	if len(rec) > width {
		if !isBlank(rec[width:]) {
			logrus.WithFields(logrus.Fields{"row": line, "cells": len(rec), "columns": width}).
				Warn("Dropping cells beyond the header")
		}
		return rec[:width:width]
	}
	for len(rec) < width {
		rec = append(rec, "")
	}
	return rec
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes the header and rows as UTF-8 CSV with no index column.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX writes the table into the first sheet of a new workbook.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing excel file")
		}
	}()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", toRow(t.Columns)); err != nil {
		return fmt.Errorf("failed to write excel header: %w", err)
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, toRow(row)); err != nil {
			return fmt.Errorf("failed to write excel row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}

func toRow(cells []string) *[]interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return &row
}
