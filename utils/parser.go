package utils

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/xuri/excelize/v2"

	"prospectflow/models"
)

// MaxUploadSize bounds import file uploads (10 MB).
const MaxUploadSize = 10 << 20

// PreviewRowCount is how many rows the upload preview returns.
const PreviewRowCount = 5

// ParsedFile is the outcome of parsing an uploaded contact file: the
// original column order plus one document per data row.
type ParsedFile struct {
	Headers []string
	Rows    []models.JSONMap
}

// UploadPreview is the preview payload shown before an import is confirmed.
type UploadPreview struct {
	Headers    []string         `json:"headers"`
	SampleRows []models.JSONMap `json:"sample_rows"`
	TotalRows  int              `json:"total_rows"`
}

// Preview returns the headers, the first few rows and the total row count.
func (pf *ParsedFile) Preview() UploadPreview {
	sample := pf.Rows
	if len(sample) > PreviewRowCount {
		sample = sample[:PreviewRowCount]
	}
	return UploadPreview{
		Headers:    pf.Headers,
		SampleRows: sample,
		TotalRows:  len(pf.Rows),
	}
}

// ParseContactsFile parses an uploaded .csv or .xlsx file. The first row
// is the header row; every following row becomes a document keyed by the
// headers. Empty cells are omitted so an absent value stays absent.
func ParseContactsFile(filename string, r io.Reader) (*ParsedFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx":
		return parseXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
}

func parseCSV(r io.Reader) (*ParsedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	// Strip a UTF-8 BOM; spreadsheet tools love to prepend one
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	return buildParsedFile(records)
}

func parseXLSX(r io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return buildParsedFile(records)
}

func buildParsedFile(records [][]string) (*ParsedFile, error) {
	if len(records) == 0 {
		return nil, errors.New("file has no header row")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	parsed := &ParsedFile{Rows: make([]models.JSONMap, 0, len(records)-1)}
	for _, h := range headers {
		if h != "" {
			parsed.Headers = append(parsed.Headers, h)
		}
	}
	if len(parsed.Headers) == 0 {
		return nil, errors.New("header row has no usable columns")
	}

	for _, record := range records[1:] {
		doc := models.JSONMap{}
		for i, header := range headers {
			if header == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			if value == "" {
				continue
			}
			doc[header] = value
		}
		parsed.Rows = append(parsed.Rows, doc)
	}

	return parsed, nil
}

// sniffDelimiter inspects the header line and picks the separator with the
// most occurrences; comma wins ties. Exports from European locales often
// use semicolons.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	best, bestCount := ',', bytes.Count(line, []byte(","))
	for _, candidate := range []byte{';', '\t'} {
		if count := bytes.Count(line, []byte{candidate}); count > bestCount {
			best, bestCount = rune(candidate), count
		}
	}
	return best
}

// CountInvalidEmails counts rows whose value under field is not a valid
// email address. Rows without the field are not counted.
func CountInvalidEmails(rows []models.JSONMap, field string) int {
	invalid := 0
	for _, row := range rows {
		v, ok := row.Field(field)
		if !ok {
			continue
		}
		if err := checkmail.ValidateFormat(StringifyField(v)); err != nil {
			invalid++
		}
	}
	return invalid
}
