package utils

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"prospectflow/models"
)

// ExportOptions selects the columns of a contact export. Field columns
// come first in caller order, then the optional derived columns.
type ExportOptions struct {
	Columns                []string
	IncludeStatus          bool
	IncludeActivitiesCount bool
	IncludePipeline        bool
}

// ExportHeader builds the CSV header row for the given options.
func ExportHeader(opts ExportOptions) []string {
	header := make([]string, 0, len(opts.Columns)+3)
	header = append(header, opts.Columns...)
	if opts.IncludeStatus {
		header = append(header, "status")
	}
	if opts.IncludeActivitiesCount {
		header = append(header, "activities_count")
	}
	if opts.IncludePipeline {
		header = append(header, "in_pipeline")
	}
	return header
}

// ExportRecord renders one contact as a CSV record. Missing document
// fields become empty cells; the pipeline flag renders as Yes/No. The
// contact must carry its derived status and activities count.
func ExportRecord(contact models.Contact, opts ExportOptions) []string {
	record := make([]string, 0, len(opts.Columns)+3)
	for _, field := range opts.Columns {
		v, ok := contact.Data.Field(field)
		if !ok {
			record = append(record, "")
			continue
		}
		record = append(record, StringifyField(v))
	}
	if opts.IncludeStatus {
		record = append(record, contact.Status)
	}
	if opts.IncludeActivitiesCount {
		record = append(record, strconv.FormatInt(contact.ActivitiesCount, 10))
	}
	if opts.IncludePipeline {
		if contact.InPipeline {
			record = append(record, "Yes")
		} else {
			record = append(record, "No")
		}
	}
	return record
}

// WriteContactsCSV streams the contacts as RFC 4180 CSV: header row first,
// one record per contact, quoting handled by encoding/csv.
func WriteContactsCSV(w io.Writer, contacts []models.Contact, opts ExportOptions) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ExportHeader(opts)); err != nil {
		return err
	}
	for _, contact := range contacts {
		if err := writer.Write(ExportRecord(contact, opts)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportFilename builds the attachment filename for a list export, e.g.
// "acme_prospects_contacts_20250131.csv".
func ExportFilename(listName string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, listName)
	if slug == "" {
		slug = "list"
	}
	return slug + "_contacts_" + time.Now().Format("20060102") + ".csv"
}
