// Package transfer converts applications to and from the CSV interchange format.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/jonathan/application-tracker/internal/types"
)

// Column names, in export order.
const (
	ColCompanyName    = "companyName"
	ColJobTitle       = "jobTitle"
	ColJobPortal      = "jobPortal"
	ColJobLink        = "jobLink"
	ColLocation       = "location"
	ColEmploymentType = "employmentType"
	ColDateApplied    = "dateApplied"
	ColStatus         = "status"
	ColSource         = "source"
	ColSalaryRange    = "salaryRange"
	ColRecruiterName  = "recruiterName"
	ColRecruiterEmail = "recruiterEmail"
	ColRecruiterPhone = "recruiterPhone"
	ColFollowUpDate   = "followUpDate"
	ColNotes          = "notes"
	ColResumeVersion  = "resumeVersion"
)

// Columns is the fixed export header.
var Columns = []string{
	ColCompanyName, ColJobTitle, ColJobPortal, ColJobLink, ColLocation,
	ColEmploymentType, ColDateApplied, ColStatus, ColSource, ColSalaryRange,
	ColRecruiterName, ColRecruiterEmail, ColRecruiterPhone, ColFollowUpDate,
	ColNotes, ColResumeVersion,
}

// Defaults applied to enum columns that are missing or blank on import.
const (
	DefaultPortal         = types.PortalOther
	DefaultEmploymentType = types.EmploymentFullTime
	DefaultStatus         = types.StatusBacklog
	DefaultSource         = types.SourceJobBoard
)

// TimeLayout is used for every timestamp cell.
const TimeLayout = time.RFC3339Nano

const utf8BOM = "\ufeff"

// Encode writes a header row followed by one row per application.
func Encode(w io.Writer, apps []types.Application) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range apps {
		if err := cw.Write(encodeRow(&apps[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(a *types.Application) []string {
	follow := ""
	if a.FollowUpDate != nil {
		follow = formatTime(*a.FollowUpDate)
	}
	return []string{
		a.CompanyName,
		a.JobTitle,
		string(a.Portal),
		a.JobLink,
		a.Location,
		string(a.EmploymentType),
		formatTime(a.DateApplied),
		string(a.Status),
		string(a.Source),
		a.SalaryRange,
		a.RecruiterName,
		a.RecruiterEmail,
		a.RecruiterPhone,
		follow,
		a.Notes,
		a.ResumeVersion,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// Row is one decoded data row. Problems holds every violation found; a row
// with problems must not be persisted.
type Row struct {
	Line     int
	Draft    types.Draft
	Problems []types.FieldError
}

// OK reports whether the row can be imported.
func (r Row) OK() bool { return len(r.Problems) == 0 }

// ErrEmptyDocument is returned when the input has no header row.
var ErrEmptyDocument = errors.New("csv document is empty")

// Decode parses a CSV document. Header names are matched case-insensitively
// and unknown columns are ignored. Each data row is parsed and validated on
// its own; only a missing header or an I/O failure aborts decoding.
func Decode(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDocument
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := headerIndex(header)
	if _, ok := index[ColCompanyName]; !ok {
		return nil, types.NewValidationError([]types.FieldError{{Field: "file", Reason: "header must include a companyName column"}})
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			rows = append(rows, Row{
				Line:     perr.StartLine,
				Problems: []types.FieldError{{Field: "row", Reason: perr.Err.Error()}},
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		rows = append(rows, decodeRow(line, record, index))
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	known := lo.SliceToMap(Columns, func(c string) (string, string) { return strings.ToLower(c), c })
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		name, ok := known[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return index
}

func isBlank(record []string) bool {
	return lo.EveryBy(record, func(cell string) bool { return strings.TrimSpace(cell) == "" })
}

func decodeRow(line int, record []string, index map[string]int) Row {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	row := Row{Line: line}

	d := types.Draft{
		CompanyName:    cell(ColCompanyName),
		JobTitle:       cell(ColJobTitle),
		Portal:         types.Portal(lo.CoalesceOrEmpty(cell(ColJobPortal), string(DefaultPortal))),
		JobLink:        cell(ColJobLink),
		Location:       cell(ColLocation),
		EmploymentType: types.EmploymentType(lo.CoalesceOrEmpty(cell(ColEmploymentType), string(DefaultEmploymentType))),
		Status:         types.Status(lo.CoalesceOrEmpty(cell(ColStatus), string(DefaultStatus))),
		Source:         types.Source(lo.CoalesceOrEmpty(cell(ColSource), string(DefaultSource))),
		SalaryRange:    cell(ColSalaryRange),
		RecruiterName:  cell(ColRecruiterName),
		RecruiterEmail: cell(ColRecruiterEmail),
		RecruiterPhone: cell(ColRecruiterPhone),
		Notes:          cell(ColNotes),
		ResumeVersion:  cell(ColResumeVersion),
	}

	dates := []struct {
		col string
		dst **types.DateTime
	}{
		{ColDateApplied, &d.DateApplied},
		{ColFollowUpDate, &d.FollowUpDate},
	}
	for _, date := range dates {
		raw := cell(date.col)
		if raw == "" {
			continue
		}
		t, _, err := types.ParseDateTime(raw)
		if err != nil {
			row.Problems = append(row.Problems, types.FieldError{Field: date.col, Reason: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
			continue
		}
		*date.dst = &types.DateTime{Time: t}
	}

	d.Normalize()
	row.Problems = append(row.Problems, types.Violations(d.Validate())...)
	row.Draft = d
	return row
}
