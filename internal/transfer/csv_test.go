package transfer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/types"
)

func sampleApplications() []types.Application {
	applied := time.Date(2024, 2, 10, 9, 30, 15, 123000000, time.UTC)
	follow := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	owner := uuid.New()

	full := types.NewApplication(uuid.New(), owner, types.Draft{
		CompanyName:    "Acme, Inc.",
		JobTitle:       "Backend \"Go\" Engineer",
		Portal:         types.PortalCompanySite,
		JobLink:        "https://acme.example.com/jobs/42",
		Location:       "Pune",
		EmploymentType: types.EmploymentContract,
		DateApplied:    &types.DateTime{Time: applied},
		Status:         types.StatusTechnicalRound,
		Source:         types.SourceReferral,
		SalaryRange:    "20-25 LPA",
		RecruiterName:  "Priya",
		RecruiterEmail: "priya@acme.example.com",
		RecruiterPhone: "+91 98765 43210",
		FollowUpDate:   &types.DateTime{Time: follow},
		Notes:          "line one\nline two",
		ResumeVersion:  "v3",
	}, applied)

	minimal := types.NewApplication(uuid.New(), owner, types.Draft{
		CompanyName:    "Globex",
		JobTitle:       "SRE",
		Portal:         types.PortalLinkedIn,
		EmploymentType: types.EmploymentFullTime,
		Status:         types.StatusApplied,
		Source:         types.SourceJobBoard,
		DateApplied:    &types.DateTime{Time: applied.Add(time.Hour)},
	}, applied)

	return []types.Application{full, minimal}
}

func TestEncode_HeaderAndEmptyCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleApplications()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "2024-02-10T09:30:15.123Z", records[1][6])
	assert.Equal(t, "2024-02-20T00:00:00Z", records[1][13])
	assert.Equal(t, "", records[2][3], "unset jobLink renders empty")
	assert.Equal(t, "", records[2][13], "unset followUpDate renders empty")
}

func TestEncode_EmptySetWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestRoundTrip(t *testing.T) {
	original := sampleApplications()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, original))

	rows, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(original))

	for i, row := range rows {
		require.True(t, row.OK(), "row %d problems: %v", row.Line, row.Problems)
		got := types.NewApplication(uuid.New(), original[i].OwnerID, row.Draft, time.Now())
		want := original[i]

		assert.Equal(t, want.CompanyName, got.CompanyName)
		assert.Equal(t, want.JobTitle, got.JobTitle)
		assert.Equal(t, want.Portal, got.Portal)
		assert.Equal(t, want.JobLink, got.JobLink)
		assert.Equal(t, want.Location, got.Location)
		assert.Equal(t, want.EmploymentType, got.EmploymentType)
		assert.True(t, want.DateApplied.Equal(got.DateApplied))
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Source, got.Source)
		assert.Equal(t, want.SalaryRange, got.SalaryRange)
		assert.Equal(t, want.RecruiterName, got.RecruiterName)
		assert.Equal(t, want.RecruiterEmail, got.RecruiterEmail)
		assert.Equal(t, want.RecruiterPhone, got.RecruiterPhone)
		assert.Equal(t, want.Notes, got.Notes)
		assert.Equal(t, want.ResumeVersion, got.ResumeVersion)
		if want.FollowUpDate == nil {
			assert.Nil(t, got.FollowUpDate)
		} else {
			require.NotNil(t, got.FollowUpDate)
			assert.True(t, want.FollowUpDate.Equal(*got.FollowUpDate))
		}
	}
}

func TestDecode_DefaultsForMissingColumns(t *testing.T) {
	doc := "\ufeffCompanyName , JOBTITLE,unknownColumn\nAcme,Engineer,ignored\n"
	rows, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.True(t, row.OK(), "%v", row.Problems)
	assert.Equal(t, 2, row.Line)
	assert.Equal(t, DefaultPortal, row.Draft.Portal)
	assert.Equal(t, DefaultEmploymentType, row.Draft.EmploymentType)
	assert.Equal(t, DefaultStatus, row.Draft.Status)
	assert.Equal(t, DefaultSource, row.Draft.Source)
	assert.Nil(t, row.Draft.DateApplied, "creation time is applied when the row is persisted")
}

func TestDecode_ReportsEveryBadRow(t *testing.T) {
	doc := strings.Join([]string{
		"companyName,jobTitle,status,dateApplied,jobPortal",
		"Acme,Engineer,Applied,2024-01-05,LinkedIn",
		"Globex,,Hired,05/01/2024,LinkedIn",
		"",
		"Initech,Analyst,,,Monster",
		"Umbrella,Scientist,Offer,2024-01-07,",
	}, "\n")

	rows, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 4, "blank lines are skipped")

	assert.True(t, rows[0].OK())
	assert.True(t, rows[3].OK())

	assert.Equal(t, 3, rows[1].Line)
	fields := map[string]bool{}
	for _, p := range rows[1].Problems {
		fields[p.Field] = true
	}
	assert.True(t, fields["jobTitle"])
	assert.True(t, fields["status"])
	assert.True(t, fields["dateApplied"])

	assert.Equal(t, 5, rows[2].Line)
	require.Len(t, rows[2].Problems, 1)
	assert.Equal(t, "jobPortal", rows[2].Problems[0].Field)
}

func TestDecode_MalformedQuoteIsARowProblem(t *testing.T) {
	doc := "companyName,jobTitle\nAc\"me,Engineer\nGlobex,SRE\n"
	rows, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].OK())
	assert.Equal(t, "row", rows[0].Problems[0].Field)
	assert.True(t, rows[1].OK())
}

func TestDecode_HeaderProblems(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrEmptyDocument))

	_, err = Decode(strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	require.Len(t, types.Violations(err), 1)
	assert.Equal(t, "file", types.Violations(err)[0].Field)
}
