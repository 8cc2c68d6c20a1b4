package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

// applicationRow mirrors the applications table. The embedded sequences are
// stored as JSONB and decoded on the way out.
type applicationRow struct {
	ID             uuid.UUID  `db:"id"`
	UserID         uuid.UUID  `db:"user_id"`
	CompanyName    string     `db:"company_name"`
	JobTitle       string     `db:"job_title"`
	JobPortal      string     `db:"job_portal"`
	JobLink        string     `db:"job_link"`
	Location       string     `db:"location"`
	EmploymentType string     `db:"employment_type"`
	DateApplied    time.Time  `db:"date_applied"`
	Status         string     `db:"status"`
	Source         string     `db:"source"`
	SalaryRange    string     `db:"salary_range"`
	RecruiterName  string     `db:"recruiter_name"`
	RecruiterEmail string     `db:"recruiter_email"`
	RecruiterPhone string     `db:"recruiter_phone"`
	FollowUpDate   *time.Time `db:"follow_up_date"`
	Notes          string     `db:"notes"`
	ResumeVersion  string     `db:"resume_version"`
	StatusHistory  []byte     `db:"status_history"`
	Interactions   []byte     `db:"interactions"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

const applicationColumns = `id, user_id, company_name, job_title, job_portal, job_link, location,
	employment_type, date_applied, status, source, salary_range, recruiter_name,
	recruiter_email, recruiter_phone, follow_up_date, notes, resume_version,
	status_history, interactions, created_at, updated_at`

func (r *applicationRow) toDomain() (types.Application, error) {
	app := types.Application{
		ID:             r.ID,
		OwnerID:        r.UserID,
		CompanyName:    r.CompanyName,
		JobTitle:       r.JobTitle,
		Portal:         types.Portal(r.JobPortal),
		JobLink:        r.JobLink,
		Location:       r.Location,
		EmploymentType: types.EmploymentType(r.EmploymentType),
		DateApplied:    r.DateApplied.UTC(),
		Status:         types.Status(r.Status),
		Source:         types.Source(r.Source),
		SalaryRange:    r.SalaryRange,
		RecruiterName:  r.RecruiterName,
		RecruiterEmail: r.RecruiterEmail,
		RecruiterPhone: r.RecruiterPhone,
		Notes:          r.Notes,
		ResumeVersion:  r.ResumeVersion,
		StatusHistory:  []types.StatusChange{},
		Interactions:   []types.Interaction{},
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.FollowUpDate != nil {
		t := r.FollowUpDate.UTC()
		app.FollowUpDate = &t
	}
	if err := json.Unmarshal(r.StatusHistory, &app.StatusHistory); err != nil {
		return app, fmt.Errorf("decode status history of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Interactions, &app.Interactions); err != nil {
		return app, fmt.Errorf("decode interactions of %s: %w", r.ID, err)
	}
	return app, nil
}

func rowsToDomain(rows []applicationRow) ([]types.Application, error) {
	out := make([]types.Application, 0, len(rows))
	for i := range rows {
		app, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

// encodeSequences marshals the embedded sequences for the JSONB columns.
func encodeSequences(a *types.Application) (history, interactions []byte, err error) {
	h := a.StatusHistory
	if h == nil {
		h = []types.StatusChange{}
	}
	in := a.Interactions
	if in == nil {
		in = []types.Interaction{}
	}
	if history, err = json.Marshal(h); err != nil {
		return nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	if interactions, err = json.Marshal(in); err != nil {
		return nil, nil, fmt.Errorf("encode interactions: %w", err)
	}
	return history, interactions, nil
}
