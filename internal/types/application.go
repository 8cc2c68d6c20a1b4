//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusChange is one entry of an application's status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// Interaction is a logged recruiter or candidate touchpoint.
type Interaction struct {
	ID    uuid.UUID       `json:"id"`
	Type  InteractionType `json:"type"`
	Date  time.Time       `json:"date"`
	Notes string          `json:"notes"`
}

// Application is a tracked job application owned by exactly one user.
// StatusHistory and Interactions only ever grow.
type Application struct {
	ID             uuid.UUID      `json:"id"`
	OwnerID        uuid.UUID      `json:"userId"`
	CompanyName    string         `json:"companyName"`
	JobTitle       string         `json:"jobTitle"`
	Portal         Portal         `json:"jobPortal"`
	JobLink        string         `json:"jobLink,omitempty"`
	Location       string         `json:"location,omitempty"`
	EmploymentType EmploymentType `json:"employmentType"`
	DateApplied    time.Time      `json:"dateApplied"`
	Status         Status         `json:"status"`
	Source         Source         `json:"source"`
	SalaryRange    string         `json:"salaryRange,omitempty"`
	RecruiterName  string         `json:"recruiterName,omitempty"`
	RecruiterEmail string         `json:"recruiterEmail,omitempty"`
	RecruiterPhone string         `json:"recruiterPhone,omitempty"`
	FollowUpDate   *time.Time     `json:"followUpDate,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	ResumeVersion  string         `json:"resumeVersion,omitempty"`
	StatusHistory  []StatusChange `json:"statusHistory"`
	Interactions   []Interaction  `json:"interactions"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of a.
func (a Application) Clone() Application {
	out := a
	if a.FollowUpDate != nil {
		t := *a.FollowUpDate
		out.FollowUpDate = &t
	}
	out.StatusHistory = slices.Clone(a.StatusHistory)
	out.Interactions = slices.Clone(a.Interactions)
	if out.StatusHistory == nil {
		out.StatusHistory = []StatusChange{}
	}
	if out.Interactions == nil {
		out.Interactions = []Interaction{}
	}
	return out
}

// DateTime accepts RFC 3339 timestamps as well as bare YYYY-MM-DD dates in JSON.
type DateTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, _, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// OptionalDateTime distinguishes an absent field from an explicit null.
type OptionalDateTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalDateTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var d DateTime
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	o.Value = &d.Time
	return nil
}

var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseDateTime parses an RFC 3339 timestamp or a YYYY-MM-DD date in UTC,
// at microsecond precision.
// dateOnly reports whether the input carried no time of day.
func ParseDateTime(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.UTC(), true, nil
	}
	for _, layout := range dateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC().Truncate(time.Microsecond), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}

// Draft holds the caller-supplied fields of a new application.
type Draft struct {
	CompanyName    string         `json:"companyName" validate:"required,max=100"`
	JobTitle       string         `json:"jobTitle" validate:"required,max=100"`
	Portal         Portal         `json:"jobPortal" validate:"required,portal"`
	JobLink        string         `json:"jobLink" validate:"max=2048,weburl"`
	Location       string         `json:"location" validate:"max=200"`
	EmploymentType EmploymentType `json:"employmentType" validate:"required,employment_type"`
	DateApplied    *DateTime      `json:"dateApplied"`
	Status         Status         `json:"status" validate:"required,status"`
	Source         Source         `json:"source" validate:"required,source"`
	SalaryRange    string         `json:"salaryRange" validate:"max=100"`
	RecruiterName  string         `json:"recruiterName" validate:"max=100"`
	RecruiterEmail string         `json:"recruiterEmail" validate:"max=254,optional_email"`
	RecruiterPhone string         `json:"recruiterPhone" validate:"max=50"`
	FollowUpDate   *DateTime      `json:"followUpDate"`
	Notes          string         `json:"notes" validate:"max=2000"`
	ResumeVersion  string         `json:"resumeVersion" validate:"max=100"`
}

// Normalize trims free text, lower-cases the recruiter email and defaults the status.
func (d *Draft) Normalize() {
	d.CompanyName = strings.TrimSpace(d.CompanyName)
	d.JobTitle = strings.TrimSpace(d.JobTitle)
	d.JobLink = strings.TrimSpace(d.JobLink)
	d.Location = strings.TrimSpace(d.Location)
	d.SalaryRange = strings.TrimSpace(d.SalaryRange)
	d.RecruiterName = strings.TrimSpace(d.RecruiterName)
	d.RecruiterEmail = strings.ToLower(strings.TrimSpace(d.RecruiterEmail))
	d.RecruiterPhone = strings.TrimSpace(d.RecruiterPhone)
	d.Notes = strings.TrimSpace(d.Notes)
	d.ResumeVersion = strings.TrimSpace(d.ResumeVersion)
	if d.Status == "" {
		d.Status = StatusBacklog
	}
}

// NewApplication builds a record from a validated draft and seeds its history
// with the initial status.
func NewApplication(id, owner uuid.UUID, d Draft, now time.Time) Application {
	app := Application{
		ID:             id,
		OwnerID:        owner,
		CompanyName:    d.CompanyName,
		JobTitle:       d.JobTitle,
		Portal:         d.Portal,
		JobLink:        d.JobLink,
		Location:       d.Location,
		EmploymentType: d.EmploymentType,
		DateApplied:    now,
		Status:         d.Status,
		Source:         d.Source,
		SalaryRange:    d.SalaryRange,
		RecruiterName:  d.RecruiterName,
		RecruiterEmail: d.RecruiterEmail,
		RecruiterPhone: d.RecruiterPhone,
		Notes:          d.Notes,
		ResumeVersion:  d.ResumeVersion,
		StatusHistory:  []StatusChange{{Status: d.Status, ChangedAt: now}},
		Interactions:   []Interaction{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.DateApplied != nil {
		app.DateApplied = d.DateApplied.Time
	}
	if d.FollowUpDate != nil {
		t := d.FollowUpDate.Time
		app.FollowUpDate = &t
	}
	return app
}

// Patch lists the fields an update may change. Nil means "leave as is".
// Owner and id are deliberately absent.
type Patch struct {
	CompanyName    *string          `json:"companyName"`
	JobTitle       *string          `json:"jobTitle"`
	Portal         *Portal          `json:"jobPortal"`
	JobLink        *string          `json:"jobLink"`
	Location       *string          `json:"location"`
	EmploymentType *EmploymentType  `json:"employmentType"`
	DateApplied    *DateTime        `json:"dateApplied"`
	Status         *Status          `json:"status"`
	Source         *Source          `json:"source"`
	SalaryRange    *string          `json:"salaryRange"`
	RecruiterName  *string          `json:"recruiterName"`
	RecruiterEmail *string          `json:"recruiterEmail"`
	RecruiterPhone *string          `json:"recruiterPhone"`
	FollowUpDate   OptionalDateTime `json:"followUpDate"`
	Notes          *string          `json:"notes"`
	ResumeVersion  *string          `json:"resumeVersion"`
}

// Normalize applies the same text clean-up as Draft.Normalize to present fields.
func (p *Patch) Normalize() {
	for _, s := range []*string{
		p.CompanyName, p.JobTitle, p.JobLink, p.Location, p.SalaryRange,
		p.RecruiterName, p.RecruiterPhone, p.Notes, p.ResumeVersion,
	} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	if p.RecruiterEmail != nil {
		*p.RecruiterEmail = strings.ToLower(strings.TrimSpace(*p.RecruiterEmail))
	}
}

// Apply merges p into a. A status that differs from the stored one appends
// exactly one history entry. It reports whether the status changed.
func (a *Application) Apply(p Patch, now time.Time) bool {
	changed := p.Status != nil && *p.Status != a.Status
	if changed {
		a.StatusHistory = append(slices.Clip(a.StatusHistory), StatusChange{Status: *p.Status, ChangedAt: now})
		a.Status = *p.Status
	}

	setString(&a.CompanyName, p.CompanyName)
	setString(&a.JobTitle, p.JobTitle)
	setString(&a.JobLink, p.JobLink)
	setString(&a.Location, p.Location)
	setString(&a.SalaryRange, p.SalaryRange)
	setString(&a.RecruiterName, p.RecruiterName)
	setString(&a.RecruiterEmail, p.RecruiterEmail)
	setString(&a.RecruiterPhone, p.RecruiterPhone)
	setString(&a.Notes, p.Notes)
	setString(&a.ResumeVersion, p.ResumeVersion)
	if p.Portal != nil {
		a.Portal = *p.Portal
	}
	if p.EmploymentType != nil {
		a.EmploymentType = *p.EmploymentType
	}
	if p.Source != nil {
		a.Source = *p.Source
	}
	if p.DateApplied != nil {
		a.DateApplied = p.DateApplied.Time
	}
	if p.FollowUpDate.Set {
		if p.FollowUpDate.Value == nil {
			a.FollowUpDate = nil
		} else {
			t := *p.FollowUpDate.Value
			a.FollowUpDate = &t
		}
	}
	a.UpdatedAt = now
	return changed
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// InteractionDraft is the input for logging a new interaction.
type InteractionDraft struct {
	Type  InteractionType `json:"type" validate:"required,interaction_type"`
	Date  *DateTime       `json:"date"`
	Notes string          `json:"notes" validate:"required,max=2000"`
}

// AddInteraction appends a new interaction. The status history is untouched.
func (a *Application) AddInteraction(id uuid.UUID, d InteractionDraft, now time.Time) Interaction {
	in := Interaction{ID: id, Type: d.Type, Date: now, Notes: strings.TrimSpace(d.Notes)}
	if d.Date != nil {
		in.Date = d.Date.Time
	}
	a.Interactions = append(slices.Clip(a.Interactions), in)
	a.UpdatedAt = now
	return in
}
