//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/samber/lo"
)

// Portal is the job board or site an application was submitted through.
type Portal string

// Portal values
const (
	PortalLinkedIn    Portal = "LinkedIn"
	PortalNaukri      Portal = "Naukri"
	PortalFoundit     Portal = "Foundit"
	PortalGlassdoor   Portal = "Glassdoor"
	PortalCompanySite Portal = "Company site"
	PortalOther       Portal = "Other"
)

// Portals lists every accepted portal.
var Portals = []Portal{
	PortalLinkedIn, PortalNaukri, PortalFoundit, PortalGlassdoor, PortalCompanySite, PortalOther,
}

// Valid reports whether p is a known portal.
func (p Portal) Valid() bool { return lo.Contains(Portals, p) }

// EmploymentType describes the kind of position applied for.
type EmploymentType string

// EmploymentType values
const (
	EmploymentFullTime   EmploymentType = "Full-time"
	EmploymentPartTime   EmploymentType = "Part-time"
	EmploymentInternship EmploymentType = "Internship"
	EmploymentContract   EmploymentType = "Contract"
	EmploymentRemote     EmploymentType = "Remote"
	EmploymentHybrid     EmploymentType = "Hybrid"
	EmploymentOnSite     EmploymentType = "On-site"
)

// EmploymentTypes lists every accepted employment type.
var EmploymentTypes = []EmploymentType{
	EmploymentFullTime, EmploymentPartTime, EmploymentInternship, EmploymentContract,
	EmploymentRemote, EmploymentHybrid, EmploymentOnSite,
}

// Valid reports whether e is a known employment type.
func (e EmploymentType) Valid() bool { return lo.Contains(EmploymentTypes, e) }

// Status is the pipeline stage of an application.
type Status string

// Status values, in the order a typical application moves through them.
const (
	StatusBacklog         Status = "Backlog"
	StatusApplied         Status = "Applied"
	StatusHRScreen        Status = "HR Screen"
	StatusTechnicalRound  Status = "Technical Round"
	StatusManagerialRound Status = "Managerial Round"
	StatusOffer           Status = "Offer"
	StatusRejected        Status = "Rejected"
	StatusOnHold          Status = "On hold"
)

// Statuses lists every accepted status.
var Statuses = []Status{
	StatusBacklog, StatusApplied, StatusHRScreen, StatusTechnicalRound,
	StatusManagerialRound, StatusOffer, StatusRejected, StatusOnHold,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return lo.Contains(Statuses, s) }

// Terminal reports whether no further follow-up makes sense for s.
func (s Status) Terminal() bool { return s == StatusOffer || s == StatusRejected }

// Source is how the candidate found the opening.
type Source string

// Source values
const (
	SourceReferral  Source = "Referral"
	SourceDirect    Source = "Direct"
	SourceJobBoard  Source = "Job board"
	SourceRecruiter Source = "Recruiter"
)

// Sources lists every accepted source.
var Sources = []Source{SourceReferral, SourceDirect, SourceJobBoard, SourceRecruiter}

// Valid reports whether s is a known source.
func (s Source) Valid() bool { return lo.Contains(Sources, s) }

// InteractionType classifies a logged touchpoint.
type InteractionType string

// InteractionType values
const (
	InteractionCall      InteractionType = "call"
	InteractionEmail     InteractionType = "email"
	InteractionInterview InteractionType = "interview"
	InteractionOther     InteractionType = "other"
)

// InteractionTypes lists every accepted interaction type.
var InteractionTypes = []InteractionType{
	InteractionCall, InteractionEmail, InteractionInterview, InteractionOther,
}

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool { return lo.Contains(InteractionTypes, t) }

func joinValues[T ~string](values []T) string {
	return strings.Join(lo.Map(values, func(v T, _ int) string { return string(v) }), ", ")
}
