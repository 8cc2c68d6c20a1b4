package types

import (
	"bytes"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Sort keys accepted by ParseListCriteria.
const (
	SortDateApplied  = "dateApplied"
	SortCompanyName  = "companyName"
	SortJobTitle     = "jobTitle"
	SortStatus       = "status"
	SortFollowUpDate = "followUpDate"
	SortCreatedAt    = "createdAt"
	SortUpdatedAt    = "updatedAt"
)

// SortKeys lists every accepted sortBy value.
var SortKeys = []string{
	SortDateApplied, SortCompanyName, SortJobTitle, SortStatus,
	SortFollowUpDate, SortCreatedAt, SortUpdatedAt,
}

// Paging defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListCriteria is a parsed, validated list request. The owner is not part of
// it; repositories take the owner as a separate mandatory argument.
type ListCriteria struct {
	Portal         Portal
	Status         Status
	EmploymentType EmploymentType
	Location       string
	DateFrom       *time.Time
	DateTo         *time.Time
	Search         string
	SortBy         string
	Descending     bool
	Page           int
	Limit          int
}

// DefaultListCriteria returns criteria with no filters and default paging.
func DefaultListCriteria() ListCriteria {
	return ListCriteria{SortBy: SortDateApplied, Descending: true, Page: DefaultPage, Limit: DefaultLimit}
}

// ParseListCriteria reads list query parameters, collecting every violation.
func ParseListCriteria(q url.Values) (ListCriteria, error) {
	c := DefaultListCriteria()
	var violations []FieldError
	bad := func(field, reason string) {
		violations = append(violations, FieldError{Field: field, Reason: reason})
	}

	if v := strings.TrimSpace(q.Get("portal")); v != "" {
		if c.Portal = Portal(v); !c.Portal.Valid() {
			bad("portal", reason("portal", ""))
		}
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		if c.Status = Status(v); !c.Status.Valid() {
			bad("status", reason("status", ""))
		}
	}
	if v := strings.TrimSpace(q.Get("employmentType")); v != "" {
		if c.EmploymentType = EmploymentType(v); !c.EmploymentType.Valid() {
			bad("employmentType", reason("employment_type", ""))
		}
	}
	c.Location = strings.TrimSpace(q.Get("location"))
	c.Search = strings.TrimSpace(q.Get("search"))

	if v := strings.TrimSpace(q.Get("dateFrom")); v != "" {
		if t, _, err := ParseDateTime(v); err != nil {
			bad("dateFrom", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		} else {
			c.DateFrom = &t
		}
	}
	if v := strings.TrimSpace(q.Get("dateTo")); v != "" {
		if t, dateOnly, err := ParseDateTime(v); err != nil {
			bad("dateTo", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		} else {
			if dateOnly {
				t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
			}
			c.DateTo = &t
		}
	}
	if c.DateFrom != nil && c.DateTo != nil && c.DateTo.Before(*c.DateFrom) {
		bad("dateTo", "must not be before dateFrom")
	}

	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		if !lo.Contains(SortKeys, v) {
			bad("sortBy", "must be one of: "+strings.Join(SortKeys, ", "))
		}
		c.SortBy = v
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "", "desc":
		c.Descending = true
	case "asc":
		c.Descending = false
	default:
		bad("order", "must be one of: asc, desc")
	}

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			bad("page", "must be a positive integer")
		}
		c.Page = n
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			bad("limit", "must be an integer between 1 and "+strconv.Itoa(MaxLimit))
		}
		c.Limit = n
	}

	if err := NewValidationError(violations); err != nil {
		return ListCriteria{}, err
	}
	return c, nil
}

// Offset is the number of matching records before the requested page. It
// saturates at math.MaxInt, so any page past the last one yields an empty
// window.
func (c ListCriteria) Offset() int {
	if c.Page <= 1 || c.Limit <= 0 {
		return 0
	}
	if c.Page-1 > math.MaxInt/c.Limit {
		return math.MaxInt
	}
	return (c.Page - 1) * c.Limit
}

// Matches reports whether a satisfies every filter in c.
func (c ListCriteria) Matches(a *Application) bool {
	if c.Portal != "" && a.Portal != c.Portal {
		return false
	}
	if c.Status != "" && a.Status != c.Status {
		return false
	}
	if c.EmploymentType != "" && a.EmploymentType != c.EmploymentType {
		return false
	}
	if c.Location != "" && !containsFold(a.Location, c.Location) {
		return false
	}
	if c.DateFrom != nil && a.DateApplied.Before(*c.DateFrom) {
		return false
	}
	if c.DateTo != nil && a.DateApplied.After(*c.DateTo) {
		return false
	}
	if c.Search != "" && !containsFold(a.CompanyName, c.Search) && !containsFold(a.JobTitle, c.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Less orders a before b under c's sort key and direction. Records without a
// follow-up date sort last in both directions and ties fall back to id ascending.
func (c ListCriteria) Less(a, b *Application) bool {
	cmp := 0
	switch c.SortBy {
	case SortCompanyName:
		cmp = strings.Compare(a.CompanyName, b.CompanyName)
	case SortJobTitle:
		cmp = strings.Compare(a.JobTitle, b.JobTitle)
	case SortStatus:
		cmp = strings.Compare(string(a.Status), string(b.Status))
	case SortCreatedAt:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		cmp = a.UpdatedAt.Compare(b.UpdatedAt)
	case SortFollowUpDate:
		switch {
		case a.FollowUpDate == nil && b.FollowUpDate == nil:
		case a.FollowUpDate == nil:
			return false
		case b.FollowUpDate == nil:
			return true
		default:
			cmp = a.FollowUpDate.Compare(*b.FollowUpDate)
		}
	default:
		cmp = a.DateApplied.Compare(b.DateApplied)
	}
	if c.Descending {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Page is one window of a list result.
type Page struct {
	Items []Application `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int           `json:"pages"`
}

// NewPage assembles a page and computes the page count.
func NewPage(items []Application, total int, c ListCriteria) Page {
	if items == nil {
		items = []Application{}
	}
	return Page{Items: items, Total: total, Page: c.Page, Limit: c.Limit, Pages: PageCount(total, c.Limit)}
}

// PageCount is ceil(total / limit).
func PageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// IsDueForFollowUp reports whether a has a follow-up date at or before asOf
// and is still in an actionable status.
func IsDueForFollowUp(a *Application, asOf time.Time) bool {
	return a.FollowUpDate != nil && !a.FollowUpDate.After(asOf) && !a.Status.Terminal()
}

// LessFollowUp orders due records by follow-up date, then id.
func LessFollowUp(a, b *Application) bool {
	if cmp := a.FollowUpDate.Compare(*b.FollowUpDate); cmp != 0 {
		return cmp < 0
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
