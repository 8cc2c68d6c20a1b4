//nolint:revive // types is a standard Go package name pattern
package types

import (
	"math"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListCriteria_Defaults(t *testing.T) {
	c, err := ParseListCriteria(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListCriteria(), c)
	assert.Equal(t, 0, c.Offset())
}

func TestParseListCriteria_Valid(t *testing.T) {
	q := url.Values{
		"status":   {"HR Screen"},
		"portal":   {"Company site"},
		"dateFrom": {"2024-01-01"},
		"dateTo":   {"2024-01-31"},
		"sortBy":   {"companyName"},
		"order":    {"ASC"},
		"page":     {"3"},
		"limit":    {"20"},
		"search":   {" goo "},
	}
	c, err := ParseListCriteria(q)
	require.NoError(t, err)

	assert.Equal(t, StatusHRScreen, c.Status)
	assert.Equal(t, PortalCompanySite, c.Portal)
	assert.Equal(t, SortCompanyName, c.SortBy)
	assert.False(t, c.Descending)
	assert.Equal(t, 40, c.Offset())
	assert.Equal(t, "goo", c.Search)
	require.NotNil(t, c.DateTo)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC), *c.DateTo)
}

func TestParseListCriteria_CollectsViolations(t *testing.T) {
	q := url.Values{
		"status": {"Hired"},
		"sortBy": {"salary"},
		"order":  {"sideways"},
		"page":   {"0"},
		"limit":  {"abc"},
		"dateTo": {"yesterday"},
	}
	_, err := ParseListCriteria(q)
	require.Error(t, err)

	var fields []string
	for _, fe := range Violations(err) {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"status", "sortBy", "order", "page", "limit", "dateTo"}, fields)
}

func TestListCriteria_Matches(t *testing.T) {
	app := &Application{
		CompanyName:    "Google",
		JobTitle:       "Backend Engineer",
		Portal:         PortalLinkedIn,
		Status:         StatusApplied,
		EmploymentType: EmploymentFullTime,
		Location:       "Bengaluru, India",
		DateApplied:    time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		c    ListCriteria
		want bool
	}{
		{"no filters", ListCriteria{}, true},
		{"status match", ListCriteria{Status: StatusApplied}, true},
		{"status mismatch", ListCriteria{Status: StatusHRScreen}, false},
		{"location substring any case", ListCriteria{Location: "bengaluru"}, true},
		{"search company", ListCriteria{Search: "GOOG"}, true},
		{"search title", ListCriteria{Search: "backend"}, true},
		{"search neither", ListCriteria{Search: "frontend"}, false},
		{"search is literal", ListCriteria{Search: "G%gle"}, false},
		{"inclusive bounds", ListCriteria{DateFrom: &from, DateTo: &to}, true},
		{"all filters combined", ListCriteria{DateFrom: &to, Portal: PortalLinkedIn, Search: "google", Location: "india"}, true},
		{"portal mismatch", ListCriteria{Portal: PortalNaukri}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Matches(app))
		})
	}
}

func TestListCriteria_LessTotalOrder(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	follow := day.AddDate(0, 0, 3)
	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	apps := []*Application{
		{ID: idHigh, DateApplied: day},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), DateApplied: day.AddDate(0, 0, 1), FollowUpDate: &follow},
		{ID: idLow, DateApplied: day},
	}

	desc := ListCriteria{SortBy: SortDateApplied, Descending: true}
	sort.Slice(apps, func(i, j int) bool { return desc.Less(apps[i], apps[j]) })
	assert.Equal(t, day.AddDate(0, 0, 1), apps[0].DateApplied)
	assert.Equal(t, idLow, apps[1].ID, "ties broken by id ascending")
	assert.Equal(t, idHigh, apps[2].ID)

	for _, descending := range []bool{true, false} {
		byFollowUp := ListCriteria{SortBy: SortFollowUpDate, Descending: descending}
		sort.Slice(apps, func(i, j int) bool { return byFollowUp.Less(apps[i], apps[j]) })
		assert.NotNil(t, apps[0].FollowUpDate, "records without follow-up sort last")
		assert.Equal(t, idLow, apps[1].ID)
	}
}

func TestListCriteria_OffsetSaturates(t *testing.T) {
	c, err := ParseListCriteria(url.Values{"page": {"9223372036854775807"}, "limit": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, c.Offset())

	c.Page, c.Limit = math.MaxInt/2+1, 2
	assert.Equal(t, math.MaxInt, c.Offset())

	c.Page = 5
	assert.Equal(t, 8, c.Offset())
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 10))
	assert.Equal(t, 1, PageCount(10, 10))
	assert.Equal(t, 2, PageCount(11, 10))
	assert.Equal(t, 2, PageCount(2, 1))
}

func TestIsDueForFollowUp(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	assert.True(t, IsDueForFollowUp(&Application{Status: StatusApplied, FollowUpDate: &yesterday}, now))
	assert.True(t, IsDueForFollowUp(&Application{Status: StatusOnHold, FollowUpDate: &now}, now))
	assert.False(t, IsDueForFollowUp(&Application{Status: StatusRejected, FollowUpDate: &yesterday}, now))
	assert.False(t, IsDueForFollowUp(&Application{Status: StatusOffer, FollowUpDate: &yesterday}, now))
	assert.False(t, IsDueForFollowUp(&Application{Status: StatusApplied, FollowUpDate: &tomorrow}, now))
	assert.False(t, IsDueForFollowUp(&Application{Status: StatusApplied}, now))
}
