package types

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	enum := func(valid func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool { return valid(fl.Field().String()) }
	}
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("portal", enum(func(s string) bool { return Portal(s).Valid() })))
	must(v.RegisterValidation("employment_type", enum(func(s string) bool { return EmploymentType(s).Valid() })))
	must(v.RegisterValidation("status", enum(func(s string) bool { return Status(s).Valid() })))
	must(v.RegisterValidation("source", enum(func(s string) bool { return Source(s).Valid() })))
	must(v.RegisterValidation("interaction_type", enum(func(s string) bool { return InteractionType(s).Valid() })))
	must(v.RegisterValidation("weburl", enum(isWebURL)))
	must(v.RegisterValidation("optional_email", enum(func(s string) bool {
		return s == "" || v.Var(s, "email") == nil
	})))
	return v
}

func isWebURL(s string) bool {
	if s == "" {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// reason renders a validator tag as a client-facing sentence fragment.
func reason(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", param)
	case "min":
		return fmt.Sprintf("must be at least %s characters", param)
	case "email", "optional_email":
		return "must be a valid email address"
	case "weburl":
		return "must be an http or https URL"
	case "portal":
		return "must be one of: " + joinValues(Portals)
	case "employment_type":
		return "must be one of: " + joinValues(EmploymentTypes)
	case "status":
		return "must be one of: " + joinValues(Statuses)
	case "source":
		return "must be one of: " + joinValues(Sources)
	case "interaction_type":
		return "must be one of: " + joinValues(InteractionTypes)
	default:
		return "is invalid"
	}
}

// collect turns a validator error into field errors. Non-validation errors
// (which only occur on programmer mistakes) become a single generic entry.
func collect(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Reason: "is invalid"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Reason: reason(fe.Tag(), fe.Param())})
	}
	return out
}

// Validate checks every field of a normalized draft and reports all violations.
func (d *Draft) Validate() error {
	return NewValidationError(collect(validate.Struct(d)))
}

type patchRule struct {
	field   string
	present bool
	value   func() string
	tag     string
}

// Validate checks only the fields present in the patch.
func (p *Patch) Validate() error {
	str := func(s *string) func() string { return func() string { return *s } }
	rules := []patchRule{
		{"companyName", p.CompanyName != nil, str(p.CompanyName), "required,max=100"},
		{"jobTitle", p.JobTitle != nil, str(p.JobTitle), "required,max=100"},
		{"jobLink", p.JobLink != nil, str(p.JobLink), "max=2048,weburl"},
		{"location", p.Location != nil, str(p.Location), "max=200"},
		{"salaryRange", p.SalaryRange != nil, str(p.SalaryRange), "max=100"},
		{"recruiterName", p.RecruiterName != nil, str(p.RecruiterName), "max=100"},
		{"recruiterEmail", p.RecruiterEmail != nil, str(p.RecruiterEmail), "max=254,optional_email"},
		{"recruiterPhone", p.RecruiterPhone != nil, str(p.RecruiterPhone), "max=50"},
		{"notes", p.Notes != nil, str(p.Notes), "max=2000"},
		{"resumeVersion", p.ResumeVersion != nil, str(p.ResumeVersion), "max=100"},
		{"jobPortal", p.Portal != nil, func() string { return string(*p.Portal) }, "required,portal"},
		{"employmentType", p.EmploymentType != nil, func() string { return string(*p.EmploymentType) }, "required,employment_type"},
		{"status", p.Status != nil, func() string { return string(*p.Status) }, "required,status"},
		{"source", p.Source != nil, func() string { return string(*p.Source) }, "required,source"},
	}

	var violations []FieldError
	for _, rule := range rules {
		if !rule.present {
			continue
		}
		for _, fe := range collect(validate.Var(rule.value(), rule.tag)) {
			violations = append(violations, FieldError{Field: rule.field, Reason: fe.Reason})
		}
	}
	return NewValidationError(violations)
}

// Normalize trims the interaction notes.
func (d *InteractionDraft) Normalize() {
	d.Notes = strings.TrimSpace(d.Notes)
}

// Validate checks the interaction type and notes.
func (d *InteractionDraft) Validate() error {
	return NewValidationError(collect(validate.Struct(d)))
}
