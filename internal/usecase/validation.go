package usecase

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var nonDigit = regexp.MustCompile(`\D`)

func ValidateCreateLeadInput(input CreateLeadInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.FirstName) == "" {
		errors = append(errors, ValidationError{"first_name", "is required"})
	} else if len(input.FirstName) > 100 {
		errors = append(errors, ValidationError{"first_name", "must not exceed 100 characters"})
	}

	email := strings.TrimSpace(input.Email)
	phone := strings.TrimSpace(input.Phone)
	profile := strings.TrimSpace(input.ProfileURL)

	if email == "" && phone == "" && profile == "" {
		errors = append(errors, ValidationError{"contact", "one of email, phone or profile_url is required"})
	}

	if email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			errors = append(errors, ValidationError{"email", "is invalid"})
		}
	}

	if phone != "" && !isValidPhoneNumber(phone) {
		errors = append(errors, ValidationError{"phone", "must have 7 to 15 digits"})
	}

	if profile != "" && !isValidProfileURL(profile) {
		errors = append(errors, ValidationError{"profile_url", "must be an absolute http(s) URL"})
	}

	return errors
}

func joinValidationErrors(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + " (" + e.Message + ")"
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func isValidPhoneNumber(phone string) bool {
	cleaned := nonDigit.ReplaceAllString(phone, "")
	return len(cleaned) >= 7 && len(cleaned) <= 15
}

func isValidProfileURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
