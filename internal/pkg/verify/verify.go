// Package verify holds the field validation rules for user-facing input.
// Every check returns a list of corrections; an empty list means the value
// passed. Handlers collect corrections per field and return them in bulk so
// a client can fix everything in one round trip.
package verify

import (
	"fmt"
	"strconv"
	"time"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

const minAccountAge = 13

// CheckPassword validates a candidate password. The same-password rule on
// password change lives in the auth service, which holds the stored digest.
func CheckPassword(password string) []string {
	var corrections []string

	if len(password) < 8 {
		corrections = append(corrections, "Password must be at least 8 characters long")
	}
	if len(password) > 20 {
		corrections = append(corrections, "Password must be at most 20 characters long")
	}
	if !containsUpper(password) {
		corrections = append(corrections, "Password must contain at least one uppercase letter")
	}
	if !containsLower(password) {
		corrections = append(corrections, "Password must contain at least one lowercase letter")
	}

	return corrections
}

// CheckName validates the parts of a display name or title.
func CheckName(names []string) []string {
	var corrections []string

	if len(names) < 2 {
		return append(corrections, "There must be at least 2 names")
	}

	for _, name := range names {
		if len(name) < 3 {
			corrections = append(corrections, "Each name must be at least 3 characters long")
			break
		}
	}
	for _, name := range names {
		if len(name) > 20 {
			corrections = append(corrections, "Each name must be at most 20 characters long")
			break
		}
	}
	for _, name := range names {
		if !containsUpper(name) {
			corrections = append(corrections, "Each name must contain at least one uppercase letter")
			break
		}
	}

	return corrections
}

// CheckLocation validates a latitude/longitude pair; both must be supplied
// together.
func CheckLocation(lat, long string) []string {
	var corrections []string

	if lat == "" || long == "" {
		return append(corrections, "Latitude and longitude must both be specified")
	}

	if latF, err := strconv.ParseFloat(lat, 64); err != nil {
		corrections = append(corrections, "Latitude is not a valid number")
	} else if latF <= -90 || latF >= 90 {
		corrections = append(corrections, "Latitude must be between -90 and 90")
	}

	if longF, err := strconv.ParseFloat(long, 64); err != nil {
		corrections = append(corrections, "Longitude is not a valid number")
	} else if longF <= -180 || longF >= 180 {
		corrections = append(corrections, "Longitude must be between -180 and 180")
	}

	return corrections
}

// CheckReview validates a review message.
func CheckReview(message string) []string {
	if message == "" {
		return []string{"Message cannot be empty"}
	}

	var corrections []string
	if len(message) < 3 {
		corrections = append(corrections, "Message must be at least 3 characters long")
	}
	if len(message) > 500 {
		corrections = append(corrections, "Message must be at most 500 characters long")
	}
	return corrections
}

// CheckReviewScore validates a review score supplied as a string.
func CheckReviewScore(score string) []string {
	if score == "" {
		return []string{"Review score must not be empty"}
	}

	n, err := strconv.Atoi(score)
	if err != nil {
		return []string{"Review score must be an integer"}
	}

	var corrections []string
	if n < 1 {
		corrections = append(corrections, "Review score must be at least 1")
	}
	if n > 5 {
		corrections = append(corrections, "Review score must be at most 5")
	}
	return corrections
}

// CheckDate reports whether year/month/day form a real calendar date.
func CheckDate(year, month, day int) bool {
	if month < 1 || month > 12 {
		return false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Year() == year && d.Month() == time.Month(month) && d.Day() == day
}

// CheckDOB validates a date of birth supplied as string fields. Users must
// be at least 13 years old.
func CheckDOB(yearStr, monthStr, dayStr string) []string {
	var corrections []string

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return append(corrections, "Year must be an integer")
	}
	if year < 1900 || year > time.Now().UTC().Year() {
		corrections = append(corrections, "Year must be between 1900 and the current year")
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return append(corrections, "Month must be an integer")
	}
	if month < 1 || month > 12 {
		corrections = append(corrections, "Month must be between 1 and 12")
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return append(corrections, "Day must be an integer")
	}
	if day < 1 || day > 31 {
		corrections = append(corrections, "Day must be between 1 and 31")
	}

	if len(corrections) > 0 {
		return corrections
	}

	if !CheckDate(year, month, day) {
		return []string{"Not a valid date"}
	}

	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	threshold := time.Now().UTC().AddDate(0, 0, -minAccountAge*364)
	if dob.After(threshold) {
		return []string{fmt.Sprintf("User must be at least %d years old to use this application", minAccountAge)}
	}

	return nil
}

// CheckPhoneNumber validates an international phone number.
func CheckPhoneNumber(phone string) []string {
	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return []string{"Invalid phone number format"}
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return []string{"Invalid phone number"}
	}
	return nil
}

func containsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func containsLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}
