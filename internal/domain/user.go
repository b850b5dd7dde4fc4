package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// User is a registered storefront customer.
type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("user name is required")
	}
	if !ValidEmail(u.Email) {
		return errors.New("user email is invalid")
	}
	return nil
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}
