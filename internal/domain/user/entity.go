// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"
)

// Preferences are the notification toggles shown on the profile page.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications"`
}

// User is one entry of the user registry.
type User struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	PasswordHash      string      `json:"passwordHash"`
	Phone             string      `json:"phone"`
	Address           string      `json:"address"`
	City              string      `json:"city"`
	State             string      `json:"state"`
	PostalCode        string      `json:"postalCode"`
	Country           string      `json:"country"`
	Preferences       Preferences `json:"preferences"`
	JoinDate          time.Time   `json:"joinDate"`
	LastLogin         time.Time   `json:"lastLogin"`
	LastProfileUpdate time.Time   `json:"lastProfileUpdate"`
}

// Profile is a User without credentials; it is what the current-user key holds.
type Profile struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	Address           string      `json:"address"`
	City              string      `json:"city"`
	State             string      `json:"state"`
	PostalCode        string      `json:"postalCode"`
	Country           string      `json:"country"`
	Preferences       Preferences `json:"preferences"`
	JoinDate          time.Time   `json:"joinDate"`
	LastLogin         time.Time   `json:"lastLogin"`
	LastProfileUpdate time.Time   `json:"lastProfileUpdate"`
	RememberMe        bool        `json:"rememberMe"`
}

// Profile strips the password hash.
func (u *User) Profile() Profile {
	return Profile{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Phone:             u.Phone,
		Address:           u.Address,
		City:              u.City,
		State:             u.State,
		PostalCode:        u.PostalCode,
		Country:           u.Country,
		Preferences:       u.Preferences,
		JoinDate:          u.JoinDate,
		LastLogin:         u.LastLogin,
		LastProfileUpdate: u.LastProfileUpdate,
	}
}

// FirstName is the first word of the name.
func (p *Profile) FirstName() string {
	first, _, _ := strings.Cut(strings.TrimSpace(p.Name), " ")
	return first
}

// LastName is everything after the first word.
func (p *Profile) LastName() string {
	_, rest, _ := strings.Cut(strings.TrimSpace(p.Name), " ")
	return strings.TrimSpace(rest)
}

// HasAddress reports whether the profile can prefill a delivery address.
func (p *Profile) HasAddress() bool {
	return strings.TrimSpace(p.Address) != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
