package checkout

import (
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

// Prefill builds the checkout form from the logged-in user's profile and
// tells the shopper when an address was filled in.
func (s *Service) Prefill(sessionID string, p *user.Profile) Customer {
	c := Customer{
		FirstName:     p.FirstName(),
		LastName:      p.LastName(),
		Email:         p.Email,
		Phone:         p.Phone,
		StreetAddress: p.Address,
		City:          p.City,
		State:         p.State,
		PostalCode:    p.PostalCode,
	}
	if p.HasAddress() {
		s.notify(sessionID, notify.Info("Your address details have been auto-filled from your profile."))
	}
	return c
}
