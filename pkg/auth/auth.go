package auth

import (
	"crypto/subtle"
	"strings"

	"casenotes/pkg/config"
)

// Directory authenticates staff against the configured users. A user may
// hold a login for each program role.
type Directory struct {
	users map[string]map[string]config.User
}

func NewDirectory(users map[string]map[string]config.User) *Directory {
	return &Directory{users: users}
}

// Authenticate reports whether email/password is a valid login for role.
func (d *Directory) Authenticate(email, password, role string) (config.User, bool) {
	u, ok := d.Lookup(email, role)
	if !ok {
		return config.User{}, false
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return config.User{}, false
	}
	return u, true
}

// Lookup finds the login of email for role without checking the password.
func (d *Directory) Lookup(email, role string) (config.User, bool) {
	roles, ok := d.users[strings.TrimSpace(email)]
	if !ok {
		return config.User{}, false
	}
	for r, u := range roles {
		if strings.EqualFold(r, role) {
			return u, true
		}
	}
	return config.User{}, false
}
