package referral

import (
	"casenotes/pkg/auth"
	"casenotes/pkg/notify"
)

// Coordinators resolves the configured coordinator emails of each program to
// recipients, named after their login for that program when they have one.
func Coordinators(emails map[string][]string, dir *auth.Directory) map[string][]notify.Recipient {
	out := make(map[string][]notify.Recipient, len(emails))
	for program, list := range emails {
		for _, email := range list {
			r := notify.Recipient{Email: email}
			if u, ok := dir.Lookup(email, program); ok {
				r.Name = u.Name
			}
			out[program] = append(out[program], r)
		}
	}
	return out
}
