package auth

import (
	"testing"

	"casenotes/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	d := NewDirectory(map[string]map[string]config.User{
		"casey@example.org": {
			"GRIT": {Name: "Casey", Password: "grit-pw"},
		},
		"robin@example.org": {
			"IPE": {Name: "Robin", Password: "ipe-pw"},
		},
	})

	tests := []struct {
		email, password, role string
		want                  bool
	}{
		{"casey@example.org", "grit-pw", "GRIT", true},
		{"casey@example.org", "grit-pw", "grit", true},
		{" casey@example.org ", "grit-pw", "GRIT", true},
		{"casey@example.org", "wrong", "GRIT", false},
		{"casey@example.org", "grit-pw", "IPE", false},
		{"robin@example.org", "ipe-pw", "IPE", true},
		{"nobody@example.org", "", "GRIT", false},
	}
	for _, tt := range tests {
		u, ok := d.Authenticate(tt.email, tt.password, tt.role)
		assert.Equal(t, tt.want, ok, "%s/%s", tt.email, tt.role)
		if ok {
			assert.NotEmpty(t, u.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	d := NewDirectory(map[string]map[string]config.User{
		"casey@example.org": {"GRIT": {Name: "Casey"}},
	})
	u, ok := d.Lookup("casey@example.org", "GRIT")
	assert.True(t, ok)
	assert.Equal(t, "Casey", u.Name)

	_, ok = d.Lookup("casey@example.org", "IPE")
	assert.False(t, ok)
}
