package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"blobbench/pkg/auth"
)

func TestBasicAuthEngine(t *testing.T) {
	t.Parallel()

	engine := auth.NewBasicAuthEngine("admin", "s3cret")

	tests := []struct {
		name     string
		user     string
		pass     string
		setAuth  bool
		wantUser bool
	}{
		{name: "valid", user: "admin", pass: "s3cret", setAuth: true, wantUser: true},
		{name: "wrong password", user: "admin", pass: "nope", setAuth: true},
		{name: "wrong user", user: "root", pass: "s3cret", setAuth: true},
		{name: "missing header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				r.SetBasicAuth(tt.user, tt.pass)
			}

			user, err := engine.AuthenticateRequest(t.Context(), r)
			require.NoError(t, err)
			if tt.wantUser {
				require.NotNil(t, user)
				require.Equal(t, "admin", user.Username)
			} else {
				require.Nil(t, user)
			}
		})
	}
}
