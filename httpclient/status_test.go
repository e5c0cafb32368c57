package httpclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPolicy_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		policy StatusPolicy
		code   int
		want   bool
	}{
		{name: "given strict and 200, then accepts", policy: StatusPolicyStrict, code: 200, want: true},
		{name: "given strict and 204, then accepts", policy: StatusPolicyStrict, code: 204, want: true},
		{name: "given strict and 302, then rejects", policy: StatusPolicyStrict, code: 302, want: false},
		{name: "given strict and 404, then rejects", policy: StatusPolicyStrict, code: 404, want: false},
		{name: "given lenient and 302, then accepts", policy: StatusPolicyLenient, code: 302, want: true},
		{name: "given lenient and 399, then accepts", policy: StatusPolicyLenient, code: 399, want: true},
		{name: "given lenient and 400, then rejects", policy: StatusPolicyLenient, code: 400, want: false},
		{name: "given lenient and 101, then rejects", policy: StatusPolicyLenient, code: 101, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Accepts(tt.code))
		})
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name     string
		policy   StatusPolicy
		code     int
		wantKind error
		wantNil  bool
	}{
		{name: "given strict and 400, then bad request", policy: StatusPolicyStrict, code: 400, wantKind: ErrBadRequest},
		{name: "given strict and 403, then forbidden", policy: StatusPolicyStrict, code: 403, wantKind: ErrForbidden},
		{name: "given strict and 404, then not found", policy: StatusPolicyStrict, code: 404, wantKind: ErrNotFound},
		{name: "given strict and 409, then conflict", policy: StatusPolicyStrict, code: 409, wantKind: ErrConflict},
		{name: "given strict and 500, then generic status error", policy: StatusPolicyStrict, code: 500, wantKind: ErrHTTPStatus},
		{name: "given strict and 301, then generic status error", policy: StatusPolicyStrict, code: 301, wantKind: ErrHTTPStatus},
		{name: "given lenient and 404, then generic status error", policy: StatusPolicyLenient, code: 404, wantKind: ErrHTTPStatus},
		{name: "given strict and 201, then no error", policy: StatusPolicyStrict, code: 201, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := mockRawResponse("https://api.example.com/x", tt.code,
				map[string]string{"Content-Type": "application/json"}, `{"error":"x"}`)

			err := checkStatus(tt.policy, MethodGet, "https://api.example.com/x", raw)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.StatusCode)
			assert.Equal(t, tt.wantKind, se.Kind())
			assert.Equal(t, `{"error":"x"}`, se.Body)
			assert.Contains(t, se.Headers, "Content-Type: application/json")
			assert.ErrorIs(t, err, ErrHTTPStatus)
			assert.ErrorIs(t, err, tt.wantKind)

			if tt.wantKind != ErrNotFound {
				assert.False(t, errors.Is(err, ErrNotFound))
			}
		})
	}
}

func TestStatusPolicy_String(t *testing.T) {
	assert.Equal(t, "strict", StatusPolicyStrict.String())
	assert.Equal(t, "lenient", StatusPolicyLenient.String())
	assert.Equal(t, "unknown", StatusPolicy(9).String())
}
