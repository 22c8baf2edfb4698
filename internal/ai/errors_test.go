package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError_Classification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   ErrorKind
		retry  bool
	}{
		{401, "", KindAuthError, false},
		{403, "", KindAuthError, false},
		{429, "", KindRateLimited, true},
		{408, "", KindUpstreamTimeout, true},
		{500, "", KindUpstreamServerError, true},
		{503, "", KindUpstreamServerError, true},
		{400, "plain bad request", KindBadRequest, false},
		{400, `{"error":"This model's maximum context length is exceeded"}`, KindContextOverflow, false},
	}
	for _, tc := range cases {
		err := newError(tc.status, tc.body)
		assert.Equal(t, tc.kind, err.Kind, "status=%d", tc.status)
		assert.Equal(t, tc.retry, err.Retryable(), "status=%d", tc.status)
	}
}
