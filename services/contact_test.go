package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"cropguard-web/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContact(t *testing.T) {
	testCases := []struct {
		name        string
		req         models.ContactRequest
		expectedMsg string
	}{
		{name: "valid", req: models.ContactRequest{Name: " Ana ", Email: "ana@example.com", Message: " Hi "}},
		{name: "missing name", req: models.ContactRequest{Name: "  ", Email: "ana@example.com", Message: "Hi"}, expectedMsg: MsgContactRequired},
		{name: "missing email", req: models.ContactRequest{Name: "Ana", Message: "Hi"}, expectedMsg: MsgContactRequired},
		{name: "whitespace message", req: models.ContactRequest{Name: "Ana", Email: "a@b.c", Message: "\n\t"}, expectedMsg: MsgContactRequired},
		{name: "exactly 1000", req: models.ContactRequest{Name: "Ana", Email: "a@b.c", Message: strings.Repeat("a", 1000)}},
		{name: "1001", req: models.ContactRequest{Name: "Ana", Email: "a@b.c", Message: strings.Repeat("a", 1001)}, expectedMsg: MsgMessageTooLong},
		{name: "multibyte 1000", req: models.ContactRequest{Name: "Ana", Email: "a@b.c", Message: strings.Repeat("é", 1000)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateContact(tc.req)
			if tc.expectedMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tc.req.Name), got.Name)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.expectedMsg, verr.Message)
		})
	}
}

func TestCounterClass(t *testing.T) {
	assert.Equal(t, "", CounterClass(800))
	assert.Equal(t, "warn", CounterClass(801))
	assert.Equal(t, "warn", CounterClass(950))
	assert.Equal(t, "danger", CounterClass(951))
}

func TestContactSender_Send(t *testing.T) {
	it(func() {
		api.respondJSON(EndPointContact, http.StatusOK, `{"message":"ok"}`)
		sender := NewContactSender(client)

		_, err := sender.Send(context.Background(), models.ContactRequest{Name: "Ana"})
		require.Error(t, err)
		assert.Equal(t, 0, api.count(), "invalid forms are not sent")

		resp, err := sender.Send(context.Background(), models.ContactRequest{Name: "Ana", Email: "a@b.c", Message: "Hello"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Message)
		assert.Equal(t, 1, api.count())
	})
}
