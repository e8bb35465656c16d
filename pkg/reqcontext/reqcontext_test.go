package reqcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestRequestIDMissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestRequestIDPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() {
		WithRequestID(context.Background(), "")
	})
}

func TestMetadataCopyOnWrite(t *testing.T) {
	base := Metadata{"a": 1}
	next := base.With("b", 2)

	_, hasB := base.Get("b")
	assert.False(t, hasB, "original metadata must not observe the mutation")

	v, ok := next.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	av, ok := next.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, av)
}

func TestMetadataFromContextDefaultsEmpty(t *testing.T) {
	md := MetadataFromContext(context.Background())
	assert.Empty(t, md)
}

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")
	assert.Equal(t, "user-1", UserIDFromContext(ctx))
}

func TestUserIDMissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", UserIDFromContext(context.Background()))
}

func TestClientIDRoundTrip(t *testing.T) {
	ctx := WithClientID(context.Background(), "client-1")
	assert.Equal(t, "client-1", ClientIDFromContext(ctx))
}

func TestClientIDMissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ClientIDFromContext(context.Background()))
}

func TestResponseSenderFromContextStubErrors(t *testing.T) {
	send := ResponseSenderFromContext(context.Background())
	err := send("notifications/progress", nil)
	assert.Error(t, err)
}

func TestResponseSenderRoundTrip(t *testing.T) {
	called := false
	ctx := WithResponseSender(context.Background(), func(method string, params interface{}) error {
		called = true
		assert.Equal(t, "notifications/progress", method)
		return nil
	})
	send := ResponseSenderFromContext(ctx)
	assert.NoError(t, send("notifications/progress", nil))
	assert.True(t, called)
}
