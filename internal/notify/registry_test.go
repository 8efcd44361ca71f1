package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishCallsHandlersInOrder(t *testing.T) {
	var r Registry[int]
	var got []string

	r.Subscribe(func(_ context.Context, v int) { got = append(got, "a") })
	r.Subscribe(func(_ context.Context, v int) { got = append(got, "b") })

	r.Publish(context.Background(), 1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	var r Registry[int]
	calls := 0
	unsubscribe := r.Subscribe(func(_ context.Context, v int) { calls++ })

	r.Publish(context.Background(), 1)
	unsubscribe()
	unsubscribe()
	r.Publish(context.Background(), 2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Len())
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	var r Registry[string]
	var values []string

	var unsubscribe func()
	unsubscribe = r.Subscribe(func(_ context.Context, v string) {
		values = append(values, v)
		unsubscribe()
	})

	r.Publish(context.Background(), "first")
	r.Publish(context.Background(), "second")

	assert.Equal(t, []string{"first"}, values)
}
