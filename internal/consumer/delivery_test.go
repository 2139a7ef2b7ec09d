package consumer

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryAttempts(t *testing.T) {
	tests := []struct {
		name string
		msg  amqp.Delivery
		want int
	}{
		{name: "first delivery", msg: amqp.Delivery{}, want: 0},
		{name: "broker redelivery is not a failed attempt", msg: amqp.Delivery{Redelivered: true}, want: 0},
		{name: "int32 header", msg: amqp.Delivery{Headers: amqp.Table{attemptsHeader: int32(2)}}, want: 2},
		{name: "int64 header", msg: amqp.Delivery{Headers: amqp.Table{attemptsHeader: int64(4)}}, want: 4},
		{name: "foreign type", msg: amqp.Delivery{Headers: amqp.Table{attemptsHeader: "3"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deliveryAttempts(&tt.msg))
		})
	}
}

func TestRetryPublishingKeepsHeaders(t *testing.T) {
	msg := amqp.Delivery{
		Headers:     amqp.Table{"trace": "abc", attemptsHeader: int32(1)},
		ContentType: "application/json",
		MessageId:   "e1",
		Body:        []byte(`{}`),
	}
	pub := retryPublishing(msg, 2)

	assert.Equal(t, "abc", pub.Headers["trace"])
	assert.Equal(t, int32(2), pub.Headers[attemptsHeader])
	assert.Equal(t, int32(1), msg.Headers[attemptsHeader])
	assert.Equal(t, "e1", pub.MessageId)
	assert.Equal(t, msg.Body, pub.Body)
}
