package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/channel"
	"teambilling/internal/domain"
)

type addresslessChannel struct{ recordingChannel }

func (c *addresslessChannel) CanDeliver(channel.Recipient) bool { return false }

type slowChannel struct{ name string }

func (c *slowChannel) Name() string                        { return c.name }
func (c *slowChannel) CanDeliver(r channel.Recipient) bool { return true }
func (c *slowChannel) Send(ctx context.Context, r channel.Recipient, msg channel.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatch_AllChannels(t *testing.T) {
	email := &recordingChannel{name: channel.NameEmail}
	push := &recordingChannel{name: channel.NamePush, err: errors.New("token expired")}
	d := NewDispatcher([]channel.Channel{email, push}, time.Second, nil)

	res := d.Dispatch(context.Background(), DispatchRequest{
		TenantID: 7, Title: "t", Body: "b", Type: domain.NotificationTypePaymentReminder,
	})

	assert.True(t, res.AnySucceeded)
	assert.Equal(t, map[string]bool{"email": true, "push": false}, res.ChannelResults)
	var failure *domain.DispatchFailure
	require.ErrorAs(t, res.Err, &failure)
	assert.Equal(t, int32(7), failure.TenantID)
	assert.Len(t, failure.Channels, 1)

	require.Len(t, email.messages(), 1)
	assert.Equal(t, channel.Message{Title: "t", Body: "b", Type: "payment_reminder"}, email.messages()[0])
}

func TestDispatch_Hints(t *testing.T) {
	email := &recordingChannel{name: channel.NameEmail}
	push := &recordingChannel{name: channel.NamePush}
	d := NewDispatcher([]channel.Channel{email, push}, time.Second, nil)

	res := d.Dispatch(context.Background(), DispatchRequest{ChannelHints: []string{"push", "sms"}, Title: "t", Body: "b"})

	assert.Empty(t, email.messages())
	assert.Len(t, push.messages(), 1)
	assert.True(t, res.AnySucceeded)
	assert.Equal(t, map[string]bool{"push": true, "sms": false}, res.ChannelResults)
	assert.Error(t, res.Err)
}

func TestDispatch_SkipsChannelsWithoutAddress(t *testing.T) {
	wa := &addresslessChannel{recordingChannel{name: channel.NameWhatsApp}}
	d := NewDispatcher([]channel.Channel{wa}, time.Second, nil)

	res := d.Dispatch(context.Background(), DispatchRequest{Title: "t", Body: "b"})

	assert.Empty(t, wa.messages())
	assert.Empty(t, res.ChannelResults)
	assert.False(t, res.AnySucceeded)
	assert.NoError(t, res.Err)
}

func TestDispatch_Timeout(t *testing.T) {
	d := NewDispatcher([]channel.Channel{&slowChannel{name: "email"}}, 20*time.Millisecond, nil)

	start := time.Now()
	res := d.Dispatch(context.Background(), DispatchRequest{Title: "t", Body: "b"})

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.AnySucceeded)
	var failure *domain.DispatchFailure
	require.ErrorAs(t, res.Err, &failure)
	assert.ErrorIs(t, failure.Channels["email"], context.DeadlineExceeded)
}
