package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakeBackend struct {
	published  []published
	err        error
	deliveries []Message
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

// Subscribe hands every queued delivery to handler and stops at the first
// failure, as a broker would before redelivering.
func (f *fakeBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range f.deliveries {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func TestPublishEvent(t *testing.T) {
	backend := &fakeBackend{}
	q := New(backend)
	q.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	id, err := q.PublishEvent(context.Background(), ChannelAdDeleted, AdDeleted{AdID: 4, MediaPaths: []string{"ads/4-bike.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, backend.published, 1)

	got := backend.published[0]
	assert.Equal(t, ChannelAdDeleted, got.channel)
	assert.Equal(t, jsonContentType, got.attrs[attrContentType])
	assert.NotEmpty(t, got.attrs[attrEventID])
	assert.Equal(t, "2026-03-01T12:00:00Z", got.attrs[attrPublishedAt])

	var decoded AdDeleted
	require.NoError(t, DecodeEvent(Message{ID: id, Data: got.data}, &decoded))
	assert.Equal(t, 4, decoded.AdID)
	assert.Equal(t, []string{"ads/4-bike.jpg"}, decoded.MediaPaths)
}

func TestPublishEventBackendError(t *testing.T) {
	q := New(&fakeBackend{err: errors.New("broker down")})
	_, err := q.PublishEvent(context.Background(), ChannelMediaStored, MediaStored{StoragePath: "ads/1-a.png"})
	assert.EqualError(t, err, "broker down")
}

func TestDecodeEventInvalid(t *testing.T) {
	var decoded MediaStored
	err := DecodeEvent(Message{ID: "x", Data: []byte("{")}, &decoded)
	assert.Error(t, err)
}

func TestSubscribePassesHandlerErrorsThrough(t *testing.T) {
	backend := &fakeBackend{deliveries: []Message{
		{ID: "b-1", Data: []byte(`{"ad_id":1}`), Attributes: map[string]string{attrEventID: "e-1"}},
		{ID: "b-2", Data: []byte(`{"ad_id":2}`)},
	}}
	q := New(backend)

	var seen []int
	fail := errors.New("blob store down")
	err := q.Subscribe(context.Background(), ChannelAdDeleted, func(_ context.Context, msg Message) error {
		var event AdDeleted
		require.NoError(t, DecodeEvent(msg, &event))
		seen = append(seen, event.AdID)
		if event.AdID == 2 {
			return fail
		}
		return nil
	})
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestEventIDPrefersAttribute(t *testing.T) {
	assert.Equal(t, "e-1", eventID(Message{ID: "b-1", Attributes: map[string]string{attrEventID: "e-1"}}))
	assert.Equal(t, "b-2", eventID(Message{ID: "b-2"}))
}

func TestCloseNilBus(t *testing.T) {
	var q *MQ
	assert.NoError(t, q.Close())
}
