package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Channels media and ad lifecycle events are published on.
const (
	ChannelMediaStored = "adboard.media.stored"
	ChannelAdDeleted   = "adboard.ad.deleted"
)

const (
	attrEventID     = "event_id"
	attrContentType = "content_type"
	jsonContentType = "application/json"
)

// MediaStored is published after a media catalog row is committed.
type MediaStored struct {
	StoragePath string   `json:"storage_path"`
	OwnerKind   string   `json:"owner_kind"`
	OwnerRef    int      `json:"owner_ref"`
	ContentType string   `json:"content_type"`
	SizeBytes   int64    `json:"size_bytes"`
	Replaced    []string `json:"replaced,omitempty"`
}

// AdDeleted is published after an ad and its dependents are removed.
// MediaPaths lists blobs that no longer have a catalog row.
type AdDeleted struct {
	AdID       int      `json:"ad_id"`
	MediaPaths []string `json:"media_paths,omitempty"`
}

// PublishEvent JSON-encodes payload and publishes it on channel.
func (m *MQ) PublishEvent(ctx context.Context, channel string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		attrEventID:     uuid.NewString(),
		attrContentType: jsonContentType,
	}
	return m.Publish(ctx, channel, data, attrs)
}

// DecodeEvent unmarshals a message published by PublishEvent.
func DecodeEvent(msg Message, payload any) error {
	if err := json.Unmarshal(msg.Data, payload); err != nil {
		return fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return nil
}
