package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OwnerKind identifies the kind of entity a media asset belongs to.
type OwnerKind int

const (
	// OwnerAd marks an asset attached to an ad.
	OwnerAd OwnerKind = iota + 1

	// OwnerUser marks a user's avatar.
	OwnerUser
)

// String returns the name stored in the catalog.
func (k OwnerKind) String() string {
	switch k {
	case OwnerAd:
		return "AD"
	case OwnerUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// Dir returns the top-level storage directory for assets of this kind.
func (k OwnerKind) Dir() string {
	switch k {
	case OwnerAd:
		return "ads"
	case OwnerUser:
		return "users"
	default:
		return ""
	}
}

func (k OwnerKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Value implements driver.Valuer.
func (k OwnerKind) Value() (driver.Value, error) {
	if k != OwnerAd && k != OwnerUser {
		return nil, fmt.Errorf("invalid owner kind %d", int(k))
	}
	return k.String(), nil
}

// Scan implements sql.Scanner.
func (k *OwnerKind) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OwnerKind", src)
	}
	switch s {
	case "AD":
		*k = OwnerAd
	case "USER":
		*k = OwnerUser
	default:
		return fmt.Errorf("unknown owner kind %q", s)
	}
	return nil
}

// MediaOwner names the entity an upload is stored for.
type MediaOwner struct {
	// Kind is the owning entity's kind.
	Kind OwnerKind

	// Ref is the owning entity's id.
	Ref int

	// Key is a human-readable name used to build the storage path,
	// such as an ad title or a user's email.
	Key string
}

// MediaAsset is a stored image together with its catalog metadata.
//
// The catalog row keeps a full copy of the bytes so assets can be served
// and backed up without touching the blob store.
type MediaAsset struct {
	// ID is the unique identifier of the catalog row.
	ID int `json:"id" db:"id"`

	// OwnerKind is the kind of the owning entity.
	OwnerKind OwnerKind `json:"owner_kind" db:"owner_kind"`

	// OwnerRef is the owning entity's id.
	OwnerRef int `json:"owner_ref" db:"owner_ref"`

	// StoragePath is the key of both the blob and the catalog row.
	StoragePath string `json:"storage_path" db:"storage_path"`

	// ContentType is the MIME type the asset is served with.
	ContentType string `json:"content_type" db:"content_type"`

	// SizeBytes is the length of Data.
	SizeBytes int64 `json:"size_bytes" db:"size_bytes"`

	// Data is the raw asset content.
	Data []byte `json:"-" db:"data"`

	// CreatedAt is the timestamp at which the row was first written.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent overwrite.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
