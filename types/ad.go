package types

import "time"

// Ad represents a classified ad posted by a user.
type Ad struct {
	// ID is the unique identifier of the ad.
	ID int `json:"id" db:"id"`

	// AuthorID identifies the user who posted the ad. It is set at
	// creation and never changes afterwards.
	AuthorID int `json:"author_id" db:"author_id"`

	// Title is the short headline of the ad.
	Title string `json:"title" db:"title"`

	// Price is the asking price in whole currency units.
	Price int `json:"price" db:"price"`

	// Description is the full text of the ad.
	Description string `json:"description" db:"description"`

	// ImagePath is the storage path of the ad's image, if any.
	ImagePath string `json:"image,omitempty" db:"image_path"`

	// CreatedAt is the timestamp at which the ad was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the ad.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AdProperties holds the user-editable fields of an ad.
type AdProperties struct {
	Title       string `json:"title"`
	Price       int    `json:"price"`
	Description string `json:"description"`
}

// Comment represents a remark left by a user on an ad.
type Comment struct {
	// ID is the unique identifier of the comment. Ids are not contiguous
	// within an ad.
	ID int `json:"id" db:"id"`

	// AdID identifies the ad the comment belongs to.
	AdID int `json:"ad_id" db:"ad_id"`

	// AuthorID identifies the user who wrote the comment.
	AuthorID int `json:"author_id" db:"author_id"`

	// Text is the body of the comment.
	Text string `json:"text" db:"text"`

	// CreatedAt is set once when the comment is stored.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
