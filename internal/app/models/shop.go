package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// GeoPoint is a GeoJSON point, longitude first.
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// Shop is a document in the Shops collection. Reviews are embedded so that
// review mutations stay single-document updates.
type Shop struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID  bson.ObjectID `bson:"owner_id" json:"owner_id"`
	Title    string        `bson:"title" json:"title"`
	Street   string        `bson:"street" json:"street"`
	City     string        `bson:"city" json:"city"`
	Website  string        `bson:"website,omitempty" json:"website,omitempty"`
	Phone    string        `bson:"phone,omitempty" json:"phone,omitempty"`
	Category string        `bson:"category_name,omitempty" json:"category_name,omitempty"`
	Location *GeoPoint     `bson:"location,omitempty" json:"location,omitempty"`
	Photo    []byte        `bson:"photo,omitempty" json:"-"`
	Deleted  bool          `bson:"deleted" json:"deleted"`
	Reviews  []Review      `bson:"reviews" json:"-"`
}

// ReviewEdit is a snapshot of a review before it was replaced.
type ReviewEdit struct {
	Message string    `bson:"message" json:"message"`
	Score   int       `bson:"score" json:"score"`
	Date    time.Time `bson:"date" json:"date"`
}

// Review is embedded in a shop. Editing soft-deletes the old element and
// pushes a replacement carrying the edit history, so likes and comments on
// the superseded text are preserved verbatim.
type Review struct {
	UserID      bson.ObjectID  `bson:"user_id" json:"user_id"`
	Message     string         `bson:"message" json:"message"`
	Score       int            `bson:"score" json:"score"`
	DateCreated time.Time      `bson:"date_created" json:"date_created"`
	DateEdited  time.Time      `bson:"date_edited" json:"date_edited"`
	Edits       []ReviewEdit   `bson:"edits" json:"edits"`
	Likes       map[string]int `bson:"likes" json:"likes"`
	Deleted     bool           `bson:"deleted" json:"-"`
	Photo       []byte         `bson:"photo,omitempty" json:"-"`
	LikeCount   int            `bson:"like_count,omitempty" json:"like_count"`
}
