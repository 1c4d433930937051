package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Session is the server-side record proving a token has not been revoked.
// It lives inside its owning user's sessions array and is only ever touched
// through single-document array updates.
type Session struct {
	ID        string    `bson:"session_id" json:"session_id"`
	ExpiresAt time.Time `bson:"exp" json:"exp"`
}

// User is a document in the Users collection. The sessions array is owned by
// the auth store; nothing else mutates it.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string        `bson:"name" json:"name"`
	Email        string        `bson:"email" json:"email"`
	PasswordHash []byte        `bson:"password" json:"-"`
	IsAdmin      bool          `bson:"is_admin" json:"is_admin"`
	Verified     bool          `bson:"verified" json:"verified"`
	IsDeleted    bool          `bson:"is_deleted" json:"is_deleted"`
	DOB          time.Time     `bson:"dob" json:"dob"`
	CreatedAt    time.Time     `bson:"created_at" json:"created_at"`
	Sessions     []Session     `bson:"sessions" json:"-"`
}

// LiveSession returns the embedded session with the given id, if present.
func (u *User) LiveSession(sessionID string) (Session, bool) {
	for _, s := range u.Sessions {
		if s.ID == sessionID {
			return s, true
		}
	}
	return Session{}, false
}
