package model

import "time"

// RoomLock is an advisory lock serializing check-then-act sequences for a
// single room name. The lock ID is derived from the name, so a duplicate
// key error on insert means another request is mid-flight for the same room.
type RoomLock struct {
	ID        string    `bson:"_id" json:"id"`
	RoomName  string    `bson:"room_name" json:"room_name"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
