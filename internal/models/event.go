package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Event struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    bson.ObjectID `bson:"user_id" json:"user_id"`
	Title     string        `bson:"title" json:"title"`
	StartTime time.Time     `bson:"start_time" json:"start_time"`
	EndTime   time.Time     `bson:"end_time" json:"end_time"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}
