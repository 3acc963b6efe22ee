package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Message struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   string        `bson:"sender_id" json:"sender_id"`
	ReceiverID string        `bson:"receiver_id" json:"receiver_id"`
	Content    string        `bson:"content" json:"content"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
}

// ScheduledMessage is a message held back until ScheduledTime.
type ScheduledMessage struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID      string        `bson:"sender_id" json:"sender_id"`
	ReceiverID    string        `bson:"receiver_id" json:"receiver_id"`
	Content       string        `bson:"content" json:"content"`
	ScheduledTime time.Time     `bson:"scheduled_time" json:"scheduled_time"`
	Status        string        `bson:"status" json:"status"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
}
