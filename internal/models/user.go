package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a Together account. PartnerID stays null until the pair is linked.
type User struct {
	ID                 bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name               string         `bson:"name" json:"name"`
	Email              string         `bson:"email" json:"email"`
	PasswordHash       string         `bson:"password_hash" json:"-"`
	PartnerEmail       string         `bson:"partner_email,omitempty" json:"partner_email,omitempty"`
	PartnerID          *bson.ObjectID `bson:"partner_id" json:"partner_id"`
	EmailNotifications bool           `bson:"email_notifications" json:"email_notifications"`
	CreatedAt          time.Time      `bson:"created_at" json:"created_at"`
}

func (u *User) HasPartner() bool {
	return u.PartnerID != nil && !u.PartnerID.IsZero()
}
