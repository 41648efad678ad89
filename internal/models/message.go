package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type Message struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Content   string               `bson:"content" json:"content"`
	Sender    primitive.ObjectID   `bson:"sender" json:"sender"`
	RoomID    primitive.ObjectID   `bson:"room_id" json:"room_id"`
	ReadBy    []primitive.ObjectID `bson:"read_by" json:"read_by"`
	ReplyTo   *primitive.ObjectID  `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Status    MessageStatus        `bson:"status" json:"status"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}
