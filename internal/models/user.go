package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username             string               `bson:"username" json:"username"`
	Email                *string              `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash         string               `bson:"password_hash" json:"-"`
	Bio                  string               `bson:"bio" json:"bio"`
	IsOnline             bool                 `bson:"is_online" json:"is_online"`
	LastOnline           time.Time            `bson:"last_online" json:"last_online"`
	Role                 string               `bson:"role" json:"role"`
	Contacts             []primitive.ObjectID `bson:"contacts" json:"contacts"`
	NotificationsEnabled bool                 `bson:"notifications_enabled" json:"notifications_enabled"`
	EmailVerified        bool                 `bson:"email_verified" json:"email_verified"`
	CreatedAt            time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at" json:"updated_at"`
}

func (u *User) TokenSubject() (string, string, string) {
	return u.ID.Hex(), u.Username, u.Role
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
