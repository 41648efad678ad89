package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room is either a named group or a direct chat between exactly two users.
// NameKey is set for groups only, PairKey for direct chats only.
type Room struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	NameKey   string               `bson:"name_key,omitempty" json:"-"`
	PairKey   string               `bson:"pair_key,omitempty" json:"-"`
	IsGroup   bool                 `bson:"is_group" json:"is_group"`
	Members   []primitive.ObjectID `bson:"members" json:"members"`
	CreatedBy primitive.ObjectID   `bson:"created_by,omitempty" json:"created_by"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

func (r *Room) HasMember(id primitive.ObjectID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}

// GroupKey is the case-insensitive identity of a group name.
func GroupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PairKey identifies a direct chat by its unordered member pair.
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// DirectChatName is "chat <a>-<b>" with the usernames sorted.
func DirectChatName(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "chat " + a + "-" + b
}
