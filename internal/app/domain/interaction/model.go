package interaction

import (
	"fmt"
	"time"
)

// Type enumerates supported movie interactions.
type Type string

const (
	TypeLike    Type = "like"
	TypeDislike Type = "dislike"
)

// ParseType validates a raw interaction type value.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeLike:
		return TypeLike, nil
	case TypeDislike:
		return TypeDislike, nil
	}
	return "", fmt.Errorf("invalid interaction type %q", value)
}

// Interaction records a user's reaction to a movie.
type Interaction struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	MovieID int64     `json:"movie_id"`
	Type    Type      `json:"interaction_type"`
	At      time.Time `json:"interaction_datetime"`
}
