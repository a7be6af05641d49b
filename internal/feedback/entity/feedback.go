package entity

import (
	"time"

	userentity "github.com/ovaphlow/pitchfork/service-content-go/internal/user/entity"
)

// Feedback is a row in the `feedbacks` table.
type Feedback struct {
	ID        int64     `db:"id" json:"id"`
	UserUUID  string    `db:"user_uuid" json:"user_uuid"`
	Content   string    `db:"content" json:"content"`
	Rating    int       `db:"rating" json:"rating"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type FeedbackUpdate struct {
	Content *string `json:"content"`
	Rating  *int    `json:"rating"`
	Status  *string `json:"status"`
}

// WithAuthor is a feedback row joined in memory with its author. User is
// nil when the author uuid matches no account.
type WithAuthor struct {
	Feedback
	User *userentity.User `json:"user,omitempty"`
}
