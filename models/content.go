package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CourseContent is the extracted-text document the indexer reads. The
// surrounding web layer writes it after running the external text-extraction
// collaborator over an upload.
type CourseContent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ContentID string             `bson:"content_id" json:"content_id"`
	Title     string             `bson:"title" json:"title"`
	Text      string             `bson:"text" json:"-"`
	Type      ContentType        `bson:"type" json:"type"`
	Week      int                `bson:"week,omitempty" json:"week,omitempty"`
	Topic     string             `bson:"topic,omitempty" json:"topic,omitempty"`
	Language  string             `bson:"language,omitempty" json:"language,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
