package model

import "time"

// BlogPost is an article generated from a video. (UserID, YouTubeURL) is
// unique: regenerating overwrites the existing row in place.
type BlogPost struct {
	ID           string    `json:"id"            db:"id"`
	UserID       string    `json:"-"             db:"user_id"`
	YouTubeURL   string    `json:"youtube_url"   db:"youtube_url"`
	YouTubeTitle string    `json:"youtube_title" db:"youtube_title"`
	BlogTitle    string    `json:"blog_title"    db:"blog_title"`
	Content      string    `json:"content"       db:"content"`
	AuthorName   string    `json:"author_name"   db:"author_name"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}
