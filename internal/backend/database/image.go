package database

import "time"

type Image struct {
	ID        string    `db:"id" json:"id"`
	ImagePath string    `db:"image_path" json:"imagePath"` // public URI the image is served from
	FileName  string    `db:"file_name" json:"-"`          // name of the stored file inside the upload directory
	Format    string    `db:"format" json:"format"`
	IsCorrect bool      `db:"is_correct" json:"isCorrect"`
	Rank      string    `db:"rank" json:"rank"` // LexoRank string to maintain ordering
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
