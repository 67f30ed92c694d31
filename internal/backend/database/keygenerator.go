package database

import "github.com/google/uuid"

// generateID returns a random (version 4) UUID string.
func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
