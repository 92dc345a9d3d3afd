package domain

import "time"

// Category is an admin-managed ticket category.
type Category struct {
	Name        string
	Description string
	CreatedAt   time.Time
}
