package domain

import "time"

// Car represents a car record owned by a single user.
type Car struct {
	ID          string
	Title       string
	Description string
	Company     string
	CarType     string
	Dealer      string
	Tags        []string
	Images      []string
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CarPage is one page of a filtered car listing.
type CarPage struct {
	Cars       []Car
	TotalCount int
	TotalPages int
	Page       int
}
