package repository

import (
	"context"

	"carvault/internal/domain"
)

// CarSearch narrows and pages a car listing. Term matches title, description
// or any tag as a case-insensitive substring; Limit/Offset page the result.
type CarSearch struct {
	UserID string
	Term   string
	Limit  int
	Offset int
}

// CarRepository exposes persistence operations for Car records. Every
// operation that addresses a single car filters by owner as well as id.
type CarRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, car *domain.Car) (string, error)
	Get(ctx context.Context, userID, id string) (*domain.Car, error)
	Update(ctx context.Context, car *domain.Car) error
	Delete(ctx context.Context, userID, id string) error
	Search(ctx context.Context, q CarSearch) ([]domain.Car, error)
	Count(ctx context.Context, q CarSearch) (int, error)
}
