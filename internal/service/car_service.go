package service

import (
	"context"
	"errors"
	"strings"

	"carvault/internal/domain"
	"carvault/internal/repository"
)

const (
	defaultPageSize = 6
	defaultPage     = 1
)

// CarInput carries the caller-supplied fields for a new car.
type CarInput struct {
	Title       string
	Description string
	Company     string
	CarType     string
	Dealer      string
	Tags        []string
	Images      []string
}

// CarPatch carries a partial update; nil fields keep their stored value.
type CarPatch struct {
	Title       *string
	Description *string
	Company     *string
	CarType     *string
	Dealer      *string
	Tags        []string
	Images      []string
}

// CarService coordinates car record operations for an authenticated owner.
// Every operation filters by owner at the store level, so another user's
// car id behaves exactly like a missing one.
type CarService interface {
	Create(ctx context.Context, ownerID string, input CarInput) (*domain.Car, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Car, error)
	List(ctx context.Context, ownerID, searchTerm string, page, limit int) (*domain.CarPage, error)
	Update(ctx context.Context, ownerID, id string, patch CarPatch) (*domain.Car, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type carService struct {
	cars repository.CarRepository
}

func NewCarService(cars repository.CarRepository) CarService {
	return &carService{cars: cars}
}

func (s *carService) Create(ctx context.Context, ownerID string, input CarInput) (*domain.Car, error) {
	if ownerID == "" {
		return nil, invalidArgument("user id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalidArgument("title is required")
	}

	car := &domain.Car{
		Title:       input.Title,
		Description: input.Description,
		Company:     input.Company,
		CarType:     input.CarType,
		Dealer:      input.Dealer,
		Tags:        normalizeList(input.Tags),
		Images:      normalizeList(input.Images),
		UserID:      ownerID,
	}

	if _, err := s.cars.Create(ctx, car); err != nil {
		return nil, err
	}
	return car, nil
}

func (s *carService) Get(ctx context.Context, ownerID, id string) (*domain.Car, error) {
	if id == "" {
		return nil, invalidArgument("car id is required")
	}
	car, err := s.cars.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return car, nil
}

func (s *carService) List(ctx context.Context, ownerID, searchTerm string, page, limit int) (*domain.CarPage, error) {
	if ownerID == "" {
		return nil, invalidArgument("user id is required")
	}
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}

	q := repository.CarSearch{
		UserID: ownerID,
		Term:   searchTerm,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	cars, err := s.cars.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := s.cars.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	if cars == nil {
		cars = []domain.Car{}
	}

	return &domain.CarPage{
		Cars:       cars,
		TotalCount: total,
		TotalPages: (total + limit - 1) / limit,
		Page:       page,
	}, nil
}

func (s *carService) Update(ctx context.Context, ownerID, id string, patch CarPatch) (*domain.Car, error) {
	if id == "" {
		return nil, invalidArgument("car id is required")
	}

	car, err := s.cars.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, invalidArgument("title is required")
		}
		car.Title = *patch.Title
	}
	if patch.Description != nil {
		car.Description = *patch.Description
	}
	if patch.Company != nil {
		car.Company = *patch.Company
	}
	if patch.CarType != nil {
		car.CarType = *patch.CarType
	}
	if patch.Dealer != nil {
		car.Dealer = *patch.Dealer
	}
	if patch.Tags != nil {
		car.Tags = normalizeList(patch.Tags)
	}
	if patch.Images != nil {
		car.Images = normalizeList(patch.Images)
	}

	if err := s.cars.Update(ctx, car); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return car, nil
}

func (s *carService) Delete(ctx context.Context, ownerID, id string) error {
	if id == "" {
		return invalidArgument("car id is required")
	}
	if err := s.cars.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCarNotFound
		}
		return err
	}
	return nil
}

func normalizeList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
