package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carvault/internal/domain"
	"carvault/internal/repository"
)

const createCarsTable = `
CREATE TABLE IF NOT EXISTS cars (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	car_type TEXT NOT NULL DEFAULT '',
	dealer TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	images TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cars_user_id ON cars(user_id);
`

// searchPredicate ANDs the owner filter with a case-insensitive substring
// match over title, description and each tag. Tags are a JSON array column,
// unpacked with json_each. An empty term matches every row.
const searchPredicate = `
user_id = ?
AND (
	lower(title) LIKE '%' || lower(?) || '%'
	OR lower(description) LIKE '%' || lower(?) || '%'
	OR EXISTS (
		SELECT 1 FROM json_each(cars.tags)
		WHERE lower(json_each.value) LIKE '%' || lower(?) || '%'
	)
)`

type CarRepository struct {
	db *sql.DB
}

func NewCarRepository(db *sql.DB) repository.CarRepository {
	return &CarRepository{db: db}
}

func (r *CarRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCarsTable); err != nil {
		return fmt.Errorf("create cars table: %w", err)
	}
	return nil
}

func (r *CarRepository) Create(ctx context.Context, car *domain.Car) (string, error) {
	now := time.Now().UTC()
	car.ID = uuid.NewString()
	car.CreatedAt = now
	car.UpdatedAt = now

	tags, images, err := encodeLists(car)
	if err != nil {
		return "", err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO cars (id, user_id, title, description, company, car_type, dealer, tags, images, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		car.ID,
		car.UserID,
		car.Title,
		car.Description,
		car.Company,
		car.CarType,
		car.Dealer,
		tags,
		images,
		car.CreatedAt,
		car.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert car: %w", err)
	}
	return car.ID, nil
}

func (r *CarRepository) Get(ctx context.Context, userID, id string) (*domain.Car, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, title, description, company, car_type, dealer, tags, images, created_at, updated_at
FROM cars
WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	car, err := scanCar(row.Scan)
	if err != nil {
		return nil, err
	}
	return car, nil
}

func (r *CarRepository) Update(ctx context.Context, car *domain.Car) error {
	car.UpdatedAt = time.Now().UTC()

	tags, images, err := encodeLists(car)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE cars
SET title = ?, description = ?, company = ?, car_type = ?, dealer = ?, tags = ?, images = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		car.Title,
		car.Description,
		car.Company,
		car.CarType,
		car.Dealer,
		tags,
		images,
		car.UpdatedAt,
		car.ID,
		car.UserID,
	)
	if err != nil {
		return fmt.Errorf("update car: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update car rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CarRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cars WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete car rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CarRepository) Search(ctx context.Context, q repository.CarSearch) ([]domain.Car, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, title, description, company, car_type, dealer, tags, images, created_at, updated_at
FROM cars
WHERE `+searchPredicate+`
ORDER BY rowid
LIMIT ? OFFSET ?`,
		q.UserID, q.Term, q.Term, q.Term, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search cars: %w", err)
	}
	defer rows.Close()

	var cars []domain.Car
	for rows.Next() {
		car, err := scanCar(rows.Scan)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cars: %w", err)
	}
	return cars, nil
}

func (r *CarRepository) Count(ctx context.Context, q repository.CarSearch) (int, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM cars WHERE `+searchPredicate,
		q.UserID, q.Term, q.Term, q.Term,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count cars: %w", err)
	}
	return count, nil
}

func encodeLists(car *domain.Car) (tags, images string, err error) {
	tagsJSON, err := json.Marshal(emptyAsList(car.Tags))
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	imagesJSON, err := json.Marshal(emptyAsList(car.Images))
	if err != nil {
		return "", "", fmt.Errorf("encode images: %w", err)
	}
	return string(tagsJSON), string(imagesJSON), nil
}

func emptyAsList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scanCar(scan func(dest ...any) error) (*domain.Car, error) {
	var (
		car    domain.Car
		tags   string
		images string
	)
	if err := scan(
		&car.ID,
		&car.UserID,
		&car.Title,
		&car.Description,
		&car.Company,
		&car.CarType,
		&car.Dealer,
		&tags,
		&images,
		&car.CreatedAt,
		&car.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan car: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &car.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &car.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return &car, nil
}
