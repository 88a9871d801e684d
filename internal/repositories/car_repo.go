package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carshelf/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCarNotFound is returned when no cars row matches the requested id.
var ErrCarNotFound = errors.New("car not found")

// DBTX is the subset of pgxpool.Pool the repositories use. pgxmock pools
// satisfy it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type CarRepository interface {
	Create(ctx context.Context, car *models.Car) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, search string) ([]*models.Car, error)
	Update(ctx context.Context, car *models.Car) error
	UpdateImages(ctx context.Context, car *models.Car) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type carRepo struct {
	db DBTX
}

func NewCarRepo(db DBTX) CarRepository {
	return &carRepo{db: db}
}

const carColumns = `id, title, description, to_jsonb(tags), user_id, to_jsonb(images), cover_image, created_at, updated_at`

// Create inserts the car with no photos and fills in its timestamps.
func (r *carRepo) Create(ctx context.Context, car *models.Car) error {
	query := `
		INSERT INTO cars (id, title, description, tags, user_id, images, cover_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '{}', NULL, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	tags := car.Tags
	if tags == nil {
		tags = []string{}
	}
	err := r.db.QueryRow(ctx, query, car.ID, car.Title, car.Description, tags, car.UserID).Scan(&car.CreatedAt, &car.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert car: %w", err)
	}
	car.Images = []string{}
	car.CoverImage = nil
	return nil
}

func (r *carRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1`

	car, err := scanCar(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("get car: %w", err)
	}
	return car, nil
}

// ListByOwner returns the owner's cars, newest first. A non-empty search
// matches title or description case-insensitively, or an exact tag.
func (r *carRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, search string) ([]*models.Car, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if search == "" {
		query := `SELECT ` + carColumns + ` FROM cars WHERE user_id = $1 ORDER BY created_at DESC`
		rows, err = r.db.Query(ctx, query, ownerID)
	} else {
		query := `SELECT ` + carColumns + ` FROM cars
			WHERE user_id = $1
			AND (title ILIKE $2 OR COALESCE(description, '') ILIKE $2 OR $3 = ANY(tags))
			ORDER BY created_at DESC`
		rows, err = r.db.Query(ctx, query, ownerID, "%"+escapeLike(search)+"%", search)
	}
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	defer rows.Close()

	cars := []*models.Car{}
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

// Update replaces title, description, tags and the photo list in a single
// statement.
func (r *carRepo) Update(ctx context.Context, car *models.Car) error {
	query := `
		UPDATE cars
		SET title = $1, description = $2, tags = $3, images = $4, cover_image = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	tags := car.Tags
	if tags == nil {
		tags = []string{}
	}
	images := car.Images
	if images == nil {
		images = []string{}
	}
	err := r.db.QueryRow(ctx, query, car.Title, car.Description, tags, images, car.CoverImage, car.ID).Scan(&car.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCarNotFound
		}
		return fmt.Errorf("update car: %w", err)
	}
	return nil
}

// UpdateImages writes the photo list and its cover.
func (r *carRepo) UpdateImages(ctx context.Context, car *models.Car) error {
	query := `
		UPDATE cars
		SET images = $1, cover_image = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	images := car.Images
	if images == nil {
		images = []string{}
	}
	err := r.db.QueryRow(ctx, query, images, car.CoverImage, car.ID).Scan(&car.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCarNotFound
		}
		return fmt.Errorf("update car images: %w", err)
	}
	return nil
}

func (r *carRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCarNotFound
	}
	return nil
}

// ExistingIDs reports which of ids still have a cars row.
func (r *carRepo) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM cars WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup car ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan car id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

func scanCar(row pgx.Row) (*models.Car, error) {
	var raw models.RawCar
	err := row.Scan(&raw.ID, &raw.Title, &raw.Description, &raw.Tags, &raw.UserID, &raw.Images, &raw.CoverImage, &raw.CreatedAt, &raw.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return raw.Normalize(), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
