package testhelpers

import (
	"context"
	"os"
	"testing"

	"carshelf/internal/models"
	"carshelf/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL, applies migrations and empties
// the cars table. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, connString, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE cars`); err != nil {
		pool.Close()
		t.Fatalf("Failed to reset cars table: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() {
			_, _ = pool.Exec(context.Background(), `TRUNCATE cars`)
			pool.Close()
		},
	}
}

// InsertTestCar stores a car owned by ownerID directly, bypassing the
// repository. Legacy shapes can be written by passing nil images and a cover.
func InsertTestCar(t *testing.T, db *TestDB, ownerID uuid.UUID, title string, tags, images []string, cover *string) *models.Car {
	t.Helper()

	car := &models.Car{
		ID:         uuid.New(),
		Title:      title,
		Tags:       tags,
		UserID:     ownerID,
		Images:     images,
		CoverImage: cover,
	}
	if car.Tags == nil {
		car.Tags = []string{}
	}

	query := `
		INSERT INTO cars (id, title, tags, user_id, images, cover_image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := db.Pool.QueryRow(context.Background(), query, car.ID, car.Title, car.Tags, car.UserID, car.Images, car.CoverImage).
		Scan(&car.CreatedAt, &car.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to insert test car: %v", err)
	}
	return car
}

func StringPtr(s string) *string {
	return &s
}
