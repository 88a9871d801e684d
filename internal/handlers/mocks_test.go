package handlers

import (
	"context"

	"carshelf/internal/models"
	"carshelf/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCarService struct {
	mock.Mock
}

func (m *MockCarService) Create(ctx context.Context, ownerID uuid.UUID, input models.CarInput, files []services.ImageFile) (*services.CarMutationResult, error) {
	args := m.Called(ctx, ownerID, input, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CarMutationResult), args.Error(1)
}

func (m *MockCarService) Get(ctx context.Context, ownerID, carID uuid.UUID) (*models.Car, error) {
	args := m.Called(ctx, ownerID, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}

func (m *MockCarService) List(ctx context.Context, ownerID uuid.UUID, search string) ([]*models.Car, error) {
	args := m.Called(ctx, ownerID, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Car), args.Error(1)
}

func (m *MockCarService) Update(ctx context.Context, ownerID, carID uuid.UUID, input models.CarInput, imagesToDelete []string, files []services.ImageFile) (*services.CarMutationResult, error) {
	args := m.Called(ctx, ownerID, carID, input, imagesToDelete, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CarMutationResult), args.Error(1)
}

func (m *MockCarService) Delete(ctx context.Context, ownerID, carID uuid.UUID) (*services.DeleteResult, error) {
	args := m.Called(ctx, ownerID, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DeleteResult), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockAuthService) SignUp(ctx context.Context, creds models.Credentials) (*models.User, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}
