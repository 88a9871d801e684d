package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"carshelf/internal/common"
	"carshelf/internal/models"
	"carshelf/internal/repositories"
	"carshelf/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testCDN   = "http://cdn.test/car-images/"
	testStamp = int64(1714560000000)
)

type CarServiceTestSuite struct {
	suite.Suite
	repo    *testhelpers.MockCarRepository
	storage *testhelpers.MockStorageService
	cache   *testhelpers.MockCacheService
	service CarService
	ownerID uuid.UUID
	carID   uuid.UUID
}

func (suite *CarServiceTestSuite) SetupTest() {
	suite.repo = &testhelpers.MockCarRepository{}
	suite.storage = &testhelpers.MockStorageService{}
	suite.cache = &testhelpers.MockCacheService{}
	suite.repo.Test(suite.T())
	suite.storage.Test(suite.T())
	suite.cache.Test(suite.T())

	suite.ownerID = uuid.New()
	suite.carID = uuid.New()

	svc := NewCarService(suite.repo, suite.storage, suite.cache, 15*time.Minute, zap.NewNop()).(*carService)
	svc.now = func() time.Time { return time.UnixMilli(testStamp) }
	svc.newID = func() uuid.UUID { return suite.carID }
	suite.service = svc
}

func (suite *CarServiceTestSuite) TearDownTest() {
	suite.repo.AssertExpectations(suite.T())
	suite.storage.AssertExpectations(suite.T())
	suite.cache.AssertExpectations(suite.T())
}

func TestCarServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CarServiceTestSuite))
}

func imageFile(name, content string) ImageFile {
	return ImageFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "image/jpeg",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func (suite *CarServiceTestSuite) objectName(index int, ext string) string {
	return fmt.Sprintf("%s/%d-%d.%s", suite.carID, testStamp, index, ext)
}

func (suite *CarServiceTestSuite) existingCar(images ...string) *models.Car {
	car := &models.Car{
		ID:     suite.carID,
		Title:  "Old title",
		Tags:   []string{"old"},
		UserID: suite.ownerID,
		Images: images,
	}
	car.Reconcile()
	return car
}

func imagesEqual(want []string) interface{} {
	return mock.MatchedBy(func(c *models.Car) bool {
		return reflect.DeepEqual(c.Images, want)
	})
}

func (suite *CarServiceTestSuite) assertKind(err error, kind common.ErrorKind) {
	suite.Require().Error(err)
	suite.True(common.IsKind(err, kind), "unexpected error: %v", err)
}

func (suite *CarServiceTestSuite) TestCreate_StoresDetailsThenImagesInOrder() {
	name0 := suite.objectName(0, "jpg")
	name1 := suite.objectName(1, "png")

	suite.repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Car) bool {
		return c.ID == suite.carID &&
			c.Title == "Civic" &&
			c.UserID == suite.ownerID &&
			reflect.DeepEqual(c.Tags, []string{"sedan", "compact"}) &&
			c.Description != nil && *c.Description == "Low mileage"
	})).Return(nil)
	// The first upload finishes last; its URL must still come first.
	suite.storage.On("Upload", mock.Anything, name0, mock.Anything, int64(3), "image/jpeg").
		After(30*time.Millisecond).Return(testCDN+name0, nil)
	suite.storage.On("Upload", mock.Anything, name1, mock.Anything, int64(3), "image/jpeg").
		Return(testCDN+name1, nil)
	suite.repo.On("UpdateImages", mock.Anything, imagesEqual([]string{testCDN + name0, testCDN + name1})).Return(nil)

	result, err := suite.service.Create(context.Background(), suite.ownerID,
		models.CarInput{Title: " Civic ", Description: "Low mileage", Tags: "sedan, compact"},
		[]ImageFile{imageFile("front.JPG", "abc"), imageFile("side.png", "def")},
	)

	suite.Require().NoError(err)
	car := result.Car
	suite.Equal("Civic", car.Title)
	suite.Equal([]string{testCDN + name0, testCDN + name1}, car.Images)
	suite.Require().NotNil(car.CoverImage)
	suite.Equal(testCDN+name0, *car.CoverImage)
	suite.Equal([]models.CarImage{{URL: testCDN + name0}, {URL: testCDN + name1}}, car.CarImages)
	suite.Equal(SideEffectReport{Attempted: 2}, result.Uploads)
}

func (suite *CarServiceTestSuite) TestCreate_WithoutImages() {
	suite.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Car")).Return(nil)

	result, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"}, nil)

	suite.Require().NoError(err)
	suite.Equal([]string{}, result.Car.Images)
	suite.Equal([]string{}, result.Car.Tags)
	suite.Nil(result.Car.CoverImage)
	suite.Nil(result.Car.Description)
}

func (suite *CarServiceTestSuite) TestCreate_EmptyTitleWritesNothing() {
	_, err := suite.service.Create(context.Background(), suite.ownerID,
		models.CarInput{Title: "   "}, []ImageFile{imageFile("a.jpg", "abc")})

	suite.assertKind(err, common.KindValidation)
	suite.EqualError(err, "Title is required")
}

func (suite *CarServiceTestSuite) TestCreate_RequiresOwner() {
	_, err := suite.service.Create(context.Background(), uuid.Nil, models.CarInput{Title: "Civic"}, nil)

	suite.assertKind(err, common.KindAuthentication)
}

func (suite *CarServiceTestSuite) TestCreate_RecordStoreFailureAborts() {
	suite.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	_, err := suite.service.Create(context.Background(), suite.ownerID,
		models.CarInput{Title: "Civic"}, []ImageFile{imageFile("a.jpg", "abc")})

	suite.assertKind(err, common.KindUpstream)
	suite.storage.AssertNotCalled(suite.T(), "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestCreate_FailedUploadIsDroppedAndCounted() {
	name0 := suite.objectName(0, "jpg")
	name1 := suite.objectName(1, "jpg")

	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.storage.On("Upload", mock.Anything, name0, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket full"))
	suite.storage.On("Upload", mock.Anything, name1, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+name1, nil)
	suite.repo.On("UpdateImages", mock.Anything, imagesEqual([]string{testCDN + name1})).Return(nil)

	result, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"},
		[]ImageFile{imageFile("a.jpg", "abc"), imageFile("b.jpg", "def")})

	suite.Require().NoError(err)
	suite.Equal([]string{testCDN + name1}, result.Car.Images)
	suite.Equal(testCDN+name1, *result.Car.CoverImage)
	suite.Equal(SideEffectReport{Attempted: 2, Failed: 1}, result.Uploads)
	suite.Equal(1, result.Uploads.Succeeded())
}

func (suite *CarServiceTestSuite) TestCreate_AllUploadsFailSkipsImageWrite() {
	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	result, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"},
		[]ImageFile{imageFile("a.jpg", "abc")})

	suite.Require().NoError(err)
	suite.Equal([]string{}, result.Car.Images)
	suite.Nil(result.Car.CoverImage)
	suite.repo.AssertNotCalled(suite.T(), "UpdateImages", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestCreate_ImageWriteFailureDiscardsCar() {
	name0 := suite.objectName(0, "jpg")

	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.storage.On("Upload", mock.Anything, name0, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+name0, nil)
	suite.repo.On("UpdateImages", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	suite.storage.On("RemoveObject", mock.Anything, name0).Return(nil)
	suite.repo.On("Delete", mock.Anything, suite.carID).Return(nil)

	_, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"},
		[]ImageFile{imageFile("a.jpg", "abc")})

	suite.assertKind(err, common.KindUpstream)
	suite.EqualError(err, "Failed to save car images: connection reset")
}

func (suite *CarServiceTestSuite) TestCreate_RejectedFileKeepsItsSlotAndCountsAsFailure() {
	name1 := suite.objectName(1, "png")
	rejected := imageFile("notes.txt", "hello")
	rejected.Rejected = errors.New("image0 is text/plain")

	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.storage.On("Upload", mock.Anything, name1, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+name1, nil)
	suite.repo.On("UpdateImages", mock.Anything, imagesEqual([]string{testCDN + name1})).Return(nil)

	result, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"},
		[]ImageFile{rejected, imageFile("ok.png", "abc")})

	suite.Require().NoError(err)
	suite.Equal(SideEffectReport{Attempted: 2, Failed: 1}, result.Uploads)
	suite.storage.AssertNumberOfCalls(suite.T(), "Upload", 1)
}

func (suite *CarServiceTestSuite) TestCreate_KeepsAtMostTenImages() {
	files := make([]ImageFile, 12)
	for i := range files {
		files[i] = imageFile("p.jpg", "abc")
	}

	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.storage.On("Upload", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, suite.carID.String()+"/")
	}), mock.Anything, mock.Anything, mock.Anything).Return(testCDN+"x.jpg", nil).Times(models.MaxCarImages)
	suite.repo.On("UpdateImages", mock.Anything, mock.Anything).Return(nil)

	result, err := suite.service.Create(context.Background(), suite.ownerID, models.CarInput{Title: "Civic"}, files)

	suite.Require().NoError(err)
	suite.Len(result.Car.Images, models.MaxCarImages)
	suite.Equal(models.MaxCarImages, result.Uploads.Attempted)
}

func (suite *CarServiceTestSuite) TestGet_CacheMissReadsAndPopulates() {
	car := suite.existingCar(testCDN + "a.jpg")
	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(nil, nil)
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(car, nil)
	suite.cache.On("SetCar", mock.Anything, car, 15*time.Minute).Return(nil)

	got, err := suite.service.Get(context.Background(), suite.ownerID, suite.carID)

	suite.Require().NoError(err)
	suite.Equal(car, got)
}

func (suite *CarServiceTestSuite) TestGet_CacheHitSkipsStore() {
	car := suite.existingCar()
	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(car, nil)

	got, err := suite.service.Get(context.Background(), suite.ownerID, suite.carID)

	suite.Require().NoError(err)
	suite.Equal(suite.carID, got.ID)
	suite.repo.AssertNotCalled(suite.T(), "GetByID", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestGet_CacheErrorFallsBackToStore() {
	car := suite.existingCar()
	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(nil, errors.New("redis down"))
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(car, nil)
	suite.cache.On("SetCar", mock.Anything, car, mock.Anything).Return(errors.New("redis down"))

	got, err := suite.service.Get(context.Background(), suite.ownerID, suite.carID)

	suite.Require().NoError(err)
	suite.Equal(car, got)
}

func (suite *CarServiceTestSuite) TestGet_OtherOwnerIsForbidden() {
	car := suite.existingCar()
	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(car, nil)

	_, err := suite.service.Get(context.Background(), uuid.New(), suite.carID)

	suite.assertKind(err, common.KindAuthorization)
}

func (suite *CarServiceTestSuite) TestGet_NotFound() {
	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(nil, nil)
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(nil, repositories.ErrCarNotFound)

	_, err := suite.service.Get(context.Background(), suite.ownerID, suite.carID)

	suite.assertKind(err, common.KindNotFound)
	suite.EqualError(err, "Car not found")
}

func (suite *CarServiceTestSuite) TestList_PassesSearchThrough() {
	cars := []*models.Car{suite.existingCar()}
	suite.repo.On("ListByOwner", mock.Anything, suite.ownerID, "civic").Return(cars, nil)

	got, err := suite.service.List(context.Background(), suite.ownerID, "civic")

	suite.Require().NoError(err)
	suite.Equal(cars, got)
}

func (suite *CarServiceTestSuite) TestList_StoreFailure() {
	suite.repo.On("ListByOwner", mock.Anything, suite.ownerID, "").Return(nil, errors.New("boom"))

	_, err := suite.service.List(context.Background(), suite.ownerID, "")

	suite.assertKind(err, common.KindUpstream)
	suite.EqualError(err, "Failed to fetch cars: boom")
}

func (suite *CarServiceTestSuite) TestUpdate_RemovesSelectedAndAppendsNew() {
	kept := testCDN + suite.carID.String() + "/1700000000000-1.jpg"
	dropped := testCDN + suite.carID.String() + "/1700000000000-0.jpg"
	added := suite.objectName(0, "jpg")

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(dropped, kept), nil)
	suite.storage.On("Upload", mock.Anything, added, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+added, nil)
	suite.repo.On("Update", mock.Anything, mock.MatchedBy(func(c *models.Car) bool {
		return c.Title == "New title" &&
			reflect.DeepEqual(c.Tags, []string{"a", "b"}) &&
			reflect.DeepEqual(c.Images, []string{kept, testCDN + added})
	})).Return(nil)
	suite.storage.On("RemoveObject", mock.Anything, suite.carID.String()+"/1700000000000-0.jpg").Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "New title", Tags: "a,,b"}, []string{dropped}, []ImageFile{imageFile("new.jpg", "xyz")})

	suite.Require().NoError(err)
	suite.Equal([]string{kept, testCDN + added}, result.Car.Images)
	suite.Equal(kept, *result.Car.CoverImage)
	suite.Equal(SideEffectReport{Attempted: 1}, result.Removals)
	suite.Equal(SideEffectReport{Attempted: 1}, result.Uploads)
}

func (suite *CarServiceTestSuite) TestUpdate_RemovingEveryImageClearsCover() {
	only := testCDN + suite.carID.String() + "/1700000000000-0.jpg"

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(only), nil)
	suite.storage.On("RemoveObject", mock.Anything, suite.carID.String()+"/1700000000000-0.jpg").Return(nil)
	suite.repo.On("Update", mock.Anything, mock.MatchedBy(func(c *models.Car) bool {
		return len(c.Images) == 0 && c.CoverImage == nil
	})).Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "Civic"}, []string{only}, nil)

	suite.Require().NoError(err)
	suite.Empty(result.Car.Images)
	suite.Nil(result.Car.CoverImage)
}

func (suite *CarServiceTestSuite) TestUpdate_UnknownURLIsIgnored() {
	kept := testCDN + "a.jpg"

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(kept), nil)
	suite.repo.On("Update", mock.Anything, imagesEqual([]string{kept})).Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "Civic"}, []string{"http://elsewhere/x.jpg"}, nil)

	suite.Require().NoError(err)
	suite.Equal(0, result.Removals.Attempted)
	suite.storage.AssertNotCalled(suite.T(), "RemoveObject", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestUpdate_RemovalFailureIsReported() {
	dropped := testCDN + suite.carID.String() + "/old.jpg"

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(dropped), nil)
	suite.repo.On("Update", mock.Anything, imagesEqual([]string{})).Return(nil)
	suite.storage.On("RemoveObject", mock.Anything, suite.carID.String()+"/old.jpg").Return(errors.New("access denied"))
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "Civic"}, []string{dropped}, nil)

	suite.Require().NoError(err)
	suite.Equal(SideEffectReport{Attempted: 1, Failed: 1}, result.Removals)
}

func (suite *CarServiceTestSuite) TestUpdate_FillsOnlyRemainingSlots() {
	images := make([]string, models.MaxCarImages-1)
	for i := range images {
		images[i] = testCDN + uuid.NewString() + ".jpg"
	}
	added := suite.objectName(0, "jpg")

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(images...), nil)
	suite.storage.On("Upload", mock.Anything, added, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+added, nil).Once()
	suite.repo.On("Update", mock.Anything, imagesEqual(append(append([]string{}, images...), testCDN+added))).Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "Civic"}, nil,
		[]ImageFile{imageFile("a.jpg", "1"), imageFile("b.jpg", "2"), imageFile("c.jpg", "3")})

	suite.Require().NoError(err)
	suite.Len(result.Car.Images, models.MaxCarImages)
	suite.Equal(1, result.Uploads.Attempted)
}

func (suite *CarServiceTestSuite) TestUpdate_StoreFailureKeepsReferencedImages() {
	dropped := testCDN + suite.carID.String() + "/1700000000000-0.jpg"
	added := suite.objectName(0, "jpg")

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(dropped), nil)
	suite.storage.On("Upload", mock.Anything, added, mock.Anything, mock.Anything, mock.Anything).Return(testCDN+added, nil)
	suite.repo.On("Update", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	suite.storage.On("RemoveObject", mock.Anything, added).Return(nil)

	_, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: "Civic"}, []string{dropped}, []ImageFile{imageFile("new.jpg", "xyz")})

	suite.assertKind(err, common.KindUpstream)
	suite.storage.AssertNotCalled(suite.T(), "RemoveObject", mock.Anything, suite.carID.String()+"/1700000000000-0.jpg")
	suite.cache.AssertNotCalled(suite.T(), "DeleteCar", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestUpdate_OtherOwnerWritesNothing() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(testCDN+"a.jpg"), nil)

	_, err := suite.service.Update(context.Background(), uuid.New(), suite.carID,
		models.CarInput{Title: "Mine now"}, []string{testCDN + "a.jpg"}, nil)

	suite.assertKind(err, common.KindAuthorization)
	suite.repo.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestUpdate_BlankTitleWritesNothing() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(), nil)

	_, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID,
		models.CarInput{Title: ""}, nil, []ImageFile{imageFile("a.jpg", "abc")})

	suite.assertKind(err, common.KindValidation)
}

func (suite *CarServiceTestSuite) TestUpdate_NotFound() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(nil, repositories.ErrCarNotFound)

	_, err := suite.service.Update(context.Background(), suite.ownerID, suite.carID, models.CarInput{Title: "Civic"}, nil, nil)

	suite.assertKind(err, common.KindNotFound)
}

func (suite *CarServiceTestSuite) TestDelete_RemovesFolderThenRow() {
	prefix := suite.carID.String() + "/"
	objects := []string{prefix + "1-0.jpg", prefix + "1-1.jpg"}

	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(), nil).Once()
	suite.storage.On("List", mock.Anything, prefix).Return(objects, nil)
	suite.storage.On("RemoveObject", mock.Anything, objects[0]).Return(nil)
	suite.storage.On("RemoveObject", mock.Anything, objects[1]).Return(errors.New("gone"))
	suite.repo.On("Delete", mock.Anything, suite.carID).Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(nil)

	result, err := suite.service.Delete(context.Background(), suite.ownerID, suite.carID)

	suite.Require().NoError(err)
	suite.Equal(SideEffectReport{Attempted: 2, Failed: 1}, result.Removals)

	suite.cache.On("GetCar", mock.Anything, suite.carID).Return(nil, nil)
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(nil, repositories.ErrCarNotFound)

	_, err = suite.service.Get(context.Background(), suite.ownerID, suite.carID)
	suite.assertKind(err, common.KindNotFound)
}

func (suite *CarServiceTestSuite) TestDelete_ListFailureStillDeletesRow() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(), nil)
	suite.storage.On("List", mock.Anything, suite.carID.String()+"/").Return(nil, errors.New("unreachable"))
	suite.repo.On("Delete", mock.Anything, suite.carID).Return(nil)
	suite.cache.On("DeleteCar", mock.Anything, suite.carID).Return(errors.New("redis down"))

	result, err := suite.service.Delete(context.Background(), suite.ownerID, suite.carID)

	suite.Require().NoError(err)
	suite.Equal(SideEffectReport{Attempted: 1, Failed: 1}, result.Removals)
}

func (suite *CarServiceTestSuite) TestDelete_OtherOwnerIsForbidden() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(), nil)

	_, err := suite.service.Delete(context.Background(), uuid.New(), suite.carID)

	suite.assertKind(err, common.KindAuthorization)
	suite.storage.AssertNotCalled(suite.T(), "List", mock.Anything, mock.Anything)
}

func (suite *CarServiceTestSuite) TestDelete_StoreFailure() {
	suite.repo.On("GetByID", mock.Anything, suite.carID).Return(suite.existingCar(), nil)
	suite.storage.On("List", mock.Anything, mock.Anything).Return([]string{}, nil)
	suite.repo.On("Delete", mock.Anything, suite.carID).Return(errors.New("deadlock"))

	_, err := suite.service.Delete(context.Background(), suite.ownerID, suite.carID)

	suite.assertKind(err, common.KindUpstream)
}

func TestFileExtension(t *testing.T) {
	tests := map[string]string{
		"front.JPG":      "jpg",
		"photo.webp":     "webp",
		"archive.tar.gz": "gz",
		"noext":          "bin",
		"":               "bin",
	}
	for name, want := range tests {
		if got := fileExtension(name); got != want {
			t.Errorf("fileExtension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestPartitionImages(t *testing.T) {
	survivors, removed := partitionImages([]string{"a", "b", "c"}, []string{"b", "z"})
	if !reflect.DeepEqual(survivors, []string{"a", "c"}) || !reflect.DeepEqual(removed, []string{"b"}) {
		t.Errorf("got survivors=%v removed=%v", survivors, removed)
	}
}
