package events

import (
	"context"
	"testing"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProductPublisher struct {
	mock.Mock
}

func (m *MockProductPublisher) PublishProduct(ctx context.Context, event *events.ProductEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockProductPublisher) Close() {
	m.Called()
}

func TestProductCreatedPublishesEvent(t *testing.T) {
	log, _ := test.NewNullLogger()
	mockPub := new(MockProductPublisher)

	var published *events.ProductEvent
	mockPub.On("PublishProduct", mock.Anything, mock.AnythingOfType("*events.ProductEvent")).
		Run(func(args mock.Arguments) { published = args.Get(1).(*events.ProductEvent) }).
		Return(nil)
	mockPub.On("Close").Return()

	actor := "actor-1"
	product := &models.Product{
		ID:         uuid.New(),
		TenantID:   "tenant-a",
		Name:       "Silk Bangles",
		CategoryID: uuid.New(),
		MRPPrice:   decimal.RequireFromString("499.50"),
		Status:     models.CatalogStatusActive,
		CreatedBy:  &actor,
	}

	p := newPublisher(mockPub, logrus.NewEntry(log))
	p.ProductCreated(context.Background(), product)
	p.Close()

	require.NotNil(t, published)
	assert.Equal(t, "tenant-a", published.TenantID)
	assert.Equal(t, product.ID.String(), published.ProductID)
	assert.Equal(t, "Silk Bangles", published.ProductName)
	assert.Equal(t, "created", published.ChangeType)
	assert.Equal(t, "actor-1", published.ActorID)
	assert.InDelta(t, 499.5, published.Price, 0.001)
	mockPub.AssertExpectations(t)
}

func TestProductCreatedLogsPublishFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	mockPub := new(MockProductPublisher)
	mockPub.On("PublishProduct", mock.Anything, mock.Anything).Return(assert.AnError)
	mockPub.On("Close").Return()

	p := newPublisher(mockPub, logrus.NewEntry(log))
	p.ProductCreated(context.Background(), &models.Product{ID: uuid.New(), TenantID: "tenant-a"})
	p.Close()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to publish product event", hook.LastEntry().Message)
}

func TestProductCreatedAfterCloseIsDropped(t *testing.T) {
	log, hook := test.NewNullLogger()
	mockPub := new(MockProductPublisher)
	mockPub.On("Close").Return().Once()

	p := newPublisher(mockPub, logrus.NewEntry(log))
	p.Close()
	p.ProductCreated(context.Background(), &models.Product{ID: uuid.New(), TenantID: "tenant-a"})
	p.Close()

	mockPub.AssertNotCalled(t, "PublishProduct", mock.Anything, mock.Anything)
	mockPub.AssertNumberOfCalls(t, "Close", 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Publisher closed, dropping product event", hook.LastEntry().Message)
}
