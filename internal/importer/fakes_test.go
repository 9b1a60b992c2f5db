package importer

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeStore is an in-memory EntityStore with call counters
type fakeStore struct {
	mu         sync.Mutex
	categories map[string]*models.Category
	types      map[string]*models.ProductType
	products   []*models.Product

	categoryFinds   int
	typeFinds       int
	categoryCreates int
	typeCreates     int
	productCreates  int
	existsChecks    int

	findCategoryErr    error
	createTypeErr      error
	createProductErr   error
	conflictCategories bool // a concurrent writer wins every category create
	conflictProducts   bool // a concurrent writer wins every product create
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: make(map[string]*models.Category),
		types:      make(map[string]*models.ProductType),
	}
}

func typeKey(categoryID uuid.UUID, nameKey string) string {
	return categoryID.String() + "|" + nameKey
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryCreates + s.typeCreates + s.productCreates
}

func (s *fakeStore) seedCategory(name string) *models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Category{ID: uuid.New(), Name: name, NameKey: models.NameKey(name)}
	s.categories[c.NameKey] = c
	return c
}

func (s *fakeStore) FindCategory(ctx context.Context, nameKey string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categoryFinds++
	if s.findCategoryErr != nil {
		return nil, s.findCategoryErr
	}
	return s.categories[nameKey], nil
}

func (s *fakeStore) CreateCategory(ctx context.Context, category *models.Category) (CreateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categoryCreates++
	if s.conflictCategories {
		s.categories[category.NameKey] = &models.Category{ID: uuid.New(), Name: category.Name, NameKey: category.NameKey}
		return CreateConflict, nil
	}
	if _, ok := s.categories[category.NameKey]; ok {
		return CreateConflict, nil
	}
	s.categories[category.NameKey] = category
	return Created, nil
}

func (s *fakeStore) FindProductType(ctx context.Context, categoryID uuid.UUID, nameKey string) (*models.ProductType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeFinds++
	return s.types[typeKey(categoryID, nameKey)], nil
}

func (s *fakeStore) CreateProductType(ctx context.Context, productType *models.ProductType) (CreateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeCreates++
	if s.createTypeErr != nil {
		return CreateError, s.createTypeErr
	}
	k := typeKey(productType.CategoryID, productType.NameKey)
	if _, ok := s.types[k]; ok {
		return CreateConflict, nil
	}
	s.types[k] = productType
	return Created, nil
}

func (s *fakeStore) ProductExists(ctx context.Context, key ProductKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsChecks++
	for _, p := range s.products {
		if p.NameKey == key.NameKey && p.CategoryID == key.CategoryID &&
			p.ProductTypeID == key.TypeID && p.MRPPrice.Equal(key.MRP) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateProduct(ctx context.Context, product *models.Product) (CreateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productCreates++
	if s.createProductErr != nil {
		return CreateError, s.createProductErr
	}
	if s.conflictProducts {
		return CreateConflict, nil
	}
	s.products = append(s.products, product)
	return Created, nil
}

// fakeBlobStore stores every URL not listed in failing
type fakeBlobStore struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func newFakeBlobStore(failing ...string) *fakeBlobStore {
	f := &fakeBlobStore{failing: make(map[string]bool)}
	for _, u := range failing {
		f.failing[u] = true
	}
	return f
}

func (f *fakeBlobStore) FetchAndStore(ctx context.Context, url, bucket string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	fail := f.failing[url]
	f.mu.Unlock()
	if fail {
		return "", errors.New("dial tcp: connection refused")
	}
	return "https://cdn.test/" + bucket + "/" + path.Base(url), nil
}

func (f *fakeBlobStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func csvInput(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
