package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 10 * time.Second

// productPublisher is the part of the shared publisher this service uses
type productPublisher interface {
	PublishProduct(ctx context.Context, event *events.ProductEvent) error
	Close()
}

// Publisher emits product events for rows created by an import
type Publisher struct {
	publisher productPublisher
	logger    *logrus.Entry

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPublisher connects to NATS and makes sure the products stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-import-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return newPublisher(publisher, logger.WithField("component", "catalog-import-events")), nil
}

func newPublisher(p productPublisher, logger *logrus.Entry) *Publisher {
	return &Publisher{publisher: p, logger: logger}
}

// Close waits for in-flight events and closes the NATS connection. Events
// published after Close are dropped.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// ProductCreated publishes a product.created event without blocking the import
func (p *Publisher) ProductCreated(ctx context.Context, product *models.Product) {
	event := buildProductEvent(events.ProductCreated, product)
	event.ChangeType = "created"
	if product.CreatedBy != nil {
		event.ActorID = *product.CreatedBy
	}
	p.publish(event)
}

func buildProductEvent(eventType string, product *models.Product) *events.ProductEvent {
	event := events.NewProductEvent(eventType, product.TenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = product.Name
	event.Status = string(product.Status)
	event.Price = product.MRPPrice.InexactFloat64()
	event.CategoryID = product.CategoryID.String()
	return event
}

func (p *Publisher) publish(event *events.ProductEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"tenantID":  event.TenantID,
		}).Warn("Publisher closed, dropping product event")
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		fields := logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"tenantID":  event.TenantID,
		}
		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(fields).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(fields).Debug("Product event published")
	}()
}
