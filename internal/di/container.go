package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/storelane/api/internal/payments"
	"github.com/storelane/api/internal/platform/config"
	"github.com/storelane/api/internal/platform/events"
	pfirestore "github.com/storelane/api/internal/platform/firestore"
	"github.com/storelane/api/internal/platform/requestctx"
	"github.com/storelane/api/internal/repositories"
	fsrepo "github.com/storelane/api/internal/repositories/firestore"
	"github.com/storelane/api/internal/services"
)

// Repositories bundles the persistence contracts the service layer depends on.
type Repositories struct {
	Carts   repositories.CartRepository
	Catalog repositories.CatalogRepository
	Coupons repositories.CouponRepository
	Orders  repositories.OrderRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Stock   services.StockService
	Coupons services.CouponService
	Orders  services.OrderService
}

// Container wires repositories, services, and background infrastructure for
// runtime use.
type Container struct {
	Config       config.Config
	Firestore    *pfirestore.Provider
	Repositories Repositories
	Services     Services
	Providers    *payments.Registry

	logger       *zap.Logger
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
}

// NewContainer constructs the runtime dependencies from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	c := &Container{
		Config:    cfg,
		Firestore: pfirestore.NewProvider(cfg.Firestore),
		logger:    logger,
	}

	if err := c.buildRepositories(); err != nil {
		return nil, err
	}
	if err := c.buildPaymentProviders(); err != nil {
		return nil, err
	}

	publisher, err := c.buildEventPublisher(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.buildServices(publisher); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the Firestore and Pub/Sub clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubTopic != nil {
		c.pubsubTopic.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Firestore != nil {
		if err := c.Firestore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) buildRepositories() error {
	carts, err := fsrepo.NewCartRepository(c.Firestore)
	if err != nil {
		return fmt.Errorf("build cart repository: %w", err)
	}
	catalog, err := fsrepo.NewCatalogRepository(c.Firestore)
	if err != nil {
		return fmt.Errorf("build catalog repository: %w", err)
	}
	coupons, err := fsrepo.NewCouponRepository(c.Firestore)
	if err != nil {
		return fmt.Errorf("build coupon repository: %w", err)
	}
	orders, err := fsrepo.NewOrderRepository(c.Firestore)
	if err != nil {
		return fmt.Errorf("build order repository: %w", err)
	}
	c.Repositories = Repositories{
		Carts:   carts,
		Catalog: catalog,
		Coupons: coupons,
		Orders:  orders,
	}
	return nil
}

func (c *Container) buildPaymentProviders() error {
	var providers []payments.Provider
	if c.Config.Payments.MoMo.SecretKey != "" {
		momo, err := payments.NewMoMoProvider(c.Config.Payments.MoMo)
		if err != nil {
			return fmt.Errorf("build momo provider: %w", err)
		}
		providers = append(providers, momo)
	}
	if c.Config.Payments.Stripe.WebhookSecret != "" {
		stripe, err := payments.NewStripeProvider(c.Config.Payments.Stripe)
		if err != nil {
			return fmt.Errorf("build stripe provider: %w", err)
		}
		providers = append(providers, stripe)
	}
	if len(providers) == 0 {
		return nil
	}
	registry, err := payments.NewRegistry(providers...)
	if err != nil {
		return fmt.Errorf("build payment registry: %w", err)
	}
	c.Providers = registry
	return nil
}

func (c *Container) buildEventPublisher(ctx context.Context) (services.OrderEventPublisher, error) {
	if !c.Config.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, c.Config.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(c.Config.PubSub.Topic)
	publisher, err := events.NewPubSubOrderPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("build order event publisher: %w", err)
	}
	c.pubsubClient = client
	c.pubsubTopic = topic
	return publisher, nil
}

func (c *Container) buildServices(publisher services.OrderEventPublisher) error {
	eventLog := eventLogger(c.logger)

	stock, err := services.NewStockService(services.StockServiceDeps{
		Catalog: c.Repositories.Catalog,
		Logger:  eventLog,
	})
	if err != nil {
		return fmt.Errorf("build stock service: %w", err)
	}

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: c.Repositories.Coupons,
	})
	if err != nil {
		return fmt.Errorf("build coupon service: %w", err)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       c.Repositories.Orders,
		Carts:        c.Repositories.Carts,
		Catalog:      c.Repositories.Catalog,
		Stock:        stock,
		Coupons:      coupons,
		Providers:    c.Providers,
		ShippingFee:  c.Config.Checkout.ShippingFee,
		CodeAttempts: c.Config.Checkout.CodeAttempts,
		CodeBackoff:  c.Config.Checkout.CodeRetryBackoff,
		AtomicStock:  c.Config.Checkout.AtomicStock,
		Events:       publisher,
		Logger:       eventLog,
	})
	if err != nil {
		return fmt.Errorf("build order service: %w", err)
	}

	c.Services = Services{
		Stock:   stock,
		Coupons: coupons,
		Orders:  orders,
	}
	return nil
}

// eventLogger bridges the service-layer event logging contract onto zap,
// preferring the request-scoped logger when one is present.
func eventLogger(fallback *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
