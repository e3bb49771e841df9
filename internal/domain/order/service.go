package order

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/domain/product"
)

// Fixed replies returned to the model.
const (
	NoProductsFound    = "No products found matching the criteria."
	CatalogUnavailable = "The product catalog is unavailable right now."
	StockUpdateFailed  = "Failed to update stock. Please try again."
)

// Order outcomes recorded on the salesvoice.orders counter.
const (
	outcomeConfirmed    = "confirmed"
	outcomeInvalid      = "invalid"
	outcomeNotFound     = "not_found"
	outcomeInsufficient = "insufficient"
	outcomeFailed       = "failed"
)

// Service implements the order tools: catalog search and order creation.
// No method returns an error; every failure is described in the returned
// value so it can be handed to the model as is.
type Service struct {
	products product.Repository
	newID    func() string
	tracer   trace.Tracer
	orders   metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides order id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithTracerProvider enables tracing of tool calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("salesvoice/order") }
}

// WithMeterProvider enables the order outcome counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		counter, err := mp.Meter("salesvoice/order").Int64Counter("salesvoice.orders",
			metric.WithDescription("create_order calls by outcome"),
		)
		if err == nil {
			s.orders = counter
		}
	}
}

// NewService creates an order Service reading and updating products.
func NewService(products product.Repository, opts ...Option) *Service {
	s := &Service{
		products: products,
		newID:    NewOrderID,
		tracer:   tracenoop.NewTracerProvider().Tracer("salesvoice/order"),
	}
	s.orders, _ = metricnoop.NewMeterProvider().Meter("salesvoice/order").Int64Counter("salesvoice.orders")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOrderID returns an identifier of the form order-<8 hex digits>.
func NewOrderID() string {
	id := uuid.New()
	return "order-" + hex.EncodeToString(id[:4])
}

// SearchProducts returns a line-per-product summary of the matches, or
// NoProductsFound when nothing matches.
func (s *Service) SearchProducts(ctx context.Context, q product.Query) string {
	ctx, span := s.tracer.Start(ctx, "order.SearchProducts")
	defer span.End()

	lg := zctx.From(ctx)
	lg.Debug("Search products", zap.String("query", q.Text), zap.Stringp("max_price", priceString(q.MaxPrice)))

	products, err := s.products.Search(ctx, q)
	if err != nil {
		lg.Error("Search products failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return CatalogUnavailable
	}
	span.SetAttributes(attribute.Int("products.found", len(products)))
	if len(products) == 0 {
		return NoProductsFound
	}

	var b strings.Builder
	b.WriteString("Found the following products:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (Category: %s, Price: ₹%s, ID: %s)\n", p.Name, p.Category, p.Price.String(), p.ID)
	}
	return b.String()
}

// CreateOrder validates the request against the catalog, reserves stock and
// returns the confirmed order. Stock is only touched on the success path.
func (s *Service) CreateOrder(ctx context.Context, productID string, quantity any) Result {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder",
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("product_id", productID))
	lg.Debug("Create order", zap.Any("quantity", quantity))

	qty, ok := CoerceQuantity(quantity)
	if !ok {
		s.record(ctx, outcomeInvalid)
		return declined(fmt.Sprintf("Invalid quantity: %v", formatRaw(quantity)))
	}
	span.SetAttributes(attribute.Int("quantity", qty))

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			s.record(ctx, outcomeNotFound)
			return declined(fmt.Sprintf("Product with ID %s not found.", productID))
		}
		lg.Error("Lookup product failed", zap.Error(err))
		span.RecordError(err)
		s.record(ctx, outcomeFailed)
		return declined(CatalogUnavailable)
	}

	if qty > p.Stock {
		lg.Info("Order declined: insufficient stock", zap.Int("quantity", qty), zap.Int("stock", p.Stock))
		s.record(ctx, outcomeInsufficient)
		available := p.Stock
		return Result{
			Error:          fmt.Sprintf("Insufficient stock. Only %d units of %s are available.", p.Stock, p.Name),
			AvailableStock: &available,
		}
	}

	ok, err = s.products.DecrementStock(ctx, productID, qty)
	if err != nil || !ok {
		if err != nil {
			lg.Error("Decrement stock failed", zap.Error(err))
			span.RecordError(err)
		} else {
			lg.Info("Order declined: stock changed before update", zap.Int("quantity", qty))
		}
		s.record(ctx, outcomeFailed)
		return declined(StockUpdateFailed)
	}

	o := &Order{
		ID:           s.newID(),
		ProductID:    productID,
		Name:         p.Name,
		Quantity:     qty,
		PricePerUnit: p.Price,
		TotalPrice:   p.Price.Mul(decimal.NewFromInt(int64(qty))),
		Status:       StatusConfirmed,
	}
	s.record(ctx, outcomeConfirmed)
	lg.Info("Order confirmed",
		zap.String("order_id", o.ID),
		zap.Int("quantity", qty),
		zap.Stringer("total_price", o.TotalPrice),
	)
	return Result{Order: o}
}

func (s *Service) record(ctx context.Context, outcome string) {
	s.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func priceString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	v := d.String()
	return &v
}

// formatRaw renders a rejected quantity the way the model sent it.
func formatRaw(v any) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprint(v)
}
