package projection

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ordercore-lab/order-core/internal/core/currency"
	"github.com/ordercore-lab/order-core/internal/core/storage"
)

// ErrInvalidQuery marks caller mistakes (bad parameters) as distinct from
// read failures; handlers map it to HTTP 400.
var ErrInvalidQuery = errors.New("invalid query")

type Service struct {
	repo       storage.Repository
	currencies *currency.Table
}

func NewService(repo storage.Repository, currencies *currency.Table) *Service {
	if repo == nil {
		panic("projection: repository must not be nil")
	}
	if currencies == nil {
		panic("projection: currency table must not be nil")
	}
	return &Service{repo: repo, currencies: currencies}
}

// ListOrders returns every order id with pricing facts.
func (s *Service) ListOrders(ctx context.Context) ([]string, error) {
	return s.repo.ListOrders(ctx)
}

// PricingLatest computes the current breakdown of an order. An order with no
// pricing history yields an empty breakdown, not an error.
func (s *Service) PricingLatest(ctx context.Context, orderID string) (*PricingLatest, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}

	components, err := s.repo.LatestPricingComponents(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return &PricingLatest{OrderID: orderID, Components: []*storage.PricingComponentRecord{}}, nil
	}
	if err != nil {
		return nil, err
	}

	latest := &PricingLatest{
		OrderID:        orderID,
		Components:     components,
		ComponentCount: len(components),
	}
	for _, component := range components {
		latest.TotalAmount += component.Amount
		latest.Currency = component.Currency
	}
	if latest.Currency != "" {
		latest.DisplayTotal = s.currencies.Format(latest.TotalAmount, latest.Currency)
	}
	return latest, nil
}

// PricingHistory returns per-version snapshot rollups, newest first.
func (s *Service) PricingHistory(ctx context.Context, orderID string) ([]*storage.PricingHistoryEntry, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}
	entries, err := s.repo.PricingHistory(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return []*storage.PricingHistoryEntry{}, nil
	}
	return entries, err
}

// ComponentLineage returns every version of a component together with the
// refund components that reverse it.
func (s *Service) ComponentLineage(ctx context.Context, semanticID string) (*storage.Lineage, error) {
	if semanticID == "" {
		return nil, fmt.Errorf("%w: semantic_id is required", ErrInvalidQuery)
	}
	lineage, err := s.repo.ComponentLineage(ctx, semanticID)
	if errors.Is(err, storage.ErrNotFound) {
		return &storage.Lineage{
			Original: []*storage.PricingComponentRecord{},
			Refunds:  []*storage.PricingComponentRecord{},
		}, nil
	}
	return lineage, err
}

// PaymentTimeline returns the payment rows of an order in version order.
func (s *Service) PaymentTimeline(ctx context.Context, orderID string) ([]*storage.PaymentTimelineRecord, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}
	records, err := s.repo.PaymentTimeline(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return []*storage.PaymentTimelineRecord{}, nil
	}
	return records, err
}

// SupplierTimeline returns the supplier rows of one order detail in version
// order.
func (s *Service) SupplierTimeline(ctx context.Context, orderID, orderDetailID string) ([]*storage.SupplierTimelineRecord, error) {
	if orderID == "" || orderDetailID == "" {
		return nil, fmt.Errorf("%w: order_id and order_detail_id are required", ErrInvalidQuery)
	}
	records, err := s.repo.SupplierTimeline(ctx, orderID, orderDetailID)
	if errors.Is(err, storage.ErrNotFound) {
		return []*storage.SupplierTimelineRecord{}, nil
	}
	return records, err
}

// RefundTimeline returns the refund rows of an order grouped by refund id.
func (s *Service) RefundTimeline(ctx context.Context, orderID string) ([]*storage.RefundTimelineRecord, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}
	records, err := s.repo.RefundTimeline(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return []*storage.RefundTimelineRecord{}, nil
	}
	return records, err
}

// EffectivePayables resolves the status-driven obligations of an order,
// optionally restricted to one order detail.
func (s *Service) EffectivePayables(ctx context.Context, orderID, orderDetailID string) ([]*EffectivePayable, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}
	rows, err := s.repo.SupplierRows(ctx, orderID, orderDetailID)
	if err != nil {
		return nil, err
	}
	return ResolveEffectivePayables(rows), nil
}

// PayablesStatus pairs each supplier instance's effective obligation with
// the payable lines derived at its latest timeline version.
func (s *Service) PayablesStatus(ctx context.Context, orderID string) ([]*PayableStatus, error) {
	payables, err := s.EffectivePayables(ctx, orderID, "")
	if err != nil {
		return nil, err
	}

	statuses := make([]*PayableStatus, 0, len(payables))
	for _, payable := range payables {
		lines, err := s.repo.PayableLines(ctx, payable.OrderID, payable.OrderDetailID, payable.SupplierTimelineVersion)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			lines = []*storage.PayableLineRecord{}
		}
		statuses = append(statuses, &PayableStatus{
			SupplierInstance: payable,
			BreakdownLines:   lines,
		})
	}
	return statuses, nil
}

// OrderSummary fans the four per-order reads out concurrently and assembles
// the order explorer view.
func (s *Service) OrderSummary(ctx context.Context, orderID string) (*OrderSummary, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidQuery)
	}

	summary := &OrderSummary{OrderID: orderID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pricing, err := s.PricingLatest(gctx, orderID)
		summary.Pricing = pricing
		return err
	})
	g.Go(func() error {
		payments, err := s.PaymentTimeline(gctx, orderID)
		summary.Payments = payments
		return err
	})
	g.Go(func() error {
		suppliers, err := s.EffectivePayables(gctx, orderID, "")
		summary.Suppliers = suppliers
		return err
	})
	g.Go(func() error {
		refunds, err := s.RefundTimeline(gctx, orderID)
		summary.Refunds = refunds
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
