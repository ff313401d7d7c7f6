// internal/service/order/application/fakes_test.go
package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"atlas/internal/pkg/config"
	inventory "atlas/internal/service/inventory/domain"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/port"
	pricingapp "atlas/internal/service/pricing/application"
	pricing "atlas/internal/service/pricing/domain"
)

// ---- UnitOfWork ----

type fakeUow struct {
	repos domain.Repos
}

func (u *fakeUow) Within(ctx context.Context, _ time.Duration, fn func(ctx context.Context, repos domain.Repos) error) error {
	return fn(ctx, u.repos)
}

// ---- OrderRepository ----

type fakeOrderRepo struct {
	orders map[uint]*domain.Order
	nextID uint
	events []*domain.Event
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uint]*domain.Order), nextID: 1}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	order.ID = r.nextID
	r.nextID++
	for i, line := range order.Lines {
		line.ID = order.ID*100 + uint(i) + 1
		for j := range line.Sources {
			line.Sources[j].ID = line.ID*100 + uint(j) + 1
		}
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uint) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Save 和真实实现一样只回写订单头字段，行和来源不动。
func (r *fakeOrderRepo) Save(_ context.Context, order *domain.Order) error {
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	stored.Code = order.Code
	stored.Status = order.Status
	stored.TransactionStatus = order.TransactionStatus
	stored.Void = order.Void
	stored.TotalBeforeDiscount = order.TotalBeforeDiscount
	stored.DiscountAmount = order.DiscountAmount
	stored.Total = order.Total
	stored.Email = order.Email
	stored.Phone = order.Phone
	stored.ShippingAddress = order.ShippingAddress
	stored.PaymentMethod = order.PaymentMethod
	stored.PayOSCode = order.PayOSCode
	stored.UpdatedAt = order.UpdatedAt
	return nil
}

func (r *fakeOrderRepo) SaveLine(_ context.Context, line *domain.Line) error {
	for _, order := range r.orders {
		for _, stored := range order.Lines {
			if stored.ID == line.ID {
				stored.Total = line.Total
				stored.DiscountAmount = line.DiscountAmount
				stored.DiscountPercent = line.DiscountPercent
				return nil
			}
		}
	}
	return domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) ExpiredTempOrders(_ context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range r.orders {
		if order.IsExpired(now) && len(out) < limit {
			out = append(out, cloneOrder(order))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) MarkSourcesReleased(_ context.Context, orderID uint) (bool, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	flipped := false
	for _, line := range order.Lines {
		for i := range line.Sources {
			if !line.Sources[i].Released {
				line.Sources[i].Released = true
				flipped = true
			}
		}
	}
	return flipped, nil
}

func (r *fakeOrderRepo) ReplaceOrderDiscounts(_ context.Context, orderID uint, discounts []domain.AppliedDiscount) error {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Discounts = discounts
	return nil
}

func (r *fakeOrderRepo) ReplaceLineDiscounts(_ context.Context, lineID uint, discounts []domain.AppliedDiscount) error {
	for _, order := range r.orders {
		for _, line := range order.Lines {
			if line.ID == lineID {
				line.Discounts = discounts
				return nil
			}
		}
	}
	return domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) AppendVoucher(_ context.Context, orderID uint, voucher *domain.AppliedVoucher) error {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Vouchers = append(order.Vouchers, *voucher)
	return nil
}

func (r *fakeOrderRepo) AppendEvent(_ context.Context, event *domain.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOrderRepo) HardDelete(_ context.Context, orderID uint) error {
	order, ok := r.orders[orderID]
	if ok && order.Code == nil {
		delete(r.orders, orderID)
	}
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.Lines = nil
	for _, line := range order.Lines {
		lineClone := *line
		lineClone.Sources = append([]domain.Source(nil), line.Sources...)
		lineClone.Discounts = append([]domain.AppliedDiscount(nil), line.Discounts...)
		clone.Lines = append(clone.Lines, &lineClone)
	}
	clone.Discounts = append([]domain.AppliedDiscount(nil), order.Discounts...)
	clone.Vouchers = append([]domain.AppliedVoucher(nil), order.Vouchers...)
	clone.Events = append([]domain.Event(nil), order.Events...)
	return &clone
}

// ---- DiscountRepository ----

type fakeDiscountRepo struct {
	discounts []*pricing.Discount
	usedBy    map[uint]map[uint]bool
	usage     map[uint]int
}

func newFakeDiscountRepo(discounts ...*pricing.Discount) *fakeDiscountRepo {
	return &fakeDiscountRepo{
		discounts: discounts,
		usedBy:    make(map[uint]map[uint]bool),
		usage:     make(map[uint]int),
	}
}

func (r *fakeDiscountRepo) Create(_ context.Context, d *pricing.Discount) error {
	for _, existing := range r.discounts {
		if existing.Title == d.Title {
			return pricing.ErrDuplicateTitle
		}
	}
	d.ID = uint(len(r.discounts) + 1)
	r.discounts = append(r.discounts, d)
	return nil
}

func (r *fakeDiscountRepo) ActiveDiscounts(_ context.Context, mode pricing.Mode, dtype pricing.Type) ([]*pricing.Discount, error) {
	var out []*pricing.Discount
	for _, d := range r.discounts {
		if d.Mode == mode && d.Type == dtype && d.IsCurrentlyActive(time.Now()) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDiscountRepo) FindCouponByCode(_ context.Context, code string) (*pricing.Discount, error) {
	for _, d := range r.discounts {
		if d.Mode == pricing.ModeCoupon && d.Title == code {
			return d, nil
		}
	}
	return nil, pricing.ErrDiscountNotFound
}

func (r *fakeDiscountRepo) FindByIDs(_ context.Context, ids []uint) ([]*pricing.Discount, error) {
	var out []*pricing.Discount
	for _, d := range r.discounts {
		for _, id := range ids {
			if d.ID == id {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeDiscountRepo) IncrementUsage(_ context.Context, id uint, delta int) error {
	r.usage[id] += delta
	for _, d := range r.discounts {
		if d.ID == id {
			d.Usage += delta
		}
	}
	return nil
}

func (r *fakeDiscountRepo) CustomerHasUsed(_ context.Context, discountID, customerID uint) (bool, error) {
	return r.usedBy[discountID][customerID], nil
}

func (r *fakeDiscountRepo) markUsed(discountID, customerID uint) {
	if r.usedBy[discountID] == nil {
		r.usedBy[discountID] = make(map[uint]bool)
	}
	r.usedBy[discountID][customerID] = true
}

// ---- StockStore ----

type fakeOrderStockStore struct {
	items       []*inventory.ReceiveItem
	inventories []*inventory.InventoryRecord
	history     []*inventory.HistoryEntry
	costPrices  map[uint]decimal.Decimal
}

func (f *fakeOrderStockStore) OpenReceiveItems(_ context.Context, variantID uint) ([]*inventory.ReceiveItem, error) {
	var out []*inventory.ReceiveItem
	for _, item := range f.items {
		if item.VariantID == variantID && item.QuantityAvailable > 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeOrderStockStore) ReceiveItemForUpdate(_ context.Context, id uint) (*inventory.ReceiveItem, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, inventory.ErrInventoryIntegrity
}

func (f *fakeOrderStockStore) SaveReceiveItem(_ context.Context, _ *inventory.ReceiveItem) error {
	return nil
}

func (f *fakeOrderStockStore) InventoryForUpdate(_ context.Context, variantID, warehouseID uint) (*inventory.InventoryRecord, error) {
	for _, record := range f.inventories {
		if record.VariantID == variantID && record.WarehouseID == warehouseID {
			return record, nil
		}
	}
	return nil, inventory.ErrInventoryNotFound
}

func (f *fakeOrderStockStore) InventoriesForUpdate(_ context.Context, variantID uint) ([]*inventory.InventoryRecord, error) {
	var out []*inventory.InventoryRecord
	for _, record := range f.inventories {
		if record.VariantID == variantID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeOrderStockStore) SaveInventory(_ context.Context, _ *inventory.InventoryRecord) error {
	return nil
}

func (f *fakeOrderStockStore) AppendHistory(_ context.Context, entry *inventory.HistoryEntry) error {
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeOrderStockStore) AvailableQuantity(_ context.Context, variantID uint) (int, error) {
	total := 0
	for _, record := range f.inventories {
		if record.VariantID == variantID {
			total += record.Available
		}
	}
	return total, nil
}

func (f *fakeOrderStockStore) VariantCostPrice(_ context.Context, variantID uint) (decimal.Decimal, error) {
	return f.costPrices[variantID], nil
}

// ---- ports ----

type fakeCatalog struct {
	variants map[uint]*port.VariantInfo
}

func (c *fakeCatalog) Variant(_ context.Context, variantID uint) (*port.VariantInfo, error) {
	info, ok := c.variants[variantID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return info, nil
}

type fakeNotifier struct {
	confirmations []uint
	deliveries    []uint
}

func (n *fakeNotifier) SendOrderConfirmation(_ context.Context, order *domain.Order) error {
	n.confirmations = append(n.confirmations, order.ID)
	return nil
}

func (n *fakeNotifier) SendDeliveryNotification(_ context.Context, order *domain.Order) error {
	n.deliveries = append(n.deliveries, order.ID)
	return nil
}

type fakeGateway struct {
	links int
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, _ *domain.Order) (*port.PaymentLink, error) {
	g.links++
	return &port.PaymentLink{Code: "PAY-1", URL: "https://pay.example/1"}, nil
}

// ---- wiring ----

type testEnv struct {
	service   *OrderApplicationService
	orders    *fakeOrderRepo
	discounts *fakeDiscountRepo
	stock     *fakeOrderStockStore
	notifier  *fakeNotifier
	gateway   *fakeGateway
}

func newTestEnv(stock *fakeOrderStockStore, catalog *fakeCatalog, discounts *fakeDiscountRepo) *testEnv {
	orders := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	gateway := &fakeGateway{}
	uow := &fakeUow{repos: domain.Repos{Orders: orders, Discounts: discounts, Stock: stock}}
	service := NewOrderApplicationService(
		uow, catalog, pricingapp.NewEligibility(nil), notifier, gateway,
		otel.Tracer("test"),
		config.OrderConfig{
			ExpireAfter:   20 * time.Minute,
			SweepInterval: time.Minute,
			HeavyTxBudget: 15 * time.Second,
			LightTxBudget: 5 * time.Second,
		},
	)
	return &testEnv{
		service: service, orders: orders, discounts: discounts,
		stock: stock, notifier: notifier, gateway: gateway,
	}
}
