package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/catalog"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

const testCompany = "11111111-1111-1111-1111-111111111111"

type memoryRepo struct {
	materials map[string]materials.Material
	orders    map[string]Order
	payments  map[string]Payment
	movements []materials.Movement

	failInsertOrder bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		materials: make(map[string]materials.Material),
		orders:    make(map[string]Order),
		payments:  make(map[string]Payment),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx snapshots state before fn and restores it on error so tests
// observe transactional rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	mats := make(map[string]materials.Material, len(r.materials))
	for k, v := range r.materials {
		mats[k] = v
	}
	ords := make(map[string]Order, len(r.orders))
	for k, v := range r.orders {
		ords[k] = v
	}
	pays := make(map[string]Payment, len(r.payments))
	for k, v := range r.payments {
		pays[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.materials = mats
		r.orders = ords
		r.payments = pays
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, companyID, orderID string) (Order, error) {
	o, ok := r.orders[orderID]
	if !ok || o.CompanyID != companyID {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (r *memoryRepo) List(ctx context.Context, companyID string) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if o.CompanyID == companyID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, companyID string) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPaymentsByOrder(ctx context.Context, companyID, orderID string) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.CompanyID == companyID && p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertMovement(ctx context.Context, mv materials.Movement) error {
	r.movements = append(r.movements, mv)
	return nil
}

func (tx *memoryTx) GetMaterialForUpdate(ctx context.Context, companyID, materialID string) (materials.Material, error) {
	m, ok := tx.repo.materials[materialID]
	if !ok || m.CompanyID != companyID {
		return materials.Material{}, shared.ErrNotFound
	}
	return m, nil
}

func (tx *memoryTx) AdjustMaterialQuantity(ctx context.Context, companyID, materialID string, delta float64) error {
	m, ok := tx.repo.materials[materialID]
	if !ok || m.CompanyID != companyID {
		return shared.ErrNotFound
	}
	m.QuantityOnHand += delta
	tx.repo.materials[materialID] = m
	return nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o Order) error {
	if tx.repo.failInsertOrder {
		return errors.New("boom")
	}
	tx.repo.orders[o.ID] = o
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, companyID, orderID string) (Order, error) {
	return tx.repo.Get(ctx, companyID, orderID)
}

func (tx *memoryTx) UpdateOrderState(ctx context.Context, companyID, orderID string, state State, balance float64) error {
	o, ok := tx.repo.orders[orderID]
	if !ok || o.CompanyID != companyID {
		return shared.ErrNotFound
	}
	o.State = state
	o.Balance = balance
	tx.repo.orders[orderID] = o
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) error {
	tx.repo.payments[p.ID] = p
	return nil
}

func (tx *memoryTx) DeletePaymentsByOrder(ctx context.Context, companyID, orderID string) error {
	for id, p := range tx.repo.payments {
		if p.CompanyID == companyID && p.OrderID == orderID {
			delete(tx.repo.payments, id)
		}
	}
	return nil
}

func (tx *memoryTx) DeleteMovementsByReference(ctx context.Context, companyID, orderID string) error {
	kept := tx.repo.movements[:0]
	for _, mv := range tx.repo.movements {
		if !(mv.CompanyID == companyID && mv.ReferenceID == orderID) {
			kept = append(kept, mv)
		}
	}
	tx.repo.movements = kept
	return nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, companyID, orderID string) error {
	o, ok := tx.repo.orders[orderID]
	if !ok || o.CompanyID != companyID {
		return shared.ErrNotFound
	}
	delete(tx.repo.orders, orderID)
	return nil
}

type staticProducts struct {
	products map[string]catalog.Product
}

func (s *staticProducts) Get(ctx context.Context, companyID, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

type fixture struct {
	repo     *memoryRepo
	products *staticProducts
	svc      *Service
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	products := &staticProducts{products: make(map[string]catalog.Product)}
	return &fixture{repo: repo, products: products, svc: NewService(repo, products, nil, nil)}
}

func (f *fixture) addMaterial(id, name string, qty, avgCost float64) {
	f.repo.materials[id] = materials.Material{
		ID: id, CompanyID: testCompany, Name: name,
		QuantityOnHand: qty, AvgUnitCost: avgCost,
	}
}

func (f *fixture) addProduct(id string, recipe ...catalog.RecipeItem) {
	f.products.products[id] = catalog.Product{ID: id, CompanyID: testCompany, Name: "Tapizado butaca", Recipe: recipe}
}

func TestCreateFreezesCostSnapshotAndDeductsStock(t *testing.T) {
	f := newFixture()
	f.addMaterial("mat-1", "Cuero napa", 10, 4)
	f.addMaterial("mat-2", "Hilo reforzado", 50, 0.5)
	f.addProduct("prod-1",
		catalog.RecipeItem{MaterialID: "mat-1", Quantity: 3},
		catalog.RecipeItem{MaterialID: "mat-2", Quantity: 10},
	)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, testCompany, CreateInput{
		Client:    Client{Name: "Rodríguez"},
		ProductID: "prod-1", SalePrice: 100, DownPayment: 20,
	})
	require.NoError(t, err)
	require.Equal(t, StateInProgress, o.State)
	require.InDelta(t, 80, o.Balance, 1e-9)

	require.Len(t, o.MaterialsUsed, 2)
	require.InDelta(t, 12, o.MaterialsUsed[0].ComputedCost, 1e-9)
	require.InDelta(t, 5, o.MaterialsUsed[1].ComputedCost, 1e-9)

	require.InDelta(t, 7, f.repo.materials["mat-1"].QuantityOnHand, 1e-9)
	require.InDelta(t, 40, f.repo.materials["mat-2"].QuantityOnHand, 1e-9)
	// Averages never move on consumption.
	require.InDelta(t, 4, f.repo.materials["mat-1"].AvgUnitCost, 1e-9)

	require.Len(t, f.repo.movements, 2)
	// Each consumption movement carries the line's frozen cost.
	wantCosts := map[string]float64{"mat-1": 12, "mat-2": 5}
	for _, mv := range f.repo.movements {
		require.Equal(t, materials.MovementConsumption, mv.Kind)
		require.Equal(t, o.ID, mv.ReferenceID)
		require.InDelta(t, wantCosts[mv.MaterialID], mv.TotalCost, 1e-9)
	}
}

func TestCreateSnapshotSurvivesLaterCostChanges(t *testing.T) {
	f := newFixture()
	f.addMaterial("mat-1", "Cuero napa", 10, 4)
	f.addProduct("prod-1", catalog.RecipeItem{MaterialID: "mat-1", Quantity: 2})
	ctx := context.Background()

	o, err := f.svc.Create(ctx, testCompany, CreateInput{
		Client: Client{Name: "Gómez"}, ProductID: "prod-1", SalePrice: 50,
	})
	require.NoError(t, err)
	require.InDelta(t, 8, o.MaterialsUsed[0].ComputedCost, 1e-9)

	// A later repricing must not touch the stored snapshot.
	m := f.repo.materials["mat-1"]
	m.AvgUnitCost = 99
	f.repo.materials["mat-1"] = m

	stored, err := f.svc.Get(ctx, testCompany, o.ID)
	require.NoError(t, err)
	require.InDelta(t, 8, stored.MaterialsUsed[0].ComputedCost, 1e-9)
}

func TestCreateReportsEveryShortfallAndCreatesNothing(t *testing.T) {
	f := newFixture()
	f.addMaterial("mat-1", "Cuero napa", 1, 4)
	f.addProduct("prod-1",
		catalog.RecipeItem{MaterialID: "mat-1", Quantity: 3},
		catalog.RecipeItem{MaterialID: "mat-missing", Quantity: 2},
	)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testCompany, CreateInput{
		Client: Client{Name: "Sosa"}, ProductID: "prod-1", SalePrice: 100,
	})
	var stockErr *materials.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortfalls, 2)
	require.Equal(t, "Cuero napa", stockErr.Shortfalls[0].Name)
	require.Equal(t, "Material Desconocido", stockErr.Shortfalls[1].Name)

	require.Empty(t, f.repo.orders)
	require.Empty(t, f.repo.movements)
	require.InDelta(t, 1, f.repo.materials["mat-1"].QuantityOnHand, 1e-9)
}

func TestCreateRollsBackStockWhenOrderInsertFails(t *testing.T) {
	f := newFixture()
	f.addMaterial("mat-1", "Cuero napa", 10, 4)
	f.addProduct("prod-1", catalog.RecipeItem{MaterialID: "mat-1", Quantity: 3})
	f.repo.failInsertOrder = true
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testCompany, CreateInput{
		Client: Client{Name: "Sosa"}, ProductID: "prod-1", SalePrice: 100,
	})
	require.Error(t, err)
	require.Empty(t, f.repo.orders)
	require.InDelta(t, 10, f.repo.materials["mat-1"].QuantityOnHand, 1e-9)
}

func seedOrder(t *testing.T, f *fixture, salePrice float64) Order {
	t.Helper()
	f.addMaterial("mat-1", "Cuero napa", 10, 4)
	f.addProduct("prod-1", catalog.RecipeItem{MaterialID: "mat-1", Quantity: 3})
	o, err := f.svc.Create(context.Background(), testCompany, CreateInput{
		Client: Client{Name: "Rodríguez"}, ProductID: "prod-1", SalePrice: salePrice,
	})
	require.NoError(t, err)
	return o
}

func TestTransitionForwardOnly(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	got, err := f.svc.Transition(ctx, testCompany, o.ID, StateFinished)
	require.NoError(t, err)
	require.Equal(t, StateFinished, got.State)

	_, err = f.svc.Transition(ctx, testCompany, o.ID, StateReturned)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Transition(ctx, testCompany, o.ID, State("INVENTADO"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestTransitionRejectedFromTerminalState(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, testCompany, o.ID, StateReturned)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, testCompany, o.ID, StateFinished)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRegisterPaymentSettlesOrder(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	got, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{
		OrderID: o.ID, Amount: 100, Method: MethodTransfer, HasInvoice: true,
	})
	require.NoError(t, err)
	require.Equal(t, StateFullyPaid, got.State)
	require.Zero(t, got.Balance)

	payments, err := f.svc.ListPayments(ctx, testCompany, o.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.True(t, payments[0].HasInvoice)
	require.InDelta(t, 100, payments[0].Amount, 1e-9)
}

func TestRegisterPaymentPartialAmountStillSettles(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	got, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{
		OrderID: o.ID, Amount: 40, Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, StateFullyPaid, got.State)
	require.Zero(t, got.Balance)
}

func TestRegisterPaymentZeroAmountSkipsRecord(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	got, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{OrderID: o.ID, Amount: 0})
	require.NoError(t, err)
	require.Equal(t, StateFullyPaid, got.State)

	payments, err := f.svc.ListPayments(ctx, testCompany, o.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestRegisterPaymentRejectsOutOfRange(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	_, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{OrderID: o.ID, Amount: 101})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.RegisterPayment(ctx, testCompany, PaymentInput{OrderID: o.ID, Amount: -1})
	require.ErrorIs(t, err, ErrInvalidAmount)

	stored, err := f.svc.Get(ctx, testCompany, o.ID)
	require.NoError(t, err)
	require.Equal(t, StateInProgress, stored.State)
}

func TestCancelRemovesPaymentsKeepsConsumption(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	_, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{OrderID: o.ID, Amount: 100, HasInvoice: true})
	require.NoError(t, err)

	got, err := f.svc.Cancel(ctx, testCompany, o.ID, StateManufacturingError)
	require.NoError(t, err)
	require.Equal(t, StateManufacturingError, got.State)
	require.Zero(t, got.Balance)

	payments, err := f.svc.ListPayments(ctx, testCompany, "")
	require.NoError(t, err)
	require.Empty(t, payments)

	// Materials stay consumed and movements stay on record.
	require.InDelta(t, 7, f.repo.materials["mat-1"].QuantityOnHand, 1e-9)
	require.Len(t, f.repo.movements, 1)
}

func TestCancelRejectsNonTerminalReason(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)

	_, err := f.svc.Cancel(context.Background(), testCompany, o.ID, StateFinished)
	require.ErrorIs(t, err, ErrInvalidCancelReason)
}

func TestDeleteRestoresQuantityAndErasesEverything(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	ctx := context.Background()

	_, err := f.svc.RegisterPayment(ctx, testCompany, PaymentInput{OrderID: o.ID, Amount: 100})
	require.NoError(t, err)

	// Repricing after the order; restore must not rewind the average.
	m := f.repo.materials["mat-1"]
	m.AvgUnitCost = 6
	f.repo.materials["mat-1"] = m

	require.NoError(t, f.svc.Delete(ctx, testCompany, o.ID))

	require.InDelta(t, 10, f.repo.materials["mat-1"].QuantityOnHand, 1e-9)
	require.InDelta(t, 6, f.repo.materials["mat-1"].AvgUnitCost, 1e-9)

	_, err = f.svc.Get(ctx, testCompany, o.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	payments, err := f.svc.ListPayments(ctx, testCompany, "")
	require.NoError(t, err)
	require.Empty(t, payments)
	require.Empty(t, f.repo.movements)
}

func TestDeleteToleratesMissingMaterial(t *testing.T) {
	f := newFixture()
	o := seedOrder(t, f, 100)
	delete(f.repo.materials, "mat-1")

	require.NoError(t, f.svc.Delete(context.Background(), testCompany, o.ID))
	require.Empty(t, f.repo.orders)
}

func TestCreateRejectsDownPaymentAboveSalePrice(t *testing.T) {
	f := newFixture()
	f.addMaterial("mat-1", "Cuero napa", 10, 4)
	f.addProduct("prod-1", catalog.RecipeItem{MaterialID: "mat-1", Quantity: 1})

	_, err := f.svc.Create(context.Background(), testCompany, CreateInput{
		Client: Client{Name: "Sosa"}, ProductID: "prod-1", SalePrice: 50, DownPayment: 60,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}
