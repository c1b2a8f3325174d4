package materials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

const testCompany = "11111111-1111-1111-1111-111111111111"

type memoryRepo struct {
	materials map[string]Material
	movements []Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{materials: make(map[string]Material)}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, companyID, id string) (Material, error) {
	m, ok := r.materials[id]
	if !ok || m.CompanyID != companyID {
		return Material{}, shared.ErrNotFound
	}
	return m, nil
}

func (r *memoryRepo) List(ctx context.Context, companyID string) ([]Material, error) {
	var out []Material
	for _, m := range r.materials {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertMovement(ctx context.Context, mv Movement) error {
	r.movements = append(r.movements, mv)
	return nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, companyID string) ([]Movement, error) {
	var out []Movement
	for _, mv := range r.movements {
		if mv.CompanyID == companyID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetMaterialForUpdate(ctx context.Context, companyID, id string) (Material, error) {
	return tx.repo.Get(ctx, companyID, id)
}

func (tx *memoryTx) FindMaterialByName(ctx context.Context, companyID, name string) (Material, error) {
	for _, m := range tx.repo.materials {
		if m.CompanyID == companyID && m.Name == name {
			return m, nil
		}
	}
	return Material{}, shared.ErrNotFound
}

func (tx *memoryTx) InsertMaterial(ctx context.Context, m Material) error {
	tx.repo.materials[m.ID] = m
	return nil
}

func (tx *memoryTx) UpdateMaterialStock(ctx context.Context, companyID, id string, qty, avgCost float64) error {
	m, ok := tx.repo.materials[id]
	if !ok || m.CompanyID != companyID {
		return shared.ErrNotFound
	}
	m.QuantityOnHand = qty
	m.AvgUnitCost = avgCost
	tx.repo.materials[id] = m
	return nil
}

func seedMaterial(t *testing.T, svc *Service, qty, cost float64) Material {
	t.Helper()
	m, err := svc.Create(context.Background(), testCompany, CreateInput{
		Name:     "Cuero napa",
		Kind:     "Cuero",
		Unit:     "Metro",
		Quantity: qty,
		UnitCost: cost,
	})
	require.NoError(t, err)
	return m
}

func TestPurchaseBlendsWeightedAverage(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	m := seedMaterial(t, svc, 10, 5)
	ctx := context.Background()

	updated, err := svc.RegisterPurchase(ctx, testCompany, PurchaseInput{MaterialID: m.ID, Quantity: 10, TotalCost: 40})
	require.NoError(t, err)
	require.InDelta(t, 20, updated.QuantityOnHand, 1e-9)
	require.InDelta(t, 4.5, updated.AvgUnitCost, 1e-9)
}

func TestPurchaseBlendIsAssociative(t *testing.T) {
	ctx := context.Background()

	svcA := NewService(newMemoryRepo(), nil, nil, nil)
	a := seedMaterial(t, svcA, 10, 5)
	_, err := svcA.RegisterPurchase(ctx, testCompany, PurchaseInput{MaterialID: a.ID, Quantity: 4, TotalCost: 30})
	require.NoError(t, err)
	split, err := svcA.RegisterPurchase(ctx, testCompany, PurchaseInput{MaterialID: a.ID, Quantity: 6, TotalCost: 45})
	require.NoError(t, err)

	svcB := NewService(newMemoryRepo(), nil, nil, nil)
	b := seedMaterial(t, svcB, 10, 5)
	combined, err := svcB.RegisterPurchase(ctx, testCompany, PurchaseInput{MaterialID: b.ID, Quantity: 10, TotalCost: 75})
	require.NoError(t, err)

	require.InDelta(t, combined.QuantityOnHand, split.QuantityOnHand, 1e-9)
	require.InDelta(t, combined.AvgUnitCost, split.AvgUnitCost, 1e-9)
}

func TestWasteConservesTotalValue(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	m := seedMaterial(t, svc, 15, 6)
	ctx := context.Background()

	updated, err := svc.RegisterWaste(ctx, testCompany, m.ID, 5)
	require.NoError(t, err)
	require.InDelta(t, 10, updated.QuantityOnHand, 1e-9)
	require.InDelta(t, 9, updated.AvgUnitCost, 1e-9)
	require.InDelta(t, 90, updated.QuantityOnHand*updated.AvgUnitCost, 1e-9)

	mvs, err := svc.ListMovements(ctx, testCompany)
	require.NoError(t, err)
	require.Len(t, mvs, 1)
	require.Equal(t, MovementWaste, mvs[0].Kind)
	require.Zero(t, mvs[0].TotalCost)
}

func TestWasteToZeroLeavesZeroCost(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	m := seedMaterial(t, svc, 3, 7)

	updated, err := svc.RegisterWaste(context.Background(), testCompany, m.ID, 3)
	require.NoError(t, err)
	require.Zero(t, updated.QuantityOnHand)
	require.Zero(t, updated.AvgUnitCost)
}

func TestWasteRejectsOverdraw(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	m := seedMaterial(t, svc, 2, 5)

	_, err := svc.RegisterWaste(context.Background(), testCompany, m.ID, 3)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortfalls, 1)
	require.InDelta(t, 2, stockErr.Shortfalls[0].Available, 1e-9)

	got, err := svc.Get(context.Background(), testCompany, m.ID)
	require.NoError(t, err)
	require.InDelta(t, 2, got.QuantityOnHand, 1e-9)
}

func TestCorrectionRemovesValueKeepsAverage(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	m := seedMaterial(t, svc, 10, 4)
	ctx := context.Background()

	costRemoved, err := svc.RegisterCorrection(ctx, testCompany, m.ID, 3, "duplicate entry")
	require.NoError(t, err)
	require.InDelta(t, 12, costRemoved, 1e-9)

	got, err := svc.Get(ctx, testCompany, m.ID)
	require.NoError(t, err)
	require.InDelta(t, 7, got.QuantityOnHand, 1e-9)
	require.InDelta(t, 4, got.AvgUnitCost, 1e-9)

	mvs, err := svc.ListMovements(ctx, testCompany)
	require.NoError(t, err)
	require.Len(t, mvs, 1)
	require.Equal(t, MovementCorrection, mvs[0].Kind)
	require.InDelta(t, -3, mvs[0].Quantity, 1e-9)
	require.InDelta(t, -12, mvs[0].TotalCost, 1e-9)
}

func TestAssetIntakeFindsOrCreates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	created, err := svc.RegisterAssetIntake(ctx, testCompany, AssetIntakeInput{
		Name:      "Asiento recuperado",
		Quantity:  2,
		TotalCost: 50,
		Note:      "cliente dejó el juego anterior",
	})
	require.NoError(t, err)
	require.Equal(t, KindFinishedProduct, created.Kind)
	require.InDelta(t, 2, created.QuantityOnHand, 1e-9)
	require.InDelta(t, 25, created.AvgUnitCost, 1e-9)

	// Same name blends into the existing material instead of duplicating.
	again, err := svc.RegisterAssetIntake(ctx, testCompany, AssetIntakeInput{
		Name:      "Asiento recuperado",
		Quantity:  2,
		TotalCost: 150,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
	require.InDelta(t, 4, again.QuantityOnHand, 1e-9)
	require.InDelta(t, 50, again.AvgUnitCost, 1e-9)
}

func TestAssetIntakeTagsRecoveredOrigin(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	orderRef := "22222222-2222-2222-2222-222222222222"
	_, err := svc.RegisterAssetIntake(ctx, testCompany, AssetIntakeInput{
		Name:     "Tapiz rescatado",
		Quantity: 1,
		OrderRef: orderRef,
	})
	require.NoError(t, err)

	mvs, err := svc.ListMovements(ctx, testCompany)
	require.NoError(t, err)
	require.Len(t, mvs, 1)
	require.Equal(t, MovementAssetIntake, mvs[0].Kind)
	require.Equal(t, orderRef, mvs[0].ReferenceID)
	require.Contains(t, mvs[0].OriginNote, "ActivoRecuperado")
}

type capturedExpense struct {
	name       string
	amount     float64
	hasInvoice bool
}

type expenseRecorderStub struct {
	recorded []capturedExpense
}

func (s *expenseRecorderStub) RecordMaterialPurchase(ctx context.Context, companyID, materialName string, amount float64, hasInvoice bool, date time.Time) error {
	s.recorded = append(s.recorded, capturedExpense{name: materialName, amount: amount, hasInvoice: hasInvoice})
	return nil
}

func TestPurchaseRecordsLinkedExpense(t *testing.T) {
	recorder := &expenseRecorderStub{}
	svc := NewService(newMemoryRepo(), nil, recorder, nil)
	m := seedMaterial(t, svc, 0, 0)

	_, err := svc.RegisterPurchase(context.Background(), testCompany, PurchaseInput{MaterialID: m.ID, Quantity: 5, TotalCost: 80, HasInvoice: true})
	require.NoError(t, err)
	require.Len(t, recorder.recorded, 1)
	require.Equal(t, "Cuero napa", recorder.recorded[0].name)
	require.InDelta(t, 80, recorder.recorded[0].amount, 1e-9)
	require.True(t, recorder.recorded[0].hasInvoice)
}

// Mirrors the full purchase → waste lifecycle: value 50 grows to 90 on a
// discounted purchase, then waste concentrates it on fewer units.
func TestPurchaseWasteLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	m := seedMaterial(t, svc, 10, 5)
	ctx := context.Background()

	afterPurchase, err := svc.RegisterPurchase(ctx, testCompany, PurchaseInput{MaterialID: m.ID, Quantity: 10, TotalCost: 40})
	require.NoError(t, err)
	require.InDelta(t, 20, afterPurchase.QuantityOnHand, 1e-9)
	require.InDelta(t, 4.5, afterPurchase.AvgUnitCost, 1e-9)

	afterWaste, err := svc.RegisterWaste(ctx, testCompany, m.ID, 5)
	require.NoError(t, err)
	require.InDelta(t, 15, afterWaste.QuantityOnHand, 1e-9)
	require.InDelta(t, 6, afterWaste.AvgUnitCost, 1e-9)
	require.InDelta(t, 90, afterWaste.QuantityOnHand*afterWaste.AvgUnitCost, 1e-6)
}
