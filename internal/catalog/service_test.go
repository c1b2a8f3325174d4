package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
)

func testMaterials() map[string]materials.Material {
	return MaterialIndex([]materials.Material{
		{ID: "leather", Name: "Cuero napa", QuantityOnHand: 10, AvgUnitCost: 6},
		{ID: "foam", Name: "Espuma", QuantityOnHand: 2, AvgUnitCost: 3},
		{ID: "thread", Name: "Hilo", QuantityOnHand: 100, AvgUnitCost: 0.5},
	})
}

func TestEstimateCostIsLive(t *testing.T) {
	recipe := []RecipeItem{
		{MaterialID: "leather", Quantity: 2},
		{MaterialID: "thread", Quantity: 10},
	}
	byID := testMaterials()
	require.InDelta(t, 17, EstimateCost(recipe, byID), 1e-9)

	// A purchase that shifts the average shifts the estimate too.
	m := byID["leather"]
	m.AvgUnitCost = 8
	byID["leather"] = m
	require.InDelta(t, 21, EstimateCost(recipe, byID), 1e-9)
}

func TestEstimateCostSkipsUnknownMaterials(t *testing.T) {
	recipe := []RecipeItem{{MaterialID: "missing", Quantity: 4}}
	require.Zero(t, EstimateCost(recipe, testMaterials()))
}

func TestValidateAvailabilityCollectsAllShortfalls(t *testing.T) {
	recipe := []RecipeItem{
		{MaterialID: "leather", Quantity: 12},
		{MaterialID: "foam", Quantity: 5},
		{MaterialID: "thread", Quantity: 1},
	}
	short := ValidateAvailability(recipe, testMaterials())
	require.Len(t, short, 2)

	names := []string{short[0].Name, short[1].Name}
	require.Contains(t, names, "Cuero napa")
	require.Contains(t, names, "Espuma")
}

func TestValidateAvailabilityReportsUnknownMaterial(t *testing.T) {
	recipe := []RecipeItem{{MaterialID: "ghost", Quantity: 1}}
	short := ValidateAvailability(recipe, testMaterials())
	require.Len(t, short, 1)
	require.Equal(t, "Material Desconocido", short[0].Name)
}

func TestValidateAvailabilityOK(t *testing.T) {
	recipe := []RecipeItem{
		{MaterialID: "leather", Quantity: 10},
		{MaterialID: "thread", Quantity: 100},
	}
	require.Empty(t, ValidateAvailability(recipe, testMaterials()))
}
