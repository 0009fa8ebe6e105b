package meals

import (
	"errors"
	"testing"
)

func TestNewUserIDRejectsEmptyInput(t *testing.T) {
	if _, err := NewUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestNewUserIDTrimsWhitespace(t *testing.T) {
	id, err := NewUserID("  user-1  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "user-1" {
		t.Fatalf("expected trimmed id, got %q", id.String())
	}
}

func TestMealTypeForHour(t *testing.T) {
	tests := []struct {
		hour     int
		expected MealType
	}{
		{hour: 0, expected: MealTypeDinner},
		{hour: 4, expected: MealTypeDinner},
		{hour: 5, expected: MealTypeBreakfast},
		{hour: 10, expected: MealTypeBreakfast},
		{hour: 11, expected: MealTypeLunch},
		{hour: 14, expected: MealTypeLunch},
		{hour: 15, expected: MealTypeSnack},
		{hour: 17, expected: MealTypeSnack},
		{hour: 18, expected: MealTypeDinner},
		{hour: 23, expected: MealTypeDinner},
	}
	for _, test := range tests {
		if got := MealTypeForHour(test.hour); got != test.expected {
			t.Fatalf("hour %d: expected %s, got %s", test.hour, test.expected, got)
		}
	}
}

func TestUnitCaloriesPrefersOverride(t *testing.T) {
	item := EntryItem{
		MealItem: MealItemSnapshot{ID: "meal-1", Name: "Oatmeal", DefaultCalories: int64Ptr(250)},
		Calories: int64Ptr(400),
		Quantity: 1,
	}
	if item.UnitCalories() != 400 {
		t.Fatalf("expected override to win, got %d", item.UnitCalories())
	}
}

func TestUnitCaloriesFallsBackToSnapshotDefault(t *testing.T) {
	item := EntryItem{
		MealItem: MealItemSnapshot{ID: "meal-1", Name: "Oatmeal", DefaultCalories: int64Ptr(250)},
		Quantity: 1,
	}
	if item.UnitCalories() != 250 {
		t.Fatalf("expected snapshot default, got %d", item.UnitCalories())
	}
}

func TestUnitCaloriesZeroWhenUnknown(t *testing.T) {
	item := EntryItem{
		MealItem: MealItemSnapshot{ID: "meal-1", Name: "Mystery Soup"},
		Quantity: 2,
	}
	if item.UnitCalories() != 0 {
		t.Fatalf("expected zero for unknown calories, got %d", item.UnitCalories())
	}
}

func TestTotalCaloriesMultipliesByQuantity(t *testing.T) {
	items := []EntryItem{
		{MealItem: MealItemSnapshot{ID: "meal-1", Name: "Taco", DefaultCalories: int64Ptr(200)}, Quantity: 3},
		{MealItem: MealItemSnapshot{ID: "meal-2", Name: "Soda"}, Calories: int64Ptr(150), Quantity: 1},
	}
	total := totalCalories(items)
	if total == nil || *total != 750 {
		t.Fatalf("expected total 750, got %v", total)
	}
}

func TestTotalCaloriesZeroSumMapsToNil(t *testing.T) {
	items := []EntryItem{
		{MealItem: MealItemSnapshot{ID: "meal-1", Name: "Water"}, Quantity: 2},
	}
	if total := totalCalories(items); total != nil {
		t.Fatalf("expected nil for zero sum, got %d", *total)
	}
}

func TestItemLinesDecodesMultiItemShape(t *testing.T) {
	entry := Entry{
		EntryID:   "entry-1",
		PlaceJSON: `{"id":"place-1","name":"Cafe","type":"CAFE","isHome":false}`,
		ItemsJSON: `[{"mealItemId":"meal-1","mealItem":{"id":"meal-1","name":"Latte","defaultCalories":180,"category":"DRINK"},"quantity":2}]`,
	}
	lines, err := entry.ItemLines()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].MealItemID != "meal-1" {
		t.Fatalf("unexpected meal item id %q", lines[0].MealItemID)
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", lines[0].Quantity)
	}
	if lines[0].MealItem.DefaultCalories == nil || *lines[0].MealItem.DefaultCalories != 180 {
		t.Fatalf("unexpected default calories: %v", lines[0].MealItem.DefaultCalories)
	}
}

func TestItemLinesSynthesizesLegacyShape(t *testing.T) {
	entry := Entry{
		EntryID:      "entry-1",
		MealItemID:   "meal-1",
		MealItemJSON: `{"id":"meal-1","name":"Burger","category":"LUNCH"}`,
		Calories:     int64Ptr(650),
	}
	lines, err := entry.ItemLines()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected a single synthesized line, got %d", len(lines))
	}
	line := lines[0]
	if line.MealItemID != "meal-1" {
		t.Fatalf("unexpected meal item id %q", line.MealItemID)
	}
	if line.Quantity != 1 {
		t.Fatalf("legacy line must have quantity 1, got %d", line.Quantity)
	}
	if line.Calories == nil || *line.Calories != 650 {
		t.Fatalf("legacy line should carry the entry calories, got %v", line.Calories)
	}
}

func TestItemLinesErrorsWhenBothShapesAbsent(t *testing.T) {
	entry := Entry{EntryID: "entry-1"}
	if _, err := entry.ItemLines(); !errors.Is(err, ErrMissingItems) {
		t.Fatalf("expected ErrMissingItems, got %v", err)
	}
}

func TestPlaceDraftValidationRejectsUnknownType(t *testing.T) {
	draft := PlaceDraft{Name: "Somewhere", Type: PlaceType("SPACESHIP")}
	if err := draft.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown place type")
	}
}

func TestMealDraftValidationRejectsNegativeCalories(t *testing.T) {
	draft := MealDraft{Name: "Soup", Category: MealCategoryLunch, DefaultCalories: int64Ptr(-10)}
	if err := draft.Validate(); err == nil {
		t.Fatalf("expected validation error for negative default calories")
	}
}

func TestEntryDraftValidationRequiresItems(t *testing.T) {
	draft := EntryDraft{
		Place: PlaceSnapshot{ID: "place-1", Name: "Cafe", Type: PlaceTypeCafe},
	}
	if err := draft.Validate(); err == nil {
		t.Fatalf("expected validation error for empty item list")
	}
}

func TestEntryItemValidationRequiresPositiveQuantity(t *testing.T) {
	item := EntryItem{
		MealItem: MealItemSnapshot{ID: "meal-1", Name: "Toast"},
		Quantity: 0,
	}
	if err := item.Validate(); err == nil {
		t.Fatalf("expected validation error for zero quantity")
	}
}
