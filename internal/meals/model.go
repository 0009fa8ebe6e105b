package meals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("meals: invalid user id")
	// ErrInvalidRecordID indicates that a record identifier is empty or exceeds storage bounds.
	ErrInvalidRecordID = errors.New("meals: invalid record id")
	// ErrMissingItems indicates that an entry carries neither an item list nor a legacy meal item.
	ErrMissingItems = errors.New("meals: entry has no items")
)

// UserID represents a validated user identifier scoping every record.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// PlaceType classifies where a meal was eaten.
type PlaceType string

const (
	PlaceTypeHome       PlaceType = "HOME"
	PlaceTypeRestaurant PlaceType = "RESTAURANT"
	PlaceTypeCafe       PlaceType = "CAFE"
	PlaceTypeFastFood   PlaceType = "FAST_FOOD"
	PlaceTypeWork       PlaceType = "WORK"
	PlaceTypeOther      PlaceType = "OTHER"
)

// MealCategory classifies a reusable meal item.
type MealCategory string

const (
	MealCategoryBreakfast MealCategory = "BREAKFAST"
	MealCategoryLunch     MealCategory = "LUNCH"
	MealCategoryDinner    MealCategory = "DINNER"
	MealCategorySnack     MealCategory = "SNACK"
	MealCategoryDrink     MealCategory = "DRINK"
	MealCategoryDessert   MealCategory = "DESSERT"
	MealCategoryOther     MealCategory = "OTHER"
)

// MealType classifies a logged entry by meal of the day.
type MealType string

const (
	MealTypeBreakfast MealType = "BREAKFAST"
	MealTypeLunch     MealType = "LUNCH"
	MealTypeDinner    MealType = "DINNER"
	MealTypeSnack     MealType = "SNACK"
)

// MealTypeForHour derives a meal type from the local hour of day when the
// caller did not supply one.
func MealTypeForHour(hour int) MealType {
	switch {
	case hour >= 5 && hour < 11:
		return MealTypeBreakfast
	case hour >= 11 && hour < 15:
		return MealTypeLunch
	case hour >= 15 && hour < 18:
		return MealTypeSnack
	default:
		return MealTypeDinner
	}
}

// Place models a saved eating location owned by one user.
type Place struct {
	UserID           string    `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_places_user_usage,priority:1"`
	PlaceID          string    `gorm:"column:place_id;primaryKey;size:190;not null"`
	Name             string    `gorm:"column:name;size:190;not null"`
	Type             PlaceType `gorm:"column:place_type;size:32;not null"`
	Address          string    `gorm:"column:address;size:320;not null;default:''"`
	IsHome           bool      `gorm:"column:is_home;not null;default:false"`
	UsageCount       int64     `gorm:"column:usage_count;not null;default:0;index:idx_places_user_usage,priority:2"`
	CreatedAtSeconds int64     `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64     `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Place) TableName() string {
	return "places"
}

// MealItem models a reusable meal definition owned by one user. PlaceID
// optionally scopes the item to a place for quick re-selection; empty means
// globally available.
type MealItem struct {
	UserID           string       `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_meals_user_usage,priority:1"`
	MealItemID       string       `gorm:"column:meal_item_id;primaryKey;size:190;not null"`
	Name             string       `gorm:"column:name;size:190;not null"`
	DefaultCalories  *int64       `gorm:"column:default_calories"`
	Category         MealCategory `gorm:"column:category;size:32;not null"`
	PlaceID          string       `gorm:"column:place_id;size:190;not null;default:''"`
	UsageCount       int64        `gorm:"column:usage_count;not null;default:0;index:idx_meals_user_usage,priority:2"`
	CreatedAtSeconds int64        `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64        `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (MealItem) TableName() string {
	return "meal_items"
}

// PlaceSnapshot is the immutable place view embedded in an entry at creation
// time. Later edits or deletion of the master place never touch it.
type PlaceSnapshot struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Type   PlaceType `json:"type"`
	IsHome bool      `json:"isHome"`
}

// Validate reports whether the snapshot references a concrete place.
func (s PlaceSnapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&s.Name, validation.Required),
	)
}

// MealItemSnapshot is the immutable meal-item view embedded in an entry line.
type MealItemSnapshot struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	DefaultCalories *int64       `json:"defaultCalories,omitempty"`
	Category        MealCategory `json:"category"`
}

// Validate reports whether the snapshot references a concrete meal item.
func (s MealItemSnapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&s.Name, validation.Required),
	)
}

// EntryItem is one line within an entry: a meal-item snapshot, an optional
// per-occurrence calorie override and a quantity of at least one.
type EntryItem struct {
	MealItemID string           `json:"mealItemId"`
	MealItem   MealItemSnapshot `json:"mealItem"`
	Calories   *int64           `json:"calories,omitempty"`
	Quantity   int64            `json:"quantity"`
}

// UnitCalories resolves the effective calories for one unit of the line:
// the override when set, the snapshot default otherwise, zero when neither
// is known.
func (i EntryItem) UnitCalories() int64 {
	if i.Calories != nil {
		return *i.Calories
	}
	if i.MealItem.DefaultCalories != nil {
		return *i.MealItem.DefaultCalories
	}
	return 0
}

// Validate checks the line invariants.
func (i EntryItem) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.MealItem),
		validation.Field(&i.Quantity, validation.Required, validation.Min(int64(1))),
	)
}

// Entry models one logged meal. Two shapes coexist: legacy single-item rows
// carry MealItemID plus MealItemJSON, multi-item rows carry ItemsJSON. The
// Calories column always holds the pre-computed total across lines, NULL when
// the total is unknown or zero.
type Entry struct {
	UserID           string   `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_entries_user_eaten,priority:1"`
	EntryID          string   `gorm:"column:entry_id;primaryKey;size:190;not null"`
	PlaceID          string   `gorm:"column:place_id;size:190;not null"`
	PlaceJSON        string   `gorm:"column:place_json;type:text;not null"`
	MealItemID       string   `gorm:"column:meal_item_id;size:190;not null;default:''"`
	MealItemJSON     string   `gorm:"column:meal_item_json;type:text;not null;default:''"`
	ItemsJSON        string   `gorm:"column:items_json;type:text;not null;default:''"`
	Calories         *int64   `gorm:"column:calories"`
	MealType         MealType `gorm:"column:meal_type;size:32;not null"`
	Notes            string   `gorm:"column:notes;type:text;not null;default:''"`
	EatenAtSeconds   int64    `gorm:"column:eaten_at_s;not null;index:idx_entries_user_eaten,priority:2"`
	CreatedAtSeconds int64    `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64    `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "entries"
}

// Place decodes the denormalized place snapshot captured at creation time.
func (e Entry) Place() (PlaceSnapshot, error) {
	var snapshot PlaceSnapshot
	if err := json.Unmarshal([]byte(e.PlaceJSON), &snapshot); err != nil {
		return PlaceSnapshot{}, fmt.Errorf("meals: decode place snapshot for entry %s: %w", e.EntryID, err)
	}
	return snapshot, nil
}

// ItemLines normalizes both entry shapes into one item-list representation so
// consumers never branch on shape. Legacy rows yield a single synthesized
// line with quantity one carrying the entry-level calorie value.
func (e Entry) ItemLines() ([]EntryItem, error) {
	if e.ItemsJSON != "" {
		var items []EntryItem
		if err := json.Unmarshal([]byte(e.ItemsJSON), &items); err != nil {
			return nil, fmt.Errorf("meals: decode items for entry %s: %w", e.EntryID, err)
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if e.MealItemJSON != "" {
		var snapshot MealItemSnapshot
		if err := json.Unmarshal([]byte(e.MealItemJSON), &snapshot); err != nil {
			return nil, fmt.Errorf("meals: decode meal item for entry %s: %w", e.EntryID, err)
		}
		return []EntryItem{{
			MealItemID: snapshot.ID,
			MealItem:   snapshot,
			Calories:   e.Calories,
			Quantity:   1,
		}}, nil
	}
	return nil, fmt.Errorf("%w: entry %s", ErrMissingItems, e.EntryID)
}

// EatenAt exposes the eaten-at instant as a time value.
func (e Entry) EatenAt() time.Time {
	return time.Unix(e.EatenAtSeconds, 0)
}

// PlaceDraft carries the caller-supplied fields for creating a place.
type PlaceDraft struct {
	Name    string
	Type    PlaceType
	Address string
	IsHome  bool
}

// Validate checks draft invariants before any storage call.
func (d PlaceDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&d.Type, validation.Required, validation.In(
			PlaceTypeHome, PlaceTypeRestaurant, PlaceTypeCafe,
			PlaceTypeFastFood, PlaceTypeWork, PlaceTypeOther,
		)),
	)
}

// PlacePatch carries a partial place update; nil fields are left untouched.
type PlacePatch struct {
	Name    *string
	Type    *PlaceType
	Address *string
	IsHome  *bool
}

// MealDraft carries the caller-supplied fields for creating a meal item.
type MealDraft struct {
	Name            string
	DefaultCalories *int64
	Category        MealCategory
	PlaceID         string
}

// Validate checks draft invariants before any storage call.
func (d MealDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&d.Category, validation.Required, validation.In(
			MealCategoryBreakfast, MealCategoryLunch, MealCategoryDinner,
			MealCategorySnack, MealCategoryDrink, MealCategoryDessert,
			MealCategoryOther,
		)),
		validation.Field(&d.DefaultCalories, validation.Min(int64(0))),
	)
}

// MealPatch carries a partial meal-item update; nil fields are left untouched.
type MealPatch struct {
	Name            *string
	DefaultCalories *int64
	Category        *MealCategory
	PlaceID         *string
}

// EntryDraft carries the caller-supplied fields for composing a multi-item
// entry. EatenAt nil means "now" per the service clock; MealType empty means
// derive from the eaten-at hour.
type EntryDraft struct {
	Place    PlaceSnapshot
	Items    []EntryItem
	MealType MealType
	Notes    string
	EatenAt  *time.Time
}

// Validate checks composition invariants before any storage call.
func (d EntryDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Place),
		validation.Field(&d.Items, validation.Required),
	)
}

// LegacyEntryDraft is the single-item composition contract retained for
// entries created before multi-item support.
type LegacyEntryDraft struct {
	Place    PlaceSnapshot
	MealItem MealItemSnapshot
	Calories *int64
	MealType MealType
	Notes    string
	EatenAt  *time.Time
}

// Validate checks composition invariants before any storage call.
func (d LegacyEntryDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Place),
		validation.Field(&d.MealItem),
	)
}

// EntryPatch carries a partial entry update. A non-nil Items slice forces the
// stored total to be recomputed from the new lines; a Calories override
// without Items is stored as-is.
type EntryPatch struct {
	Place    *PlaceSnapshot
	Items    []EntryItem
	Calories *int64
	MealType *MealType
	Notes    *string
	EatenAt  *time.Time
}

// totalCalories sums effective line calories across items. A zero sum maps to
// nil so "unknown calories" never surfaces as a literal zero total.
func totalCalories(items []EntryItem) *int64 {
	var sum int64
	for _, item := range items {
		sum += item.UnitCalories() * item.Quantity
	}
	if sum == 0 {
		return nil
	}
	return &sum
}

func encodeJSON(value any) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
