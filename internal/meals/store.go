package meals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound marks a get on a record that was deleted or never existed.
// Callers treat it as an explicit absent marker, not a failure.
var ErrNotFound = errors.New("meals: record not found")

var (
	errStoreMissingDatabase   = errors.New("database handle is required")
	errStoreMissingIDProvider = errors.New("id provider is required")
)

// StoreConfig describes the dependencies of the entity store adapter.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Store is the typed per-user adapter over the places, meal-items and entries
// collections. Ordering happens at the query; substring and date-range
// filters run in process after the fetch.
type Store struct {
	db    *gorm.DB
	clock func() time.Time
	ids   IDProvider
}

// NewStore constructs the store adapter.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errStoreMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errStoreMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: cfg.Database, clock: clock, ids: cfg.IDProvider}, nil
}

// ListPlaces returns the user's places ordered by usage count descending then
// name ascending, optionally filtered by a case-insensitive name substring.
func (s *Store) ListPlaces(ctx context.Context, userID UserID, searchTerm string) ([]Place, error) {
	var places []Place
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("usage_count DESC, name ASC").
		Find(&places).Error
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	if term := strings.ToLower(strings.TrimSpace(searchTerm)); term != "" {
		filtered := places[:0]
		for _, place := range places {
			if strings.Contains(strings.ToLower(place.Name), term) {
				filtered = append(filtered, place)
			}
		}
		places = filtered
	}
	return places, nil
}

// GetPlace fetches one place, returning ErrNotFound for absent records.
func (s *Store) GetPlace(ctx context.Context, userID UserID, placeID string) (Place, error) {
	var place Place
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND place_id = ?", userID.String(), placeID).
		Take(&place).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Place{}, fmt.Errorf("%w: place %s", ErrNotFound, placeID)
	}
	if err != nil {
		return Place{}, fmt.Errorf("get place: %w", err)
	}
	return place, nil
}

// CreatePlace persists a new place with a generated id, a zero usage count
// and clock-assigned timestamps.
func (s *Store) CreatePlace(ctx context.Context, userID UserID, draft PlaceDraft) (Place, error) {
	placeID, err := s.ids.NewID()
	if err != nil {
		return Place{}, fmt.Errorf("generate place id: %w", err)
	}
	now := s.clock().Unix()
	place := Place{
		UserID:           userID.String(),
		PlaceID:          placeID,
		Name:             draft.Name,
		Type:             draft.Type,
		Address:          draft.Address,
		IsHome:           draft.IsHome,
		UsageCount:       0,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&place).Error; err != nil {
		return Place{}, fmt.Errorf("insert place: %w", err)
	}
	return place, nil
}

// UpdatePlace blind-writes the supplied fields plus a refreshed updated_at.
// It never reads the existing record first.
func (s *Store) UpdatePlace(ctx context.Context, userID UserID, placeID string, patch PlacePatch) error {
	columns := map[string]any{}
	if patch.Name != nil {
		columns["name"] = *patch.Name
	}
	if patch.Type != nil {
		columns["place_type"] = *patch.Type
	}
	if patch.Address != nil {
		columns["address"] = *patch.Address
	}
	if patch.IsHome != nil {
		columns["is_home"] = *patch.IsHome
	}
	columns["updated_at_s"] = s.clock().Unix()
	err := s.db.WithContext(ctx).Model(&Place{}).
		Where("user_id = ? AND place_id = ?", userID.String(), placeID).
		Updates(columns).Error
	if err != nil {
		return fmt.Errorf("update place: %w", err)
	}
	return nil
}

// DeletePlace removes the place unconditionally. Existing entries keep their
// denormalized snapshot.
func (s *Store) DeletePlace(ctx context.Context, userID UserID, placeID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND place_id = ?", userID.String(), placeID).
		Delete(&Place{}).Error
	if err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	return nil
}

// IncrementPlaceUsage bumps the usage counter by one in a single UPDATE so
// concurrent in-flight entry creations never lose increments.
func (s *Store) IncrementPlaceUsage(ctx context.Context, userID UserID, placeID string) error {
	err := s.db.WithContext(ctx).Model(&Place{}).
		Where("user_id = ? AND place_id = ?", userID.String(), placeID).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"updated_at_s": s.clock().Unix(),
		}).Error
	if err != nil {
		return fmt.Errorf("increment place usage: %w", err)
	}
	return nil
}

// ListMealsOptions filters and biases a meal-item listing.
type ListMealsOptions struct {
	SearchTerm string
	// PlaceID biases ordering to put meals affiliated with the place first.
	PlaceID string
}

// ListMeals returns the user's meal items ordered by usage count descending
// then name ascending, filtered and biased per options.
func (s *Store) ListMeals(ctx context.Context, userID UserID, opts ListMealsOptions) ([]MealItem, error) {
	var items []MealItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("usage_count DESC, name ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	if term := strings.ToLower(strings.TrimSpace(opts.SearchTerm)); term != "" {
		filtered := items[:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), term) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if opts.PlaceID != "" {
		sort.SliceStable(items, func(first, second int) bool {
			firstAffiliated := items[first].PlaceID == opts.PlaceID
			secondAffiliated := items[second].PlaceID == opts.PlaceID
			return firstAffiliated && !secondAffiliated
		})
	}
	return items, nil
}

// GetMeal fetches one meal item, returning ErrNotFound for absent records.
func (s *Store) GetMeal(ctx context.Context, userID UserID, mealItemID string) (MealItem, error) {
	var item MealItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND meal_item_id = ?", userID.String(), mealItemID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MealItem{}, fmt.Errorf("%w: meal item %s", ErrNotFound, mealItemID)
	}
	if err != nil {
		return MealItem{}, fmt.Errorf("get meal: %w", err)
	}
	return item, nil
}

// CreateMeal persists a new meal item with a generated id, a zero usage count
// and clock-assigned timestamps.
func (s *Store) CreateMeal(ctx context.Context, userID UserID, draft MealDraft) (MealItem, error) {
	mealItemID, err := s.ids.NewID()
	if err != nil {
		return MealItem{}, fmt.Errorf("generate meal id: %w", err)
	}
	now := s.clock().Unix()
	item := MealItem{
		UserID:           userID.String(),
		MealItemID:       mealItemID,
		Name:             draft.Name,
		DefaultCalories:  draft.DefaultCalories,
		Category:         draft.Category,
		PlaceID:          draft.PlaceID,
		UsageCount:       0,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return MealItem{}, fmt.Errorf("insert meal: %w", err)
	}
	return item, nil
}

// UpdateMeal blind-writes the supplied fields plus a refreshed updated_at.
func (s *Store) UpdateMeal(ctx context.Context, userID UserID, mealItemID string, patch MealPatch) error {
	columns := map[string]any{}
	if patch.Name != nil {
		columns["name"] = *patch.Name
	}
	if patch.DefaultCalories != nil {
		columns["default_calories"] = *patch.DefaultCalories
	}
	if patch.Category != nil {
		columns["category"] = *patch.Category
	}
	if patch.PlaceID != nil {
		columns["place_id"] = *patch.PlaceID
	}
	columns["updated_at_s"] = s.clock().Unix()
	err := s.db.WithContext(ctx).Model(&MealItem{}).
		Where("user_id = ? AND meal_item_id = ?", userID.String(), mealItemID).
		Updates(columns).Error
	if err != nil {
		return fmt.Errorf("update meal: %w", err)
	}
	return nil
}

// DeleteMeal removes the meal item unconditionally.
func (s *Store) DeleteMeal(ctx context.Context, userID UserID, mealItemID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND meal_item_id = ?", userID.String(), mealItemID).
		Delete(&MealItem{}).Error
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}

// IncrementMealUsage bumps the usage counter by one in a single UPDATE.
func (s *Store) IncrementMealUsage(ctx context.Context, userID UserID, mealItemID string) error {
	err := s.db.WithContext(ctx).Model(&MealItem{}).
		Where("user_id = ? AND meal_item_id = ?", userID.String(), mealItemID).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"updated_at_s": s.clock().Unix(),
		}).Error
	if err != nil {
		return fmt.Errorf("increment meal usage: %w", err)
	}
	return nil
}

// ListEntriesOptions bounds an entry listing. The limit applies at the query;
// the inclusive date range is applied in process after the fetch.
type ListEntriesOptions struct {
	Limit int
	Start *time.Time
	End   *time.Time
}

// ListEntries returns the user's entries ordered by eaten-at descending.
func (s *Store) ListEntries(ctx context.Context, userID UserID, opts ListEntriesOptions) ([]Entry, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("eaten_at_s DESC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if opts.Start != nil || opts.End != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			if opts.Start != nil && entry.EatenAtSeconds < opts.Start.Unix() {
				continue
			}
			if opts.End != nil && entry.EatenAtSeconds > opts.End.Unix() {
				continue
			}
			filtered = append(filtered, entry)
		}
		entries = filtered
	}
	return entries, nil
}

// GetEntry fetches one entry, returning ErrNotFound for absent records.
func (s *Store) GetEntry(ctx context.Context, userID UserID, entryID string) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND entry_id = ?", userID.String(), entryID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, fmt.Errorf("%w: entry %s", ErrNotFound, entryID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// CreateEntry persists a composed entry with a generated id and
// clock-assigned timestamps. The caller supplies every other column,
// snapshots included.
func (s *Store) CreateEntry(ctx context.Context, userID UserID, entry Entry) (Entry, error) {
	entryID, err := s.ids.NewID()
	if err != nil {
		return Entry{}, fmt.Errorf("generate entry id: %w", err)
	}
	now := s.clock().Unix()
	entry.UserID = userID.String()
	entry.EntryID = entryID
	entry.CreatedAtSeconds = now
	entry.UpdatedAtSeconds = now
	if entry.EatenAtSeconds == 0 {
		entry.EatenAtSeconds = now
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry blind-writes the supplied columns plus a refreshed updated_at.
func (s *Store) UpdateEntry(ctx context.Context, userID UserID, entryID string, columns map[string]any) error {
	if columns == nil {
		columns = map[string]any{}
	}
	columns["updated_at_s"] = s.clock().Unix()
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("user_id = ? AND entry_id = ?", userID.String(), entryID).
		Updates(columns).Error
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry unconditionally. Usage counters on the
// referenced place and meal items are never decremented.
func (s *Store) DeleteEntry(ctx context.Context, userID UserID, entryID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND entry_id = ?", userID.String(), entryID).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}
