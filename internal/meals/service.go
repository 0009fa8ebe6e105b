package meals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	errMissingStore = errors.New("store adapter is required")
	noOpLogger      = zap.NewNop()

	// ErrInvalidDraft marks input rejected before any storage call.
	ErrInvalidDraft = errors.New("meals: invalid draft")
)

// ServiceError wraps a failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew           = "meals.service.new"
	opListPlaces           = "meals.list_places"
	opCreatePlace          = "meals.create_place"
	opUpdatePlace          = "meals.update_place"
	opDeletePlace          = "meals.delete_place"
	opListMeals            = "meals.list_meals"
	opCreateMeal           = "meals.create_meal"
	opUpdateMeal           = "meals.update_meal"
	opDeleteMeal           = "meals.delete_meal"
	opListEntries          = "meals.list_entries"
	opGetEntry             = "meals.get_entry"
	opCreateEntry          = "meals.create_entry"
	opCreateMultiItemEntry = "meals.create_multi_item_entry"
	opUpdateEntry          = "meals.update_entry"
	opDeleteEntry          = "meals.delete_entry"
	opComputeInsights      = "meals.compute_insights"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the meal-logging core.
type ServiceConfig struct {
	Store *Store
	Clock func() time.Time
	// Location is the calendar zone used for insights bucketing and
	// meal-type derivation. Defaults to the process-local zone.
	Location *time.Location
	Logger   *zap.Logger
}

// Service composes entries, maintains the place and meal-item catalogs and
// computes insights. All operations are scoped by the caller's user id.
type Service struct {
	store    *Store
	clock    func() time.Time
	location *time.Location
	logger   *zap.Logger
}

// NewService constructs the meal-logging service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, clock: clock, location: location, logger: logger}, nil
}

// ListPlaces returns the user's places, optionally name-filtered.
func (s *Service) ListPlaces(ctx context.Context, userID UserID, searchTerm string) ([]Place, error) {
	places, err := s.store.ListPlaces(ctx, userID, searchTerm)
	if err != nil {
		s.logError(opListPlaces, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListPlaces, "query_failed", err)
	}
	return places, nil
}

// CreatePlace validates and persists a new place.
func (s *Service) CreatePlace(ctx context.Context, userID UserID, draft PlaceDraft) (Place, error) {
	if err := draft.Validate(); err != nil {
		return Place{}, newServiceError(opCreatePlace, "invalid_draft", fmt.Errorf("%w: %v", ErrInvalidDraft, err))
	}
	place, err := s.store.CreatePlace(ctx, userID, draft)
	if err != nil {
		s.logError(opCreatePlace, "insert_failed", err, zap.String("user_id", userID.String()))
		return Place{}, newServiceError(opCreatePlace, "insert_failed", err)
	}
	return place, nil
}

// UpdatePlace blind-writes the supplied place fields.
func (s *Service) UpdatePlace(ctx context.Context, userID UserID, placeID string, patch PlacePatch) error {
	if err := s.store.UpdatePlace(ctx, userID, placeID, patch); err != nil {
		s.logError(opUpdatePlace, "update_failed", err,
			zap.String("user_id", userID.String()), zap.String("place_id", placeID))
		return newServiceError(opUpdatePlace, "update_failed", err)
	}
	return nil
}

// DeletePlace removes the place. Entries referencing it keep their snapshot.
func (s *Service) DeletePlace(ctx context.Context, userID UserID, placeID string) error {
	if err := s.store.DeletePlace(ctx, userID, placeID); err != nil {
		s.logError(opDeletePlace, "delete_failed", err,
			zap.String("user_id", userID.String()), zap.String("place_id", placeID))
		return newServiceError(opDeletePlace, "delete_failed", err)
	}
	return nil
}

// ListMeals returns the user's meal items, filtered and biased per options.
func (s *Service) ListMeals(ctx context.Context, userID UserID, opts ListMealsOptions) ([]MealItem, error) {
	items, err := s.store.ListMeals(ctx, userID, opts)
	if err != nil {
		s.logError(opListMeals, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListMeals, "query_failed", err)
	}
	return items, nil
}

// CreateMeal validates and persists a new meal item.
func (s *Service) CreateMeal(ctx context.Context, userID UserID, draft MealDraft) (MealItem, error) {
	if err := draft.Validate(); err != nil {
		return MealItem{}, newServiceError(opCreateMeal, "invalid_draft", fmt.Errorf("%w: %v", ErrInvalidDraft, err))
	}
	item, err := s.store.CreateMeal(ctx, userID, draft)
	if err != nil {
		s.logError(opCreateMeal, "insert_failed", err, zap.String("user_id", userID.String()))
		return MealItem{}, newServiceError(opCreateMeal, "insert_failed", err)
	}
	return item, nil
}

// UpdateMeal blind-writes the supplied meal-item fields.
func (s *Service) UpdateMeal(ctx context.Context, userID UserID, mealItemID string, patch MealPatch) error {
	if err := s.store.UpdateMeal(ctx, userID, mealItemID, patch); err != nil {
		s.logError(opUpdateMeal, "update_failed", err,
			zap.String("user_id", userID.String()), zap.String("meal_item_id", mealItemID))
		return newServiceError(opUpdateMeal, "update_failed", err)
	}
	return nil
}

// DeleteMeal removes the meal item.
func (s *Service) DeleteMeal(ctx context.Context, userID UserID, mealItemID string) error {
	if err := s.store.DeleteMeal(ctx, userID, mealItemID); err != nil {
		s.logError(opDeleteMeal, "delete_failed", err,
			zap.String("user_id", userID.String()), zap.String("meal_item_id", mealItemID))
		return newServiceError(opDeleteMeal, "delete_failed", err)
	}
	return nil
}

// ListEntries returns the user's entries newest first.
func (s *Service) ListEntries(ctx context.Context, userID UserID, opts ListEntriesOptions) ([]Entry, error) {
	entries, err := s.store.ListEntries(ctx, userID, opts)
	if err != nil {
		s.logError(opListEntries, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListEntries, "query_failed", err)
	}
	return entries, nil
}

// GetEntry fetches one entry; absence surfaces as ErrNotFound.
func (s *Service) GetEntry(ctx context.Context, userID UserID, entryID string) (Entry, error) {
	entry, err := s.store.GetEntry(ctx, userID, entryID)
	if errors.Is(err, ErrNotFound) {
		return Entry{}, newServiceError(opGetEntry, "not_found", err)
	}
	if err != nil {
		s.logError(opGetEntry, "query_failed", err,
			zap.String("user_id", userID.String()), zap.String("entry_id", entryID))
		return Entry{}, newServiceError(opGetEntry, "query_failed", err)
	}
	return entry, nil
}

// CreateMultiItemEntry composes and persists an entry from one or more item
// lines, then fires usage increments for the place and every referenced line.
func (s *Service) CreateMultiItemEntry(ctx context.Context, userID UserID, draft EntryDraft) (Entry, error) {
	if err := draft.Validate(); err != nil {
		return Entry{}, newServiceError(opCreateMultiItemEntry, "invalid_draft", fmt.Errorf("%w: %v", ErrInvalidDraft, err))
	}
	for index := range draft.Items {
		if draft.Items[index].MealItemID == "" {
			draft.Items[index].MealItemID = draft.Items[index].MealItem.ID
		}
	}

	eatenAt := s.clock()
	if draft.EatenAt != nil {
		eatenAt = *draft.EatenAt
	}
	mealType := draft.MealType
	if mealType == "" {
		mealType = MealTypeForHour(eatenAt.In(s.location).Hour())
	}

	placeJSON, err := encodeJSON(draft.Place)
	if err != nil {
		return Entry{}, newServiceError(opCreateMultiItemEntry, "encode_place_failed", err)
	}
	itemsJSON, err := encodeJSON(draft.Items)
	if err != nil {
		return Entry{}, newServiceError(opCreateMultiItemEntry, "encode_items_failed", err)
	}

	entry := Entry{
		PlaceID:        draft.Place.ID,
		PlaceJSON:      placeJSON,
		ItemsJSON:      itemsJSON,
		Calories:       totalCalories(draft.Items),
		MealType:       mealType,
		Notes:          draft.Notes,
		EatenAtSeconds: eatenAt.Unix(),
	}
	created, err := s.store.CreateEntry(ctx, userID, entry)
	if err != nil {
		s.logError(opCreateMultiItemEntry, "entry_insert_failed", err, zap.String("user_id", userID.String()))
		return Entry{}, newServiceError(opCreateMultiItemEntry, "entry_insert_failed", err)
	}

	mealItemIDs := make([]string, 0, len(draft.Items))
	for _, item := range draft.Items {
		mealItemIDs = append(mealItemIDs, item.MealItemID)
	}
	s.recordUsage(ctx, userID, created.EntryID, draft.Place.ID, mealItemIDs)

	return created, nil
}

// CreateEntry is the legacy single-item composition contract. Entries it
// produces remain readable indefinitely through Entry.ItemLines.
func (s *Service) CreateEntry(ctx context.Context, userID UserID, draft LegacyEntryDraft) (Entry, error) {
	if err := draft.Validate(); err != nil {
		return Entry{}, newServiceError(opCreateEntry, "invalid_draft", fmt.Errorf("%w: %v", ErrInvalidDraft, err))
	}

	eatenAt := s.clock()
	if draft.EatenAt != nil {
		eatenAt = *draft.EatenAt
	}
	mealType := draft.MealType
	if mealType == "" {
		mealType = MealTypeForHour(eatenAt.In(s.location).Hour())
	}

	placeJSON, err := encodeJSON(draft.Place)
	if err != nil {
		return Entry{}, newServiceError(opCreateEntry, "encode_place_failed", err)
	}
	mealItemJSON, err := encodeJSON(draft.MealItem)
	if err != nil {
		return Entry{}, newServiceError(opCreateEntry, "encode_meal_item_failed", err)
	}

	calories := draft.Calories
	if calories != nil && *calories == 0 {
		calories = nil
	}

	entry := Entry{
		PlaceID:        draft.Place.ID,
		PlaceJSON:      placeJSON,
		MealItemID:     draft.MealItem.ID,
		MealItemJSON:   mealItemJSON,
		Calories:       calories,
		MealType:       mealType,
		Notes:          draft.Notes,
		EatenAtSeconds: eatenAt.Unix(),
	}
	created, err := s.store.CreateEntry(ctx, userID, entry)
	if err != nil {
		s.logError(opCreateEntry, "entry_insert_failed", err, zap.String("user_id", userID.String()))
		return Entry{}, newServiceError(opCreateEntry, "entry_insert_failed", err)
	}

	s.recordUsage(ctx, userID, created.EntryID, draft.Place.ID, []string{draft.MealItem.ID})

	return created, nil
}

// UpdateEntry blind-writes the supplied fields. A supplied item list must be
// non-empty and forces the stored total to be recomputed from it; a direct
// calorie override without items is stored as-is.
func (s *Service) UpdateEntry(ctx context.Context, userID UserID, entryID string, patch EntryPatch) error {
	columns := map[string]any{}
	if patch.Place != nil {
		placeJSON, err := encodeJSON(*patch.Place)
		if err != nil {
			return newServiceError(opUpdateEntry, "encode_place_failed", err)
		}
		columns["place_id"] = patch.Place.ID
		columns["place_json"] = placeJSON
	}
	if patch.Items != nil {
		// An empty list would strip the entry of both shapes and leave it
		// unreadable; it never reaches storage.
		if len(patch.Items) == 0 {
			return newServiceError(opUpdateEntry, "invalid_draft",
				fmt.Errorf("%w: entry requires at least one item", ErrInvalidDraft))
		}
		for index := range patch.Items {
			if err := patch.Items[index].Validate(); err != nil {
				return newServiceError(opUpdateEntry, "invalid_draft", fmt.Errorf("%w: %v", ErrInvalidDraft, err))
			}
			if patch.Items[index].MealItemID == "" {
				patch.Items[index].MealItemID = patch.Items[index].MealItem.ID
			}
		}
		itemsJSON, err := encodeJSON(patch.Items)
		if err != nil {
			return newServiceError(opUpdateEntry, "encode_items_failed", err)
		}
		columns["items_json"] = itemsJSON
		columns["calories"] = totalCalories(patch.Items)
	} else if patch.Calories != nil {
		columns["calories"] = *patch.Calories
	}
	if patch.MealType != nil {
		columns["meal_type"] = *patch.MealType
	}
	if patch.Notes != nil {
		columns["notes"] = *patch.Notes
	}
	if patch.EatenAt != nil {
		columns["eaten_at_s"] = patch.EatenAt.Unix()
	}

	if err := s.store.UpdateEntry(ctx, userID, entryID, columns); err != nil {
		s.logError(opUpdateEntry, "update_failed", err,
			zap.String("user_id", userID.String()), zap.String("entry_id", entryID))
		return newServiceError(opUpdateEntry, "update_failed", err)
	}
	return nil
}

// DeleteEntry removes the entry outright. Usage counters stay monotonic.
func (s *Service) DeleteEntry(ctx context.Context, userID UserID, entryID string) error {
	if err := s.store.DeleteEntry(ctx, userID, entryID); err != nil {
		s.logError(opDeleteEntry, "delete_failed", err,
			zap.String("user_id", userID.String()), zap.String("entry_id", entryID))
		return newServiceError(opDeleteEntry, "delete_failed", err)
	}
	return nil
}

// recordUsage runs the place increment and one increment per item line
// concurrently and waits for all of them. A failed increment leaves the
// already-created entry in place and the counter under-counted; it is logged
// and otherwise swallowed.
func (s *Service) recordUsage(ctx context.Context, userID UserID, entryID, placeID string, mealItemIDs []string) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.store.IncrementPlaceUsage(groupCtx, userID, placeID); err != nil {
			s.logger.Warn("place usage increment failed",
				zap.String("user_id", userID.String()),
				zap.String("entry_id", entryID),
				zap.String("place_id", placeID),
				zap.Error(err))
		}
		return nil
	})
	for _, mealItemID := range mealItemIDs {
		mealItemID := mealItemID
		group.Go(func() error {
			if err := s.store.IncrementMealUsage(groupCtx, userID, mealItemID); err != nil {
				s.logger.Warn("meal usage increment failed",
					zap.String("user_id", userID.String()),
					zap.String("entry_id", entryID),
					zap.String("meal_item_id", mealItemID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("meals service error", attrs...)
}
