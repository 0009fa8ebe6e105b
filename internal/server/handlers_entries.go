package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/mealtrail/internal/meals"
	"github.com/gin-gonic/gin"
)

type placeSnapshotPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	IsHome bool   `json:"is_home"`
}

func (p placeSnapshotPayload) toSnapshot() meals.PlaceSnapshot {
	return meals.PlaceSnapshot{
		ID:     p.ID,
		Name:   p.Name,
		Type:   meals.PlaceType(p.Type),
		IsHome: p.IsHome,
	}
}

func placeSnapshotPayloadFrom(snapshot meals.PlaceSnapshot) placeSnapshotPayload {
	return placeSnapshotPayload{
		ID:     snapshot.ID,
		Name:   snapshot.Name,
		Type:   string(snapshot.Type),
		IsHome: snapshot.IsHome,
	}
}

type mealSnapshotPayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefaultCalories *int64 `json:"default_calories,omitempty"`
	Category        string `json:"category"`
}

func (p mealSnapshotPayload) toSnapshot() meals.MealItemSnapshot {
	return meals.MealItemSnapshot{
		ID:              p.ID,
		Name:            p.Name,
		DefaultCalories: p.DefaultCalories,
		Category:        meals.MealCategory(p.Category),
	}
}

func mealSnapshotPayloadFrom(snapshot meals.MealItemSnapshot) mealSnapshotPayload {
	return mealSnapshotPayload{
		ID:              snapshot.ID,
		Name:            snapshot.Name,
		DefaultCalories: snapshot.DefaultCalories,
		Category:        string(snapshot.Category),
	}
}

type entryItemPayload struct {
	MealItem mealSnapshotPayload `json:"meal_item"`
	Calories *int64              `json:"calories,omitempty"`
	Quantity int64               `json:"quantity"`
}

func (p entryItemPayload) toItem() meals.EntryItem {
	return meals.EntryItem{
		MealItemID: p.MealItem.ID,
		MealItem:   p.MealItem.toSnapshot(),
		Calories:   p.Calories,
		Quantity:   p.Quantity,
	}
}

type entryPayload struct {
	ID         string               `json:"id"`
	PlaceID    string               `json:"place_id"`
	Place      placeSnapshotPayload `json:"place"`
	MealItemID string               `json:"meal_item_id,omitempty"`
	MealItem   *mealSnapshotPayload `json:"meal_item,omitempty"`
	Items      []entryItemPayload   `json:"items,omitempty"`
	Calories   *int64               `json:"calories,omitempty"`
	MealType   string               `json:"meal_type"`
	Notes      string               `json:"notes,omitempty"`
	EatenAtS   int64                `json:"eaten_at_s"`
	CreatedAtS int64                `json:"created_at_s"`
	UpdatedAtS int64                `json:"updated_at_s"`
}

func entryPayloadFrom(entry meals.Entry) (entryPayload, error) {
	place, err := entry.Place()
	if err != nil {
		return entryPayload{}, err
	}
	payload := entryPayload{
		ID:         entry.EntryID,
		PlaceID:    entry.PlaceID,
		Place:      placeSnapshotPayloadFrom(place),
		Calories:   entry.Calories,
		MealType:   string(entry.MealType),
		Notes:      entry.Notes,
		EatenAtS:   entry.EatenAtSeconds,
		CreatedAtS: entry.CreatedAtSeconds,
		UpdatedAtS: entry.UpdatedAtSeconds,
	}
	lines, err := entry.ItemLines()
	if err != nil {
		return entryPayload{}, err
	}
	if entry.ItemsJSON != "" {
		payload.Items = make([]entryItemPayload, 0, len(lines))
		for _, line := range lines {
			payload.Items = append(payload.Items, entryItemPayload{
				MealItem: mealSnapshotPayloadFrom(line.MealItem),
				Calories: line.Calories,
				Quantity: line.Quantity,
			})
		}
	} else {
		snapshot := mealSnapshotPayloadFrom(lines[0].MealItem)
		payload.MealItemID = entry.MealItemID
		payload.MealItem = &snapshot
	}
	return payload, nil
}

type createEntryPayload struct {
	Place    placeSnapshotPayload `json:"place"`
	Items    []entryItemPayload   `json:"items"`
	MealItem *mealSnapshotPayload `json:"meal_item"`
	Calories *int64               `json:"calories"`
	MealType string               `json:"meal_type"`
	Notes    string               `json:"notes"`
	EatenAtS *int64               `json:"eaten_at_s"`
}

type updateEntryPayload struct {
	Place    *placeSnapshotPayload `json:"place"`
	Items    []entryItemPayload    `json:"items"`
	Calories *int64                `json:"calories"`
	MealType *string               `json:"meal_type"`
	Notes    *string               `json:"notes"`
	EatenAtS *int64                `json:"eaten_at_s"`
}

func (h *httpHandler) handleListEntries(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	opts := meals.ListEntriesOptions{}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		opts.Limit = limit
	}
	if raw := c.Query("start_s"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_start"})
			return
		}
		start := time.Unix(seconds, 0)
		opts.Start = &start
	}
	if raw := c.Query("end_s"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_end"})
			return
		}
		end := time.Unix(seconds, 0)
		opts.End = &end
	}

	entries, err := h.meals.ListEntries(c.Request.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payload, err := entryPayloadFrom(entry)
		if err != nil {
			h.writeServiceError(c, err)
			return
		}
		response = append(response, payload)
	}
	c.JSON(http.StatusOK, gin.H{"entries": response})
}

func (h *httpHandler) handleGetEntry(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	entry, err := h.meals.GetEntry(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	payload, err := entryPayloadFrom(entry)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// handleCreateEntry accepts both shapes: a non-empty items list composes a
// multi-item entry, a meal_item composes a legacy single-item entry.
func (h *httpHandler) handleCreateEntry(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request createEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var eatenAt *time.Time
	if request.EatenAtS != nil {
		at := time.Unix(*request.EatenAtS, 0)
		eatenAt = &at
	}

	var entry meals.Entry
	var err error
	switch {
	case len(request.Items) > 0:
		items := make([]meals.EntryItem, 0, len(request.Items))
		for _, item := range request.Items {
			items = append(items, item.toItem())
		}
		entry, err = h.meals.CreateMultiItemEntry(c.Request.Context(), userID, meals.EntryDraft{
			Place:    request.Place.toSnapshot(),
			Items:    items,
			MealType: meals.MealType(request.MealType),
			Notes:    request.Notes,
			EatenAt:  eatenAt,
		})
	case request.MealItem != nil:
		entry, err = h.meals.CreateEntry(c.Request.Context(), userID, meals.LegacyEntryDraft{
			Place:    request.Place.toSnapshot(),
			MealItem: request.MealItem.toSnapshot(),
			Calories: request.Calories,
			MealType: meals.MealType(request.MealType),
			Notes:    request.Notes,
			EatenAt:  eatenAt,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	payload, err := entryPayloadFrom(entry)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *httpHandler) handleUpdateEntry(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request updateEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	patch := meals.EntryPatch{
		Calories: request.Calories,
		Notes:    request.Notes,
	}
	if request.Place != nil {
		snapshot := request.Place.toSnapshot()
		patch.Place = &snapshot
	}
	if request.Items != nil {
		items := make([]meals.EntryItem, 0, len(request.Items))
		for _, item := range request.Items {
			items = append(items, item.toItem())
		}
		patch.Items = items
	}
	if request.MealType != nil {
		mealType := meals.MealType(*request.MealType)
		patch.MealType = &mealType
	}
	if request.EatenAtS != nil {
		at := time.Unix(*request.EatenAtS, 0)
		patch.EatenAt = &at
	}

	if err := h.meals.UpdateEntry(c.Request.Context(), userID, c.Param("id"), patch); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteEntry(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	if err := h.meals.DeleteEntry(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type dailySummaryPayload struct {
	Date          string `json:"date"`
	TotalCalories int64  `json:"total_calories"`
	MealCount     int64  `json:"meal_count"`
	HomeCount     int64  `json:"home_count"`
	OutCount      int64  `json:"out_count"`
}

func dailySummaryPayloadFrom(summary meals.DailySummary) dailySummaryPayload {
	return dailySummaryPayload{
		Date:          summary.Date,
		TotalCalories: summary.TotalCalories,
		MealCount:     summary.MealCount,
		HomeCount:     summary.HomeCount,
		OutCount:      summary.OutCount,
	}
}

type locationBreakdownPayload struct {
	Home  int64 `json:"home"`
	Out   int64 `json:"out"`
	Total int64 `json:"total"`
}

type placeRankingPayload struct {
	Place placeSnapshotPayload `json:"place"`
	Count int64                `json:"count"`
}

type periodStatsPayload struct {
	TotalCalories     int64 `json:"total_calories"`
	TotalMeals        int64 `json:"total_meals"`
	AvgCaloriesPerDay int64 `json:"avg_calories_per_day"`
}

type insightsPayload struct {
	TodaySummary      dailySummaryPayload      `json:"today_summary"`
	DailyData         []dailySummaryPayload    `json:"daily_data"`
	LocationBreakdown locationBreakdownPayload `json:"location_breakdown"`
	TopPlaces         []placeRankingPayload    `json:"top_places"`
	PeriodStats       periodStatsPayload       `json:"period_stats"`
}

func (h *httpHandler) handleInsights(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	days := defaultInsightsDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days"})
			return
		}
		days = parsed
	}

	summary, err := h.meals.ComputeInsights(c.Request.Context(), userID, days)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := insightsPayload{
		TodaySummary: dailySummaryPayloadFrom(summary.TodaySummary),
		DailyData:    make([]dailySummaryPayload, 0, len(summary.DailyData)),
		LocationBreakdown: locationBreakdownPayload{
			Home:  summary.LocationBreakdown.Home,
			Out:   summary.LocationBreakdown.Out,
			Total: summary.LocationBreakdown.Total,
		},
		TopPlaces: make([]placeRankingPayload, 0, len(summary.TopPlaces)),
		PeriodStats: periodStatsPayload{
			TotalCalories:     summary.PeriodStats.TotalCalories,
			TotalMeals:        summary.PeriodStats.TotalMeals,
			AvgCaloriesPerDay: summary.PeriodStats.AvgCaloriesPerDay,
		},
	}
	for _, day := range summary.DailyData {
		response.DailyData = append(response.DailyData, dailySummaryPayloadFrom(day))
	}
	for _, ranking := range summary.TopPlaces {
		response.TopPlaces = append(response.TopPlaces, placeRankingPayload{
			Place: placeSnapshotPayloadFrom(ranking.Place),
			Count: ranking.Count,
		})
	}

	c.JSON(http.StatusOK, response)
}
