package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/mealtrail/internal/meals"
	"github.com/gin-gonic/gin"
)

type placePayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Address    string `json:"address,omitempty"`
	IsHome     bool   `json:"is_home"`
	UsageCount int64  `json:"usage_count"`
	CreatedAtS int64  `json:"created_at_s"`
	UpdatedAtS int64  `json:"updated_at_s"`
}

func placePayloadFrom(place meals.Place) placePayload {
	return placePayload{
		ID:         place.PlaceID,
		Name:       place.Name,
		Type:       string(place.Type),
		Address:    place.Address,
		IsHome:     place.IsHome,
		UsageCount: place.UsageCount,
		CreatedAtS: place.CreatedAtSeconds,
		UpdatedAtS: place.UpdatedAtSeconds,
	}
}

type createPlacePayload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	IsHome  bool   `json:"is_home"`
}

type updatePlacePayload struct {
	Name    *string `json:"name"`
	Type    *string `json:"type"`
	Address *string `json:"address"`
	IsHome  *bool   `json:"is_home"`
}

func (h *httpHandler) handleListPlaces(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	places, err := h.meals.ListPlaces(c.Request.Context(), userID, c.Query("search"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := make([]placePayload, 0, len(places))
	for _, place := range places {
		response = append(response, placePayloadFrom(place))
	}
	c.JSON(http.StatusOK, gin.H{"places": response})
}

func (h *httpHandler) handleCreatePlace(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request createPlacePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	place, err := h.meals.CreatePlace(c.Request.Context(), userID, meals.PlaceDraft{
		Name:    request.Name,
		Type:    meals.PlaceType(request.Type),
		Address: request.Address,
		IsHome:  request.IsHome,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, placePayloadFrom(place))
}

func (h *httpHandler) handleUpdatePlace(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request updatePlacePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	patch := meals.PlacePatch{
		Name:    request.Name,
		Address: request.Address,
		IsHome:  request.IsHome,
	}
	if request.Type != nil {
		placeType := meals.PlaceType(*request.Type)
		patch.Type = &placeType
	}
	if err := h.meals.UpdatePlace(c.Request.Context(), userID, c.Param("id"), patch); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeletePlace(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	if err := h.meals.DeletePlace(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type mealPayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefaultCalories *int64 `json:"default_calories,omitempty"`
	Category        string `json:"category"`
	PlaceID         string `json:"place_id,omitempty"`
	UsageCount      int64  `json:"usage_count"`
	CreatedAtS      int64  `json:"created_at_s"`
	UpdatedAtS      int64  `json:"updated_at_s"`
}

func mealPayloadFrom(item meals.MealItem) mealPayload {
	return mealPayload{
		ID:              item.MealItemID,
		Name:            item.Name,
		DefaultCalories: item.DefaultCalories,
		Category:        string(item.Category),
		PlaceID:         item.PlaceID,
		UsageCount:      item.UsageCount,
		CreatedAtS:      item.CreatedAtSeconds,
		UpdatedAtS:      item.UpdatedAtSeconds,
	}
}

type createMealPayload struct {
	Name            string `json:"name"`
	DefaultCalories *int64 `json:"default_calories"`
	Category        string `json:"category"`
	PlaceID         string `json:"place_id"`
}

type updateMealPayload struct {
	Name            *string `json:"name"`
	DefaultCalories *int64  `json:"default_calories"`
	Category        *string `json:"category"`
	PlaceID         *string `json:"place_id"`
}

func (h *httpHandler) handleListMeals(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	items, err := h.meals.ListMeals(c.Request.Context(), userID, meals.ListMealsOptions{
		SearchTerm: c.Query("search"),
		PlaceID:    c.Query("place_id"),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := make([]mealPayload, 0, len(items))
	for _, item := range items {
		response = append(response, mealPayloadFrom(item))
	}
	c.JSON(http.StatusOK, gin.H{"meals": response})
}

func (h *httpHandler) handleCreateMeal(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request createMealPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.meals.CreateMeal(c.Request.Context(), userID, meals.MealDraft{
		Name:            request.Name,
		DefaultCalories: request.DefaultCalories,
		Category:        meals.MealCategory(request.Category),
		PlaceID:         request.PlaceID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mealPayloadFrom(item))
}

func (h *httpHandler) handleUpdateMeal(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	var request updateMealPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	patch := meals.MealPatch{
		Name:            request.Name,
		DefaultCalories: request.DefaultCalories,
		PlaceID:         request.PlaceID,
	}
	if request.Category != nil {
		category := meals.MealCategory(*request.Category)
		patch.Category = &category
	}
	if err := h.meals.UpdateMeal(c.Request.Context(), userID, c.Param("id"), patch); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteMeal(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	if err := h.meals.DeleteMeal(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
