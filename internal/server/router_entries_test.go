package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newHandlerTestContext(testContext *testing.T) (*gin.Context, *httptest.ResponseRecorder, *httpHandler) {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(userIDContextKey, "user-1")

	handler := &httpHandler{
		meals:  newServerTestService(testContext),
		logger: zap.NewNop(),
	}
	return context, recorder, handler
}

func TestHandleCreateEntryRejectsMalformedBody(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader("{not json"))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler.handleCreateEntry(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
}

func TestHandleCreateEntryRejectsMissingItemShape(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	body := `{"place":{"id":"place-1","name":"Cafe","type":"CAFE","is_home":false},"meal_type":"LUNCH"}`
	request := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler.handleCreateEntry(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_request"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleCreateEntryComposesMultiItemEntry(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	body := `{
		"place":{"id":"place-1","name":"Corner Cafe","type":"CAFE","is_home":false},
		"items":[{"meal_item":{"id":"meal-1","name":"Latte","default_calories":180,"category":"DRINK"},"quantity":2}],
		"meal_type":"BREAKFAST"
	}`
	request := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler.handleCreateEntry(context)

	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected created status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := recorder.Body.String()
	if !strings.Contains(payload, `"calories":360`) {
		testContext.Fatalf("expected computed total in response: %s", payload)
	}
	if !strings.Contains(payload, `"meal_type":"BREAKFAST"`) {
		testContext.Fatalf("expected meal type in response: %s", payload)
	}
}

func TestHandleListEntriesRejectsInvalidLimit(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodGet, "/entries?limit=abc", nil)
	context.Request = request

	handler.handleListEntries(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_limit"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleListEntriesRejectsInvalidStart(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodGet, "/entries?start_s=nope", nil)
	context.Request = request

	handler.handleListEntries(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_start"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleGetEntryReturnsNotFound(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodGet, "/entries/missing", nil)
	context.Request = request
	context.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.handleGetEntry(context)

	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("expected not found status, got %d", recorder.Code)
	}
	expected := `{"error":"not_found"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleInsightsRejectsInvalidDays(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodGet, "/insights?days=0", nil)
	context.Request = request

	handler.handleInsights(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_days"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleInsightsRejectsOversizedWindow(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	request := httptest.NewRequest(http.MethodGet, "/insights?days=2000000000", nil)
	context.Request = request

	handler.handleInsights(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "meals.compute_insights.invalid_window") {
		testContext.Fatalf("expected window error code in body: %s", recorder.Body.String())
	}
}

func TestHandleCreatePlaceIncludesServiceErrorCode(testContext *testing.T) {
	context, recorder, handler := newHandlerTestContext(testContext)

	body := `{"name":"","type":"CAFE"}`
	request := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request

	handler.handleCreatePlace(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "meals.create_place.invalid_draft") {
		testContext.Fatalf("expected service error code in body: %s", recorder.Body.String())
	}
}
