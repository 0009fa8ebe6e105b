package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/mealtrail/internal/auth"
	"github.com/MarcoPoloResearchLab/mealtrail/internal/meals"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "mealtrail_user_id"

const defaultInsightsDays = 7

var (
	errMissingSessionVerifier = errors.New("session verifier dependency required")
	errMissingIdentityService = errors.New("identity resolver dependency required")
	errMissingMealsService    = errors.New("meals service dependency required")
)

// SessionVerifier validates the inbound session and returns its claims.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// IdentityResolver maps session claims to the canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.SessionClaims) (string, error)
}

// Dependencies wires the HTTP layer to the core services.
type Dependencies struct {
	Sessions     SessionVerifier
	Identities   IdentityResolver
	MealsService *meals.Service
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router exposing the meal-logging API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionVerifier
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityService
	}
	if deps.MealsService == nil {
		return nil, errMissingMealsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:   deps.Sessions,
		identities: deps.Identities,
		meals:      deps.MealsService,
		logger:     logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/places", handler.handleListPlaces)
	protected.POST("/places", handler.handleCreatePlace)
	protected.PATCH("/places/:id", handler.handleUpdatePlace)
	protected.DELETE("/places/:id", handler.handleDeletePlace)

	protected.GET("/meals", handler.handleListMeals)
	protected.POST("/meals", handler.handleCreateMeal)
	protected.PATCH("/meals/:id", handler.handleUpdateMeal)
	protected.DELETE("/meals/:id", handler.handleDeleteMeal)

	protected.GET("/entries", handler.handleListEntries)
	protected.GET("/entries/:id", handler.handleGetEntry)
	protected.POST("/entries", handler.handleCreateEntry)
	protected.PATCH("/entries/:id", handler.handleUpdateEntry)
	protected.DELETE("/entries/:id", handler.handleDeleteEntry)

	protected.GET("/insights", handler.handleInsights)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	sessions   SessionVerifier
	identities IdentityResolver
	meals      *meals.Service
	logger     *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) requestUserID(c *gin.Context) (meals.UserID, bool) {
	userID, err := meals.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// writeServiceError translates core failures into the HTTP taxonomy:
// rejected input 400, absent records 404, everything else 500 carrying the
// service error code.
func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	code := ""
	var serviceErr *meals.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	switch {
	case errors.Is(err, meals.ErrInvalidDraft), errors.Is(err, meals.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": code})
	case errors.Is(err, meals.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": code})
	}
}
