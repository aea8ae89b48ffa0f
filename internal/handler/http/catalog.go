package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SajivJess/Wally/internal/service"
	"github.com/SajivJess/Wally/pkg/httputil"
	"github.com/SajivJess/Wally/pkg/validator"
)

// --- Users ---

type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// GetUser handles GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /api/users/
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input service.CreateUserInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// GetProfile handles GET /api/users/{id}/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdatePoints handles PUT /api/users/{id}/points?points=N
func (h *UserHandler) UpdatePoints(w http.ResponseWriter, r *http.Request) {
	points, ok := httputil.RequiredQueryInt(w, r, "points")
	if !ok {
		return
	}
	if err := h.service.AddPoints(r.Context(), chi.URLParam(r, "id"), int64(points)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, "Points updated successfully")
}

// --- Products & bundles ---

type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// ListProducts handles GET /api/products/?category=&limit=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(w, r, "limit", service.DefaultProductLimit)
	if !ok {
		return
	}
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/products/
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input service.CreateProductInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

// Trending handles GET /api/products/trending/location?location=
func (h *ProductHandler) Trending(w http.ResponseWriter, r *http.Request) {
	location, ok := httputil.RequiredQuery(w, r, "location")
	if !ok {
		return
	}
	products, err := h.service.Trending(r.Context(), location)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// ListBundles handles GET /api/products/bundles/?limit=
func (h *ProductHandler) ListBundles(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(w, r, "limit", service.DefaultBundleLimit)
	if !ok {
		return
	}
	bundles, err := h.service.ListBundles(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bundles)
}

// GetBundle handles GET /api/products/bundles/{id}
func (h *ProductHandler) GetBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.service.GetBundle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bundle)
}

// CreateBundle handles POST /api/products/bundles/
func (h *ProductHandler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	var input service.CreateBundleInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	bundle, err := h.service.CreateBundle(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bundle)
}

// VisualSearch handles GET /api/products/search/visual?query=
func (h *ProductHandler) VisualSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := httputil.RequiredQuery(w, r, "query")
	if !ok {
		return
	}
	res, err := h.service.VisualSearch(query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// --- Missions ---

type MissionHandler struct {
	service *service.MissionService
	logger  *slog.Logger
}

func NewMissionHandler(svc *service.MissionService, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{service: svc, logger: logger}
}

type progressResponse struct {
	Message     string `json:"message"`
	NewProgress int    `json:"new_progress"`
}

// ListMissions handles GET /api/missions/?active_only=
func (h *MissionHandler) ListMissions(w http.ResponseWriter, r *http.Request) {
	activeOnly, ok := httputil.QueryBool(w, r, "active_only", true)
	if !ok {
		return
	}
	missions, err := h.service.ListMissions(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, missions)
}

// GetMission handles GET /api/missions/{id}
func (h *MissionHandler) GetMission(w http.ResponseWriter, r *http.Request) {
	mission, err := h.service.GetMission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mission)
}

// CreateMission handles POST /api/missions/
func (h *MissionHandler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var input service.CreateMissionInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	mission, err := h.service.CreateMission(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mission)
}

// UpdateProgress handles PUT /api/missions/{id}/progress?progress_increment=
func (h *MissionHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	increment, ok := httputil.QueryInt(w, r, "progress_increment", 1)
	if !ok {
		return
	}
	progress, err := h.service.AdvanceProgress(r.Context(), chi.URLParam(r, "id"), increment)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progressResponse{
		Message:     "Mission progress updated",
		NewProgress: progress,
	})
}

// SpinRoulette handles POST /api/missions/roulette/spin?user_id=
func (h *MissionHandler) SpinRoulette(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequiredQuery(w, r, "user_id")
	if !ok {
		return
	}
	spin, err := h.service.SpinRoulette(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, spin)
}

// UserProgress handles GET /api/missions/user/{user_id}/progress
func (h *MissionHandler) UserProgress(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.UserProgress(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// --- Meal plans ---

type MealPlanHandler struct {
	service *service.MealPlanService
	logger  *slog.Logger
}

func NewMealPlanHandler(svc *service.MealPlanService, logger *slog.Logger) *MealPlanHandler {
	return &MealPlanHandler{service: svc, logger: logger}
}

type goalsResponse struct {
	Goals []string `json:"goals"`
}

// ListMealPlans handles GET /api/meal-plans/?goal_type=
func (h *MealPlanHandler) ListMealPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListMealPlans(r.Context(), r.URL.Query().Get("goal_type"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plans)
}

// GetMealPlan handles GET /api/meal-plans/{id}
func (h *MealPlanHandler) GetMealPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetMealPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

// GetByGoal handles GET /api/meal-plans/goal/{goal_type}
func (h *MealPlanHandler) GetByGoal(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetByGoal(r.Context(), chi.URLParam(r, "goal_type"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

// CreateMealPlan handles POST /api/meal-plans/
func (h *MealPlanHandler) CreateMealPlan(w http.ResponseWriter, r *http.Request) {
	var input service.CreateMealPlanInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	plan, err := h.service.CreateMealPlan(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

// Ingredients handles GET /api/meal-plans/ingredients/{goal_type}
func (h *MealPlanHandler) Ingredients(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Ingredients(r.Context(), chi.URLParam(r, "goal_type"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// AvailableGoals handles GET /api/meal-plans/goals/available
func (h *MealPlanHandler) AvailableGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.AvailableGoals(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, goalsResponse{Goals: goals})
}

// --- Recommendations ---

type RecommendationHandler struct {
	service *service.RecommendationService
	logger  *slog.Logger
}

func NewRecommendationHandler(svc *service.RecommendationService, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{service: svc, logger: logger}
}

// SmartTips handles GET /api/recommendations/smart-tips?active_only=
func (h *RecommendationHandler) SmartTips(w http.ResponseWriter, r *http.Request) {
	activeOnly, ok := httputil.QueryBool(w, r, "active_only", true)
	if !ok {
		return
	}
	tips, err := h.service.SmartTips(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tips)
}

// CreateSmartTip handles POST /api/recommendations/smart-tips
func (h *RecommendationHandler) CreateSmartTip(w http.ResponseWriter, r *http.Request) {
	var input service.CreateSmartTipInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	tip, err := h.service.CreateSmartTip(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tip)
}

// RefillAlerts handles GET /api/recommendations/refill-alerts/{user_id}
func (h *RecommendationHandler) RefillAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.RefillAlerts(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

// CreateRefillAlert handles POST /api/recommendations/refill-alerts
func (h *RecommendationHandler) CreateRefillAlert(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRefillAlertInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	alert, err := h.service.CreateRefillAlert(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// ExclusiveDrops handles GET /api/recommendations/exclusive-drops?user_id=
func (h *RecommendationHandler) ExclusiveDrops(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequiredQuery(w, r, "user_id")
	if !ok {
		return
	}
	drops, err := h.service.ExclusiveDrops(userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, drops)
}

// Personalized handles GET /api/recommendations/personalized/{user_id}
func (h *RecommendationHandler) Personalized(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Personalized(chi.URLParam(r, "user_id")))
}
