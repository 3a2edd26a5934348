// Package httpapi exposes the rental service over HTTP.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/filmbay/rental-service/internal/app"
	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/metrics"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/internal/httputil"
	"github.com/filmbay/rental-service/internal/middleware"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Handler serves the v1 API.
type Handler struct {
	app    *app.Application
	issuer *auth.Issuer
	log    *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(application *app.Application, issuer *auth.Issuer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{app: application, issuer: issuer, log: log}
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/users", h.registerUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id:[0-9]+}", h.getUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}/role", h.changeUserRole).Methods(http.MethodPatch)

	v1.HandleFunc("/auth/token", h.issueToken).Methods(http.MethodPost)

	v1.HandleFunc("/movies", h.createMovie).Methods(http.MethodPost)
	v1.HandleFunc("/movies", h.listMovies).Methods(http.MethodGet)
	v1.HandleFunc("/movies/{id:[0-9]+}", h.getMovie).Methods(http.MethodGet)
	v1.HandleFunc("/movies/{id:[0-9]+}", h.updateMovie).Methods(http.MethodPatch)
	v1.HandleFunc("/movies/{id:[0-9]+}", h.deleteMovie).Methods(http.MethodDelete)
	v1.HandleFunc("/movies/{id:[0-9]+}/interaction", h.recordInteraction).Methods(http.MethodPost)
	v1.HandleFunc("/movies/{id:[0-9]+}/interactions", h.listInteractions).Methods(http.MethodGet)

	v1.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id:[0-9]+}", h.returnOrder).Methods(http.MethodPatch)

	v1.HandleFunc("/system/health", h.health).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("internal error", err)
	}
	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
}

// caller extracts the authenticated caller or writes a 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "authentication required")
		return auth.Caller{}, false
	}
	return caller, true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errors.BadRequest("invalid id in path")
	}
	return id, nil
}

// --- users ---

type registerUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, err := h.app.Users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	u, err := h.app.Users.Get(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

type changeRoleRequest struct {
	Value string `json:"value"`
}

func (h *Handler) changeUserRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req changeRoleRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, err := h.app.Users.ChangeRole(r.Context(), caller, id, req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// --- auth ---

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, err := h.app.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, expiresAt, err := h.issuer.Issue(u)
	if err != nil {
		h.writeError(w, errors.Internal("issue token", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}

// --- movies ---

type createMovieRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Stock        int      `json:"stock"`
	RentalPrice  float64  `json:"rental_price"`
	SalePrice    float64  `json:"sale_price"`
	Availability bool     `json:"availability"`
	Images       []string `json:"images"`
}

func (h *Handler) createMovie(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createMovieRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	m, err := h.app.Movies.Create(r.Context(), caller, movie.Movie{
		Title:        req.Title,
		Description:  req.Description,
		Stock:        req.Stock,
		RentalPrice:  req.RentalPrice,
		SalePrice:    req.SalePrice,
		Availability: req.Availability,
		Images:       req.Images,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) getMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	m, err := h.app.Movies.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) listMovies(w http.ResponseWriter, r *http.Request) {
	// the list is public; anonymous callers browse available titles
	caller, _ := middleware.CallerFromContext(r.Context())

	q := movie.ListQuery{
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
		Title: r.URL.Query().Get("title"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		q.Offset, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("availability"); v != "" {
		avail, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, errors.BadRequest("availability must be a boolean"))
			return
		}
		q.Availability = &avail
	}

	list, err := h.app.Movies.List(r.Context(), caller, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"movies": list, "count": len(list)})
}

type updateMovieRequest struct {
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
}

func (h *Handler) updateMovie(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req updateMovieRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	m, err := h.app.Movies.UpdateField(r.Context(), caller, id, req.FieldName, req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMovie(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	softDisabled, err := h.app.Movies.Delete(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if softDisabled {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "movie is referenced by existing orders; marked unavailable instead of deleted",
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "movie deleted"})
}

// --- interactions ---

type interactionRequest struct {
	Type string `json:"type"`
}

func (h *Handler) recordInteraction(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req interactionRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	in, err := h.app.Interactions.Record(r.Context(), caller, id, req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, in)
}

func (h *Handler) listInteractions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	list, err := h.app.Interactions.ForMovie(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"interactions": list, "count": len(list)})
}

// --- orders ---

type placeOrderRequest struct {
	MovieID int64  `json:"movie_id"`
	Type    string `json:"order_type"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	o, err := h.app.Orders.Place(r.Context(), caller, req.MovieID, req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

type returnOrderRequest struct {
	ReturnedDate string `json:"returned_date"`
}

func (h *Handler) returnOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req returnOrderRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	returned := time.Now().UTC()
	if req.ReturnedDate != "" {
		returned, err = time.Parse("2006-01-02", req.ReturnedDate)
		if err != nil {
			h.writeError(w, errors.BadRequest("returned_date must be YYYY-MM-DD"))
			return
		}
	}

	o, err := h.app.Orders.Return(r.Context(), caller, id, returned)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	userID := caller.ID
	if v := r.URL.Query().Get("user_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, errors.BadRequest("user_id must be an integer"))
			return
		}
		userID = parsed
	}

	list, err := h.app.Orders.ListForUser(r.Context(), caller, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": list, "count": len(list)})
}

// --- system ---

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.app.Health(r.Context()))
}
