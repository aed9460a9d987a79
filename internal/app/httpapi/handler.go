// Package httpapi exposes the storefront REST API.
package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	app "github.com/shopstack/storefront/internal/app"
	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/metrics"
	"github.com/shopstack/storefront/internal/app/services/auth"
	"github.com/shopstack/storefront/internal/app/services/catalog"
	"github.com/shopstack/storefront/internal/app/services/orders"
	apperrors "github.com/shopstack/storefront/internal/errors"
	"github.com/shopstack/storefront/internal/httputil"
	"github.com/shopstack/storefront/internal/middleware"
	"github.com/shopstack/storefront/pkg/logger"
)

// Config holds handler-level settings.
type Config struct {
	UploadDir      string
	PayPalClientID string
}

type handler struct {
	app *app.Application
	cfg Config
	log *logger.Logger
}

// NewHandler returns the storefront API router.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}

	h := &handler{app: application, cfg: cfg, log: log}
	authn := middleware.NewAuthenticator(application.Tokens, log)

	authOnly := func(fn http.HandlerFunc) http.Handler {
		return authn.Handler(fn)
	}
	adminOnly := func(fn http.HandlerFunc) http.Handler {
		return authn.Handler(authn.RequireAdmin(fn))
	}

	r := mux.NewRouter()

	r.HandleFunc("/healthcheck", h.healthcheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))),
	).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Users.
	api.HandleFunc("/users", h.register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", h.login).Methods(http.MethodPost)
	api.Handle("/users/profile", authOnly(h.getProfile)).Methods(http.MethodGet)
	api.Handle("/users/profile", authOnly(h.updateProfile)).Methods(http.MethodPut)
	api.Handle("/users", adminOnly(h.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id}", adminOnly(h.deleteUser)).Methods(http.MethodDelete)

	// Products.
	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/top", h.topProducts).Methods(http.MethodGet)
	api.Handle("/products", adminOnly(h.createProduct)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	api.Handle("/products/{id}", adminOnly(h.updateProduct)).Methods(http.MethodPut)
	api.Handle("/products/{id}", adminOnly(h.deleteProduct)).Methods(http.MethodDelete)
	api.Handle("/products/{id}/reviews", authOnly(h.addReview)).Methods(http.MethodPost)

	// Orders. The literal myorders route is registered before the {id} route
	// so it is not captured as an order ID.
	api.Handle("/orders", authOnly(h.placeOrder)).Methods(http.MethodPost)
	api.Handle("/orders", adminOnly(h.listOrders)).Methods(http.MethodGet)
	api.Handle("/orders/myorders", authOnly(h.listMyOrders)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", authOnly(h.getOrder)).Methods(http.MethodGet)
	api.Handle("/orders/{id}/pay", authOnly(h.payOrder)).Methods(http.MethodPut)
	api.Handle("/orders/{id}/deliver", adminOnly(h.deliverOrder)).Methods(http.MethodPut)

	// Misc.
	api.Handle("/upload", adminOnly(h.upload)).Methods(http.MethodPost)
	api.HandleFunc("/config/paypal", h.paypalConfig).Methods(http.MethodGet)

	return r
}

func (h *handler) healthcheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) paypalConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"client_id": h.cfg.PayPalClientID})
}

func identity(r *http.Request) auth.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

// --- users ------------------------------------------------------------------

type authResponse struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	u, token, err := h.app.Auth.Register(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	u, token, err := h.app.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Auth.GetProfile(r.Context(), identity(r).UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileUpdate
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	u, err := h.app.Auth.UpdateProfile(r.Context(), identity(r).UserID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.app.Auth.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Auth.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- products ---------------------------------------------------------------

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	keyword := r.URL.Query().Get("keyword")

	result, err := h.app.Catalog.ListProducts(r.Context(), keyword, page, perPage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) topProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.app.Catalog.TopProducts(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	p, err := h.app.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	p, err := h.app.Catalog.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addReview(w http.ResponseWriter, r *http.Request) {
	var in catalog.ReviewInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}

	reviewer, err := h.app.Auth.GetProfile(r.Context(), identity(r).UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.app.Catalog.AddReview(r.Context(), mux.Vars(r)["id"], reviewer, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// --- orders -----------------------------------------------------------------

func (h *handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceOrderInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	o, err := h.app.Orders.PlaceOrder(r.Context(), identity(r).UserID, in)
	if err != nil {
		if svcErr := apperrors.GetServiceError(err); svcErr != nil && svcErr.Code == apperrors.CodeConflict {
			metrics.RecordStockConflict()
		}
		httputil.WriteError(w, err)
		return
	}
	metrics.RecordOrderPlaced(o.TotalPrice)
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Orders.GetOrder(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PaymentInput
	if err := httputil.DecodeJSON(r.Body, &in); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid request body"))
		return
	}
	o, err := h.app.Orders.MarkPaid(r.Context(), identity(r), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Orders.MarkDelivered(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Orders.ListMyOrders(r.Context(), identity(r).UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Orders.ListOrders(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// --- upload -----------------------------------------------------------------

const maxUploadBytes = 10 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, apperrors.Validation("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteError(w, apperrors.Validation("image file is required"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		httputil.WriteError(w, apperrors.Validation("unsupported image type"))
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		httputil.WriteError(w, apperrors.Internal(err))
		return
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.cfg.UploadDir, name))
	if err != nil {
		httputil.WriteError(w, apperrors.Internal(err))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		httputil.WriteError(w, apperrors.Internal(err))
		return
	}

	h.log.WithField("file", name).Info("image uploaded")
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"image": "/uploads/" + name})
}
