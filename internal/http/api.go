package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carvault/internal/auth"
	"carvault/internal/domain"
	"carvault/internal/service"
	"carvault/internal/storage"
)

const userIDKey = "userID"

// presigned image links stay valid long enough for a page render
const imageURLTTL = 15 * time.Minute

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	cars      service.CarService
	tokens    *auth.Issuer
	storage   storage.Service
	bucket    string
	keyPrefix string
	logger    *logrus.Logger
}

func NewHandler(users service.UserService, cars service.CarService, tokens *auth.Issuer, store storage.Service, bucket, keyPrefix string, logger *logrus.Logger) *Handler {
	return &Handler{
		users:     users,
		cars:      cars,
		tokens:    tokens,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/signin", h.signin)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("", h.requireAuth)
		{
			authed.POST("/car", h.createCar)
			authed.GET("/car", h.getCar)
			authed.PUT("/car", h.updateCar)
			authed.DELETE("/car", h.deleteCar)
			authed.GET("/car/images", h.imageURL)
			authed.GET("/cars", h.listCars)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}

// requireAuth validates the Authorization header and stashes the token's
// user id for the downstream handler.
func (h *Handler) requireAuth(c *gin.Context) {
	claims, err := h.tokens.ParseBearer(c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, http.StatusUnauthorized, err.Error())
		c.Abort()
		return
	}
	c.Set(userIDKey, claims.UserID)
	c.Next()
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// respond injects the status field every response body carries, mirroring
// the actual HTTP status code.
func respond(c *gin.Context, status int, body gin.H) {
	body["status"] = status
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, gin.H{"message": message})
}

// respondServiceError maps the service error taxonomy onto HTTP status codes.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var validation *service.ValidationError
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrCarNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.As(err, &validation):
		respondError(c, http.StatusBadRequest, validation.Msg)
	default:
		h.logger.WithError(err).Error("internal error")
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

type registerRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Fullname, req.Email, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"message": "User registered successfully",
		"newUser": userToResponse(user),
		"token":   token,
		"userId":  user.ID,
	})
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"userId":  user.ID,
	})
}

// imageList accepts either a single image reference or a sequence of them,
// always normalizing to a sequence.
type imageList []string

func (l *imageList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = imageList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("images must be a string or an array of strings")
	}
	*l = imageList(many)
	return nil
}

type carPayload struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Company     *string   `json:"company"`
	CarType     *string   `json:"carType"`
	Dealer      *string   `json:"dealer"`
	Tags        []string  `json:"tags"`
	Images      imageList `json:"images"`
}

type createCarRequest struct {
	Car    carPayload `json:"car"`
	UserID string     `json:"userId"`
}

func (h *Handler) createCar(c *gin.Context) {
	var req createCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	owner := currentUserID(c)
	if req.UserID != "" && req.UserID != owner {
		respondError(c, http.StatusForbidden, "userId does not match the authenticated user")
		return
	}

	images, err := h.resolveImages(c, owner, req.Car.Images)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	input := service.CarInput{
		Title:       strValue(req.Car.Title),
		Description: strValue(req.Car.Description),
		Company:     strValue(req.Car.Company),
		CarType:     strValue(req.Car.CarType),
		Dealer:      strValue(req.Car.Dealer),
		Tags:        req.Car.Tags,
		Images:      images,
	}

	car, err := h.cars.Create(c.Request.Context(), owner, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"newCar": carToResponse(car)})
}

func (h *Handler) getCar(c *gin.Context) {
	owner := currentUserID(c)
	if reqUser := c.Query("userId"); reqUser != "" && reqUser != owner {
		respondError(c, http.StatusForbidden, "userId does not match the authenticated user")
		return
	}

	car, err := h.cars.Get(c.Request.Context(), owner, c.Query("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"car": carToResponse(car)})
}

type updateCarRequest struct {
	ID  string     `json:"id"`
	Car carPayload `json:"car"`
}

func (h *Handler) updateCar(c *gin.Context) {
	var req updateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	owner := currentUserID(c)

	patch := service.CarPatch{
		Title:       req.Car.Title,
		Description: req.Car.Description,
		Company:     req.Car.Company,
		CarType:     req.Car.CarType,
		Dealer:      req.Car.Dealer,
		Tags:        req.Car.Tags,
	}
	if req.Car.Images != nil {
		images, err := h.resolveImages(c, owner, req.Car.Images)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		patch.Images = images
	}

	car, err := h.cars.Update(c.Request.Context(), owner, req.ID, patch)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"updatedCar": carToResponse(car)})
}

func (h *Handler) deleteCar(c *gin.Context) {
	owner := currentUserID(c)
	id := c.Query("id")

	car, err := h.cars.Get(c.Request.Context(), owner, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	// remote image cleanup is best-effort; a failed delete surfaces as a warning
	var warnings []string
	if h.storage != nil && h.bucket != "" {
		for _, image := range car.Images {
			key, err := extractObjectKey(image, h.bucket)
			if err != nil {
				continue
			}
			if err := h.storage.DeletePrefix(c.Request.Context(), h.bucket, key); err != nil {
				warnings = append(warnings, fmt.Sprintf("delete image %s: %v", key, err))
			}
		}
	}

	if err := h.cars.Delete(c.Request.Context(), owner, id); err != nil {
		h.respondServiceError(c, err)
		return
	}

	body := gin.H{"message": "Car deleted successfully"}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	respond(c, http.StatusOK, body)
}

func (h *Handler) listCars(c *gin.Context) {
	owner := currentUserID(c)
	reqUser := c.Query("userId")
	if reqUser == "" {
		respondError(c, http.StatusBadRequest, "User ID is missing.")
		return
	}
	if reqUser != owner {
		respondError(c, http.StatusForbidden, "userId does not match the authenticated user")
		return
	}

	limit, err := intQuery(c, "limit", 6)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.cars.List(c.Request.Context(), owner, c.Query("searchTerm"), page, limit)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	cars := make([]CarResponse, len(result.Cars))
	for i := range result.Cars {
		cars[i] = carToResponse(&result.Cars[i])
	}

	respond(c, http.StatusOK, gin.H{
		"data": gin.H{
			"cars":       cars,
			"totalCount": result.TotalCount,
			"totalPages": result.TotalPages,
			"page":       result.Page,
		},
	})
}

func (h *Handler) imageURL(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		respondError(c, http.StatusBadRequest, "storage service not configured")
		return
	}

	key := strings.Trim(c.Query("key"), "/")
	if key == "" {
		respondError(c, http.StatusBadRequest, "key is required")
		return
	}
	// image keys embed the owner, so one user cannot sign another's objects
	ownerPrefix := fmt.Sprintf("%s/%s/", strings.Trim(h.keyPrefix, "/"), currentUserID(c))
	if !strings.HasPrefix(key, ownerPrefix) {
		respondError(c, http.StatusForbidden, "key does not belong to the authenticated user")
		return
	}

	url, err := h.storage.PresignGet(c.Request.Context(), h.bucket, key, imageURLTTL)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"url": url})
}

// resolveImages uploads inline data-URI images to object storage and swaps
// them for their stored locations. Plain URLs pass through untouched, as does
// everything when no bucket is configured.
func (h *Handler) resolveImages(c *gin.Context, ownerID string, images []string) ([]string, error) {
	if h.storage == nil || h.bucket == "" {
		return images, nil
	}

	resolved := make([]string, len(images))
	for i, image := range images {
		contentType, data, ok := storage.ParseDataURI(image)
		if !ok {
			resolved[i] = image
			continue
		}
		key := fmt.Sprintf("%s/%s/%s", strings.Trim(h.keyPrefix, "/"), ownerID, uuid.NewString())
		location, err := h.storage.PutObject(c.Request.Context(), h.bucket, key, contentType, data)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		resolved[i] = location
	}
	return resolved, nil
}

type UserResponse struct {
	ID        string `json:"id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type CarResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Company     string   `json:"company"`
	CarType     string   `json:"carType"`
	Dealer      string   `json:"dealer"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
	UserID      string   `json:"userId"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Fullname:  user.FullName,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func carToResponse(car *domain.Car) CarResponse {
	return CarResponse{
		ID:          car.ID,
		Title:       car.Title,
		Description: car.Description,
		Company:     car.Company,
		CarType:     car.CarType,
		Dealer:      car.Dealer,
		Tags:        car.Tags,
		Images:      car.Images,
		UserID:      car.UserID,
		CreatedAt:   car.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   car.UpdatedAt.Format(time.RFC3339),
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return value, nil
}

// extractObjectKey pulls the object key out of an "s3://bucket/key" location.
func extractObjectKey(location, bucket string) (string, error) {
	if !strings.HasPrefix(location, "s3://") {
		return "", fmt.Errorf("not an object location")
	}
	rest := strings.TrimPrefix(location, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid object location")
	}
	if bucket != "" && parts[0] != bucket {
		return "", fmt.Errorf("bucket mismatch")
	}
	return strings.TrimPrefix(parts[1], "/"), nil
}
