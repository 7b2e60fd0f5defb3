package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"carvault/internal/auth"
	"carvault/internal/repository/sqlite"
	"carvault/internal/service"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	carRepo := sqlite.NewCarRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, carRepo.Init(ctx))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tokens := auth.NewIssuer(testSecret, time.Hour)
	handler := NewHandler(
		service.NewUserService(userRepo),
		service.NewCarService(carRepo),
		tokens,
		nil,
		"",
		"car-images",
		logger,
	)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func registerUser(t *testing.T, router *gin.Engine, email string) (userID, token string) {
	t.Helper()
	rec, body := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"fullname": "Test User",
		"email":    email,
		"password": "hunter2-long",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["userId"].(string), body["token"].(string)
}

func TestRegister(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"fullname": "Ada Lovelace",
		"email":    "ada@example.com",
		"password": "analytical-engine",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, http.StatusOK, body["status"])
	require.NotEmpty(t, body["token"])
	require.NotEmpty(t, body["userId"])

	newUser := body["newUser"].(map[string]any)
	require.Equal(t, "ada@example.com", newUser["email"])
	require.NotContains(t, newUser, "password")
	require.NotContains(t, newUser, "passwordHash")
	require.NotContains(t, rec.Body.String(), "analytical-engine")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "dup@example.com")

	rec, body := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"fullname": "Someone Else",
		"email":    "dup@example.com",
		"password": "other-password",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.EqualValues(t, http.StatusConflict, body["status"])
}

func TestRegister_MissingFields(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"email": "no-name@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignin(t *testing.T) {
	router := newTestRouter(t)
	userID, _ := registerUser(t, router, "grace@example.com")

	rec, body := doJSON(t, router, http.MethodPost, "/api/signin", "", gin.H{
		"email":    "grace@example.com",
		"password": "hunter2-long",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID, body["userId"])
	require.NotEmpty(t, body["token"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/signin", "", gin.H{
		"email":    "grace@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/signin", "", gin.H{
		"email":    "ghost@example.com",
		"password": "whatever",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerUser(t, router, "authed@example.com")

	// no header
	rec, body := doJSON(t, router, http.MethodGet, "/api/cars?userId=x", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.EqualValues(t, http.StatusUnauthorized, body["status"])

	// header without a space after the scheme
	req := httptest.NewRequest(http.MethodGet, "/api/cars?userId=x", nil)
	req.Header.Set("Authorization", "Bearer"+token)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusUnauthorized, rec2.Code)

	// token signed with a different secret
	foreign, err := auth.NewIssuer("other-secret", time.Hour).Issue("someone")
	require.NoError(t, err)
	rec, _ = doJSON(t, router, http.MethodGet, "/api/cars?userId=x", foreign, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// expired token signed with the right secret
	expired, err := auth.NewIssuer(testSecret, -time.Minute).Issue("someone")
	require.NoError(t, err)
	rec, _ = doJSON(t, router, http.MethodGet, "/api/cars?userId=x", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCarLifecycle(t *testing.T) {
	router := newTestRouter(t)
	userID, token := registerUser(t, router, "owner@example.com")

	rec, body := doJSON(t, router, http.MethodPost, "/api/car", token, gin.H{
		"userId": userID,
		"car": gin.H{
			"title":       "Model 3",
			"description": "Daily driver",
			"company":     "Tesla",
			"carType":     "Electric",
			"dealer":      "Downtown",
			"tags":        []string{"electric", "sedan"},
			"images":      []string{"https://img/1.jpg", "https://img/2.jpg"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newCar := body["newCar"].(map[string]any)
	carID := newCar["id"].(string)
	require.Equal(t, "Model 3", newCar["title"])
	require.Equal(t, []any{"https://img/1.jpg", "https://img/2.jpg"}, newCar["images"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/car?id="+carID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	car := body["car"].(map[string]any)
	require.Equal(t, carID, car["id"])
	require.Equal(t, userID, car["userId"])

	rec, body = doJSON(t, router, http.MethodPut, "/api/car", token, gin.H{
		"id": carID,
		"car": gin.H{
			"title": "Model 3 Performance",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := body["updatedCar"].(map[string]any)
	require.Equal(t, "Model 3 Performance", updated["title"])
	require.Equal(t, "Daily driver", updated["description"], "unsent fields keep their value")

	rec, body = doJSON(t, router, http.MethodDelete, "/api/car?id="+carID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Car deleted successfully", body["message"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/car?id="+carID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.EqualValues(t, http.StatusNotFound, body["status"])
}

func TestCreateCar_SingleImageNormalized(t *testing.T) {
	router := newTestRouter(t)
	userID, token := registerUser(t, router, "single@example.com")

	rec, body := doJSON(t, router, http.MethodPost, "/api/car", token, gin.H{
		"userId": userID,
		"car": gin.H{
			"title":  "One pic",
			"images": "https://img/only.jpg",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newCar := body["newCar"].(map[string]any)
	require.Equal(t, []any{"https://img/only.jpg"}, newCar["images"])
}

func TestCreateCar_MissingTitle(t *testing.T) {
	router := newTestRouter(t)
	userID, token := registerUser(t, router, "notitle@example.com")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/car", token, gin.H{
		"userId": userID,
		"car":    gin.H{"description": "no title here"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCar_UserIDMismatch(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerUser(t, router, "mismatch@example.com")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/car", token, gin.H{
		"userId": "someone-else",
		"car":    gin.H{"title": "Hijack"},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCars_OwnerIsolation(t *testing.T) {
	router := newTestRouter(t)
	aliceID, aliceToken := registerUser(t, router, "alice@example.com")
	_, bobToken := registerUser(t, router, "bob@example.com")

	_, body := doJSON(t, router, http.MethodPost, "/api/car", aliceToken, gin.H{
		"userId": aliceID,
		"car":    gin.H{"title": "Alice's car"},
	})
	carID := body["newCar"].(map[string]any)["id"].(string)

	// another authenticated user cannot read, update or delete it
	rec, _ := doJSON(t, router, http.MethodGet, "/api/car?id="+carID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPut, "/api/car", bobToken, gin.H{
		"id":  carID,
		"car": gin.H{"title": "Bob's now"},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/car?id="+carID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/api/car?id="+carID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Alice's car", body["car"].(map[string]any)["title"])
}

func TestListCars(t *testing.T) {
	router := newTestRouter(t)
	userID, token := registerUser(t, router, "lister@example.com")

	for i := 0; i < 13; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/car", token, gin.H{
			"userId": userID,
			"car":    gin.H{"title": fmt.Sprintf("Car %02d", i), "tags": []string{"Sedan"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	require.EqualValues(t, 13, data["totalCount"])
	require.EqualValues(t, 3, data["totalPages"])
	require.EqualValues(t, 1, data["page"])
	require.Len(t, data["cars"], 6)

	rec, body = doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID+"&page=3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	require.Len(t, data["cars"], 1)

	rec, body = doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID+"&page=9", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	require.Empty(t, data["cars"])

	// tag search is case-insensitive
	rec, body = doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID+"&searchTerm=sedan", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	require.EqualValues(t, 13, data["totalCount"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID+"&searchTerm=Car%2003", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	require.EqualValues(t, 1, data["totalCount"])
}

func TestListCars_Validation(t *testing.T) {
	router := newTestRouter(t)
	userID, token := registerUser(t, router, "validate@example.com")

	rec, body := doJSON(t, router, http.MethodGet, "/api/cars", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.EqualValues(t, http.StatusBadRequest, body["status"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/cars?userId=not-me", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/cars?userId="+userID+"&limit=abc", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
