package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-funnel/internal/models"
	"chat-funnel/internal/storetest"
	"chat-funnel/pkg/logger"
)

const secret = "test-secret"

func newService(t *testing.T) *Service {
	t.Helper()
	db := storetest.New(t)
	svc := NewService(NewRepository(db), secret, logger.Nop())
	require.NoError(t, svc.EnsureOperator(context.Background(), "admin", "hunter22"))
	return svc
}

func TestEnsureOperatorKeepsExistingPassword(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.EnsureOperator(ctx, "admin", "changed"))

	_, err := svc.Login(ctx, "admin", "changed")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "admin", "hunter22")
	assert.NoError(t, err)

	assert.NoError(t, svc.EnsureOperator(ctx, "", ""))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login(ctx, "admin", "hunter22")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["username"])
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	op := &models.Operator{Username: "analyst", Password: "pw"}
	require.NoError(t, svc.Register(ctx, op))
	assert.NotEqual(t, "pw", op.Password)

	assert.ErrorIs(t, svc.Register(ctx, &models.Operator{Username: "analyst", Password: "x"}), ErrUsernameTaken)
	assert.Error(t, svc.Register(ctx, &models.Operator{Username: " ", Password: "x"}))
}

func protected(t *testing.T) http.Handler {
	return JWTMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(OperatorFrom(r.Context()).Username))
	}))
}

func TestJWTMiddleware(t *testing.T) {
	svc := newService(t)
	token, err := svc.Login(context.Background(), "admin", "hunter22")
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": 1,
		"username":    "admin",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": 1,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(t).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "admin", rec.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	h := NewHandler(newService(t), logger.Nop(), false)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"username":"admin","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["token"])

	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"admin","password":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`nope`).Code)
}
