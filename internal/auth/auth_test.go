package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfeed/internal/db/memorystorage"
	"linkfeed/internal/logger"
	"linkfeed/internal/models"
)

var testSecret = []byte("test signing secret")

func newTestAuth(t *testing.T, tokenTTL time.Duration) (*Auth, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	return New(db, testSecret, tokenTTL), db
}

func TestIssueAndVerifyToken(t *testing.T) {
	authService, _ := newTestAuth(t, 0)

	token, err := authService.IssueToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := authService.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestVerifyTokenFailures(t *testing.T) {
	authService, _ := newTestAuth(t, 0)

	foreignAuth := New(nil, []byte("some other secret"), 0)
	foreignToken, err := foreignAuth.IssueToken(42)
	require.NoError(t, err)

	expiringAuth := New(nil, testSecret, time.Nanosecond)
	expiredToken, err := expiringAuth.IssueToken(42)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	testCases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "wrong signing key", token: foreignToken},
		{name: "expired", token: expiredToken},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := authService.VerifyToken(testCase.token)
			assert.ErrorIs(t, err, models.ErrInvalidToken)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.NoError(t, CheckPassword(hash, "correct horse battery staple"))

	err = CheckPassword(hash, "wrong password")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestWithUser(t *testing.T) {
	authService, db := newTestAuth(t, 0)

	usr, err := db.CreateUser(context.Background(), "Alice", "alice@example.com", "hash")
	require.NoError(t, err)

	validToken, err := authService.IssueToken(usr.ID)
	require.NoError(t, err)

	unknownUserToken, err := authService.IssueToken(usr.ID + 1000)
	require.NoError(t, err)

	testCases := []struct {
		name          string
		authorization string
		expectedUser  *models.User
	}{
		{name: "no header", authorization: "", expectedUser: nil},
		{name: "garbage token", authorization: "Bearer garbage", expectedUser: nil},
		{name: "header without token", authorization: "Bearer", expectedUser: nil},
		{name: "token for missing user", authorization: "Bearer " + unknownUserToken, expectedUser: nil},
		{name: "valid token", authorization: "Bearer " + validToken, expectedUser: usr},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var userSeen *models.User
			next := http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
				userSeen = UserFromContext(request.Context())
				response.WriteHeader(http.StatusOK)
			})

			request := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if testCase.authorization != "" {
				request.Header.Set("Authorization", testCase.authorization)
			}
			recorder := httptest.NewRecorder()

			authService.WithUser(next).ServeHTTP(recorder, request)

			// Invalid credentials degrade to "no user", never a failed request.
			assert.Equal(t, http.StatusOK, recorder.Code)
			if testCase.expectedUser == nil {
				assert.Nil(t, userSeen)
			} else {
				require.NotNil(t, userSeen)
				assert.Equal(t, testCase.expectedUser.ID, userSeen.ID)
				assert.Equal(t, testCase.expectedUser.Email, userSeen.Email)
			}
		})
	}
}
