package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/anishghanwat/StoreMyBottleApp/internal/cellar"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/ctxkeys"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

// setupTest wires the package-level handler state against a sqlmock
// database and returns a router that fakes an authenticated identity.
func setupTest(t *testing.T, userID, venueID string) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	log := logging.NewLogger()
	log.SetOutput(io.Discard)

	eng := cellar.NewEngine(mockDB, log, cellar.DefaultConfig())
	Init(mockDB, log, eng, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyUserID), userID)
		c.Set(string(ctxkeys.KeyVenueID), venueID)
		c.Next()
	})
	return mock, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d (body: %s)", want, w.Code, w.Body.String())
	}
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}
