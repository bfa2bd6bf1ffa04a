package emergency

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/testdb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLookup_BuiltInDefaults(t *testing.T) {
	dir := NewDirectory(testdb.Open(t, &Config{}))
	ctx := context.Background()

	tests := []struct {
		country string
		want    Numbers
	}{
		{"CO", Numbers{"123", "127", "123"}},
		{" co ", Numbers{"123", "127", "123"}},
		{"Colombia", Numbers{"123", "127", "123"}},
		{"+57", Numbers{"123", "127", "123"}},
		{"MX", Numbers{"911", "911", "911"}},
		{"México", Numbers{"911", "911", "911"}},
		{"mexico", Numbers{"911", "911", "911"}},
		{"AR", Numbers{"123", "123", "123"}},
		{"", Numbers{"123", "123", "123"}},
	}
	for _, tt := range tests {
		got, err := dir.Lookup(ctx, tt.country)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.country)
	}
}

func TestLookup_RowOverridesDefaults(t *testing.T) {
	dir := NewDirectory(testdb.Open(t, &Config{}))
	ctx := context.Background()

	require.NoError(t, dir.DB.Create(&Config{Country: "CO", Police: "112", Transit: "#767", Emergency: "112"}).Error)
	require.NoError(t, dir.DB.Create(&Config{Country: "PE", Police: "105", Transit: "", Emergency: "116"}).Error)

	got, err := dir.Lookup(ctx, "co")
	require.NoError(t, err)
	assert.Equal(t, Numbers{"112", "#767", "112"}, got)

	got, err = dir.Lookup(ctx, "PE")
	require.NoError(t, err)
	assert.Equal(t, Numbers{"105", "123", "116"}, got, "blank column degrades to 123")

	// "COLOMBIA" has no row of its own, the exact-key lookup misses and the default applies
	got, err = dir.Lookup(ctx, "Colombia")
	require.NoError(t, err)
	assert.Equal(t, Numbers{"123", "127", "123"}, got)
}

func TestHandler_UpsertAndDelete(t *testing.T) {
	dir := NewDirectory(testdb.Open(t, &Config{}))
	router := gin.New()
	NewHandler(dir, zap.NewNop()).RegisterAdminRoutes(router)

	put := func(country, body string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPut, "/emergency-configs/"+country, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, put("ec", `{"police":"101","transit":"103","emergency":"911"}`))
	assert.Equal(t, http.StatusOK, put("EC", `{"police":"101","transit":"104","emergency":"911"}`))
	assert.Equal(t, http.StatusBadRequest, put("EC", `{"police":"101"}`))

	got, err := dir.Lookup(context.Background(), "Ec")
	require.NoError(t, err)
	assert.Equal(t, Numbers{"101", "104", "911"}, got)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/emergency-configs/ec", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/emergency-configs/ec", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
