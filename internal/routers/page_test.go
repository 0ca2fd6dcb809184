package routers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

func TestPageVariants(t *testing.T) {
	for _, sidebar := range []bool{false, true} {
		e := echo.New()
		require.NoError(t, RegisterPageRoutes(e.Group(""), PageConfig{DefaultModel: "m1", SettingsSidebar: sidebar}))
		srv := httptest.NewServer(e)
		t.Cleanup(srv.Close)

		res, body := getBody(t, srv.URL+"/")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, `data-default-model="m1"`)
		assert.Contains(t, body, `/static/script.js`)
		assert.Equal(t, sidebar, strings.Contains(body, `id="settings"`))
	}
}

func TestStaticScript(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterPageRoutes(e.Group(""), PageConfig{}))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	res, body := getBody(t, srv.URL+"/static/script.js")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `fetch("/api/chat"`)
	// a request that fails before streaming drops its user turn
	assert.Contains(t, body, `messages.pop()`)

	res, _ = getBody(t, srv.URL+"/static/missing.js")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
