package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"x"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, getJSON(http.DefaultClient, srv.URL, &out))
	assert.Equal(t, "x", out.Name)
}

func TestGetJSONNonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out map[string]string
	err := getJSON(http.DefaultClient, srv.URL, &out)
	assert.Error(t, err)
}

func TestGetJSONUnreachableURLErrors(t *testing.T) {
	var out map[string]string
	err := getJSON(http.DefaultClient, "http://127.0.0.1:1", &out)
	assert.Error(t, err)
}
