package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func TestOpen_LoadsRecords(t *testing.T) {
	var gotAuth, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotHeader = r.Header.Get("X-Tenant")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"users":[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := Open(ctx, &models.APIConnection{
		URL:       srv.URL + "/v1/users",
		Method:    "GET",
		Headers:   map[string]string{"X-Tenant": "acme"},
		AuthToken: "secret",
		DataPath:  "data.users",
	}, datasource.Options{HTTPClient: srv.Client()})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "acme", gotHeader)

	info, err := c.TestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "API connection successful", info.Message)
	assert.Equal(t, []string{"users"}, info.Details["endpoints"])

	schema, err := c.DiscoverSchema(ctx)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "users", schema.Tables[0].TableName)
	assert.Equal(t, int64(2), schema.RecordCount)

	result, err := c.Query(ctx, "SELECT name FROM users ORDER BY id DESC", 10)
	require.NoError(t, err)
	assert.Equal(t, "Grace", result.Rows[0]["name"])
}

func TestOpen_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), &models.APIConnection{URL: srv.URL}, datasource.Options{HTTPClient: srv.Client()})
	assert.ErrorContains(t, err, "status 401")
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), &models.APIConnection{}, datasource.Options{})
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"https://api.example.com/v2/Orders/":  "orders",
		"https://api.example.com/":            "data",
		"https://api.example.com/line-items":  "line_items",
		"https://api.example.com/report.json": "report_json",
	}
	for in, want := range tests {
		assert.Equal(t, want, TableName(in), in)
	}
}
