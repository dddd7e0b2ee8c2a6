package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmedicaid/claimlens/internal/aggregates"
	"github.com/openmedicaid/claimlens/internal/config"
	"github.com/openmedicaid/claimlens/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInsightsCommand(t *testing.T) {
	out, err := run(t, "insights", "--category", "geographic")
	require.NoError(t, err)

	var insights []models.Insight
	require.NoError(t, json.Unmarshal([]byte(out), &insights))
	for _, in := range insights {
		assert.Equal(t, models.CategoryGeographic, in.Category)
	}

	_, err = run(t, "insights", "--category", "weather")
	assert.Error(t, err)
}

func TestOutliersCommand(t *testing.T) {
	out, err := run(t, "outliers", "--population", "provider_spending", "--curated", "--limit", "3")
	require.NoError(t, err)

	var entries []models.OutlierEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Curated)

	_, err = run(t, "outliers", "--population", "unknown")
	assert.Error(t, err)
}

func TestFederalCommand(t *testing.T) {
	out, err := run(t, "federal")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_states": 51`)
}

func TestReportCommand(t *testing.T) {
	out, err := run(t, "report")
	require.NoError(t, err)

	var r struct {
		ID       string            `json:"id"`
		Insights []json.RawMessage `json:"insights"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.NotEmpty(t, r.ID)
	assert.NotEmpty(t, r.Insights)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("CLAIMLENS_LOGGING_LEVEL", "loud")
	_, err := run(t, "report")
	assert.Error(t, err)
}

func TestOpenCacheNone(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.Type = config.CacheNone

	c, release, err := openCache(context.Background(), cfg)
	require.NoError(t, err)
	defer release()
	assert.Nil(t, c)
}

func TestFederalFromHTTPSource(t *testing.T) {
	snap, err := aggregates.Seed()
	require.NoError(t, err)
	body, err := json.Marshal(snap)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer server.Close()

	t.Setenv("CLAIMLENS_SOURCE_TYPE", config.SourceHTTP)
	t.Setenv("CLAIMLENS_SOURCE_URL", server.URL)

	out, err := run(t, "federal")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_states": 51`)
}
