package powerbi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportIDs_FiltersUsageMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, groupURL("/reports"), r.URL.Path)
		fmt.Fprint(w, `{"value":[
			{"id":"r1","name":"Sales"},
			{"id":"r2","name":"Usage Metrics Report"},
			{"id":"r3","name":"Finance"},
			{"id":"r4","name":"usage metrics report"}
		]}`)
	})

	ids, err := c.ReportIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"Sales":                "r1",
		"Finance":              "r3",
		"usage metrics report": "r4",
	}, ids)
}

func TestReports_Raw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"r2","name":"Usage Metrics Report","datasetId":"d9","webUrl":"https://app.powerbi.com/r2"}]}`)
	})

	reports, err := c.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, Report{ID: "r2", Name: "Usage Metrics Report", DatasetID: "d9", WebURL: "https://app.powerbi.com/r2"}, reports[0])
}

func TestDatasetIDs_FiltersUsageMetricsModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, groupURL("/datasets"), r.URL.Path)
		fmt.Fprint(w, `{"value":[
			{"id":"d1","name":"Sales"},
			{"id":"d2","name":"Report Usage Metrics Model"},
			{"id":"d3","name":"Usage Metrics Report"},
			{"id":"d4","name":"Reports usage metrics (UM)"}
		]}`)
	})

	ids, err := c.DatasetIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"Sales":                      "d1",
		"Reports usage metrics (UM)": "d4",
	}, ids)
}

func TestDatasets_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"PowerBINotAuthorizedException"}}`)
	})

	_, err := c.DatasetIDs(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "retrieve datasets", apiErr.Op)
	require.Contains(t, err.Error(), "PowerBINotAuthorizedException")
}
