package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/rcresswell/pbi-report/powerbi"
)

const (
	testTenant    = "tenant-1"
	testWorkspace = "ws-1"
	testToken     = "test-token"
	apiPrefix     = "/v1.0/myorg"
	groupPrefix   = apiPrefix + "/groups/" + testWorkspace
)

// isolate points HOME and the working directory at fresh temp dirs and clears
// every PBI_* variable, so no real config or .env leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()

	color.NoColor = true
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	for _, o := range envOverrides {
		t.Setenv(o.key, "")
	}
	return dir
}

// withServer configures the environment to authenticate against a fake token
// endpoint and serve API calls from api.
func withServer(t *testing.T, api http.HandlerFunc) string {
	t.Helper()

	dir := isolate(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+testTenant+"/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3599}`, testToken)
	})
	mux.HandleFunc(apiPrefix+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("PBI_TENANT_ID", testTenant)
	t.Setenv("PBI_CLIENT_ID", "client")
	t.Setenv("PBI_CLIENT_SECRET", "secret")
	t.Setenv("PBI_WORKSPACE_ID", testWorkspace)
	t.Setenv("PBI_AUTHORITY_URL", srv.URL)
	t.Setenv("PBI_API_URL", srv.URL+apiPrefix)
	t.Setenv("PBI_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := (&app{}).rootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const reportUsersBody = `{"value":[
	{"displayName":"Ann Lee","emailAddress":"ann@example.com","reportUserAccessRight":"Owner","principalType":"User"},
	{"displayName":"Finance Group","emailAddress":"","reportUserAccessRight":"Read","principalType":"Group"}
]}`

func TestHelp_NeedsNoConfig(t *testing.T) {
	isolate(t)

	out, err := run(t, "help")
	require.NoError(t, err)
	require.Contains(t, out, "Usage:")
	require.Contains(t, out, "refresh-info-all")
}

func TestCompletion_NeedsNoConfig(t *testing.T) {
	isolate(t)

	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	require.Contains(t, out, "pbi-report")
}

func TestReportUsers_RawFileWritesBodyVerbatim(t *testing.T) {
	dir := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, apiPrefix+"/admin/reports/rep-1/users", r.URL.Path)
		fmt.Fprint(w, reportUsersBody)
	})

	out, err := run(t, "report-users", "rep-1", "--raw", "--file=users.json")
	require.NoError(t, err)
	require.Contains(t, out, "Results written to users.json")
	require.Equal(t, reportUsersBody, readFile(t, dir+"/users.json"))
}

func TestAppUsers_BareFileUsesDefaultName(t *testing.T) {
	dir := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, apiPrefix+"/admin/apps/app-1/users", r.URL.Path)
		fmt.Fprint(w, `{"value":[{"displayName":"Ann Lee","emailAddress":"ann@example.com","appUserAccessRight":"All"}]}`)
	})

	_, err := run(t, "app-users", "app-1", "--file")
	require.NoError(t, err)
	require.Equal(t, "name|email|rights\nAnn Lee|ann@example.com|All\n", readFile(t, dir+"/__app_users__.txt"))
}

func TestReportUsers_ShowsReportRights(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reportUsersBody)
	})

	out, err := run(t, "report-users", "rep-1", "--out", "json")
	require.NoError(t, err)

	var got []powerbi.UserAccess
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []powerbi.UserAccess{
		{Name: "Ann Lee", Email: "ann@example.com", Rights: "Owner"},
		{Name: "Finance Group", Email: "", Rights: "Read"},
	}, got)
}

func queryServer(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, groupPrefix+"/datasets/d1/executeQueries", r.URL.Path)
		fmt.Fprint(w, `{"results":[{"tables":[{"rows":[
			{"T[Job]":"Camden","T[Amount]":12.5},
			{"T[Job]":"Hove","T[Amount]":null}
		]}]}]}`)
	}
}

func TestQuery_WritesTableToFile(t *testing.T) {
	dir := withServer(t, queryServer(t))

	out, err := run(t, "query", "d1", "EVALUATE T", "--file=result.txt")
	require.NoError(t, err)
	require.Contains(t, out, "Results written to result.txt")
	require.Equal(t, "T[Job]|T[Amount]\nCamden|12.5\nHove|\n", readFile(t, dir+"/result.txt"))

	_, err = run(t, "query", "d1", "EVALUATE T", "--file=result.txt", "--mode", "append")
	require.NoError(t, err)
	require.Equal(t, "T[Job]|T[Amount]\nCamden|12.5\nHove|\nCamden|12.5\nHove|\n", readFile(t, dir+"/result.txt"))
}

func TestQuery_BareFileUsesDefaultName(t *testing.T) {
	dir := withServer(t, queryServer(t))

	_, err := run(t, "query", "d1", "EVALUATE T", "--file")
	require.NoError(t, err)
	require.Equal(t, "T[Job]|T[Amount]\nCamden|12.5\nHove|\n", readFile(t, dir+"/__resp.txt"))
}

func TestQuery_Delimited(t *testing.T) {
	withServer(t, queryServer(t))

	out, err := run(t, "query", "d1", "EVALUATE T", "--delimited")
	require.NoError(t, err)
	require.Equal(t, "T[Job]|T[Amount]\nCamden|12.5\nHove|\n", out)
}

func refreshServer(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, groupPrefix+"/datasets/d1/refreshes", r.URL.Path)
		w.Header().Set("RequestId", "req-42")
		w.WriteHeader(http.StatusAccepted)
	}
}

func TestRefresh_Text(t *testing.T) {
	withServer(t, refreshServer(t))

	out, err := run(t, "refresh", "d1")
	require.NoError(t, err)
	require.Equal(t, "Dataset d1 refresh started.\n", out)
}

func TestRefresh_JSON(t *testing.T) {
	withServer(t, refreshServer(t))

	out, err := run(t, "refresh", "d1", "--out", "json")
	require.NoError(t, err)

	var got powerbi.RefreshRequest
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, powerbi.RefreshRequest{DatasetID: "d1", RequestID: "req-42"}, got)
}

func TestRefresh_NotAccepted(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad dataset")
	})

	_, err := run(t, "refresh", "d1")
	var apiErr *powerbi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestRefreshInfo_RawTop(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, groupPrefix+"/datasets/d1/refreshes", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("$top"))
		fmt.Fprint(w, `{"value":[
			{"requestId":"q2","refreshType":"OnDemand","startTime":"2024-01-02T10:00:00Z","endTime":"2024-01-02T10:05:00Z","status":"Completed"},
			{"requestId":"q1","refreshType":"Scheduled","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:01:00Z","status":"Failed"}
		]}`)
	})

	out, err := run(t, "refresh-info", "d1", "--raw", "--top", "3", "--out", "json")
	require.NoError(t, err)

	var got []powerbi.Refresh
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	require.Equal(t, "q2", got[0].RequestID)
	require.Equal(t, "Failed", got[1].Status)
}

func TestRefreshInfoCommand_InProgress(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("$top"))
		fmt.Fprint(w, `{"value":[{"requestId":"q1","startTime":"2024-01-01T10:00:00Z","status":"Unknown"}]}`)
	})

	out, err := run(t, "refresh-info", "d1")
	require.NoError(t, err)
	require.Equal(t, powerbi.StatusRefreshing+"\n", out)
}

func TestUnknownOutputFormat(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected API call %s", r.URL.Path)
	})

	_, err := run(t, "datasets", "--out", "xml")
	require.ErrorContains(t, err, "unknown output format")
}
