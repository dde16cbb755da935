package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/churnwatch/internal/session"
)

const sampleBody = `{
	"predictions": [
		{"customer_id": "A-1", "tenure_months": 4, "monthly_charges": 70.7, "churn_probability": 64.0, "risk_level": "At-Risk", "risk_color": "orange", "primary_reason": "Month-to-month", "contract_type": "Month-to-month"},
		{"customer_id": "B-2", "tenure_months": 60, "monthly_charges": 20.1, "churn_probability": 3.0, "risk_level": "Loyal", "risk_color": "green", "primary_reason": "Long tenure", "contract_type": "Two year"},
		{"customer_id": "C-3", "tenure_months": 1, "monthly_charges": 99.0, "churn_probability": 93.5, "risk_level": "Critical", "risk_color": "red", "primary_reason": "New customer risk", "contract_type": "Month-to-month"}
	],
	"summary": {"total_customers": 3, "high_risk_count": 1, "medium_risk_count": 1, "low_risk_count": 1}
}`

// fakeService serves the prediction API and counts scoring calls.
type fakeService struct {
	scored      int32
	predictBody atomic.Value
	failPredict bool
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/test-sample", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.scored, 1)
		_, _ = io.WriteString(w, sampleBody)
	})
	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.scored, 1)
		if f.failPredict {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail": "CSV is missing the tenure column"}`)
			return
		}
		file, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			f.predictBody.Store(string(data))
		}
		_, _ = io.WriteString(w, sampleBody)
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"auc_score": 0.8437, "ks_stat": 0.45, "engine": "XGBoost", "total_predictions": 7043, "model_version": "2.2.0", "last_updated": "2024-01-15"}`)
	})
	mux.HandleFunc("/api/feature-importance", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "Not Found"}`)
	})
	mux.HandleFunc("/api/benchmark", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"algorithm": "XGBoost", "roc_auc": 0.8437, "accuracy": 0.80, "precision": 0.78, "recall": 0.76, "f1_score": 0.80},
			{"algorithm": "Logistic Regression", "roc_auc": 0.7891, "accuracy": 0.74, "precision": 0.71, "recall": 0.73, "f1_score": 0.72}
		]`)
	})
	return mux
}

// setupEnv points configuration at a fake service and a temp store.
func setupEnv(t *testing.T, svc *fakeService) string {
	t.Helper()
	srv := httptest.NewServer(svc.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("CHURNWATCH_API_BASE_URL", srv.URL+"/api")
	t.Setenv("CHURNWATCH_API_RETRY_DELAY_BASE", "10ms")
	t.Setenv("CHURNWATCH_UPLOAD_PROGRESS_INTERVAL", "10ms")
	t.Setenv("CHURNWATCH_STORAGE_FILE_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("CHURNWATCH_LOGGING_LEVEL", "error")
	t.Setenv(passkeyEnv, "")
	return dir
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type resultsOutput struct {
	Summary struct {
		Source         string `json:"source"`
		TotalCustomers int    `json:"total_customers"`
	} `json:"summary"`
	Shown     int `json:"shown"`
	Matching  int `json:"matching"`
	Customers []struct {
		CustomerID string `json:"customer_id"`
		RiskLevel  string `json:"risk_level"`
	} `json:"customers"`
}

func decodeResults(t *testing.T, s string) resultsOutput {
	t.Helper()
	var out resultsOutput
	require.NoError(t, json.Unmarshal([]byte(s), &out), "output: %s", s)
	return out
}

func customerIDs(r resultsOutput) []string {
	ids := make([]string, len(r.Customers))
	for i, c := range r.Customers {
		ids[i] = c.CustomerID
	}
	return ids
}

func TestSampleCommand_JSON(t *testing.T) {
	svc := &fakeService{}
	setupEnv(t, svc)

	out, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)

	res := decodeResults(t, out)
	assert.Equal(t, "server", res.Summary.Source)
	assert.Equal(t, 3, res.Summary.TotalCustomers)
	assert.Equal(t, []string{"C-3", "A-1", "B-2"}, customerIDs(res))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.scored))
}

func TestSampleCommand_RejectsPasskey(t *testing.T) {
	svc := &fakeService{}
	setupEnv(t, svc)

	_, err := runCommand(t, "", "sample", "--passkey", "wrong")
	var authErr *session.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	assert.Equal(t, ExitFailed, exitCode(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.scored))
}

func TestSampleCommand_PasskeyFromEnv(t *testing.T) {
	svc := &fakeService{}
	setupEnv(t, svc)
	t.Setenv(passkeyEnv, "churn2026")

	_, err := runCommand(t, "", "sample", "-o", "json")
	require.NoError(t, err)
}

func TestSampleCommand_MissingPasskeyNonInteractive(t *testing.T) {
	setupEnv(t, &fakeService{})

	_, err := runCommand(t, "", "sample")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--passkey")
	assert.Equal(t, ExitFailed, exitCode(err))
}

func TestSampleCommand_Filters(t *testing.T) {
	setupEnv(t, &fakeService{})

	out, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json", "--risk", "critical")
	require.NoError(t, err)
	res := decodeResults(t, out)
	assert.Equal(t, []string{"C-3"}, customerIDs(res))
	assert.Equal(t, 1, res.Matching)

	out, err = runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json", "--search", "b-")
	require.NoError(t, err)
	assert.Equal(t, []string{"B-2"}, customerIDs(decodeResults(t, out)))

	_, err = runCommand(t, "", "sample", "--passkey", "admin123", "--risk", "purple")
	assert.Error(t, err)
}

func TestSampleCommand_LimitAndTableFooter(t *testing.T) {
	setupEnv(t, &fakeService{})
	t.Setenv("CHURNWATCH_VIEW_DEFAULT_LIMIT", "1")

	out, err := runCommand(t, "", "sample", "--passkey", "admin123")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 3")
	assert.Contains(t, out, "C-3")
	assert.NotContains(t, out, "B-2")

	out, err = runCommand(t, "", "sample", "--passkey", "admin123", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 3 of 3")
}

func TestSampleCommand_LimitBelowDefault(t *testing.T) {
	setupEnv(t, &fakeService{})

	out, err := runCommand(t, "", "sample", "--passkey", "admin123", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 3")
	assert.Contains(t, out, "C-3")
	assert.NotContains(t, out, "A-1")
	assert.NotContains(t, out, "B-2")

	out, err = runCommand(t, "", "results", "-o", "json", "--limit", "2")
	require.NoError(t, err)
	res := decodeResults(t, out)
	assert.Equal(t, []string{"C-3", "A-1"}, customerIDs(res))
	assert.Equal(t, 2, res.Shown)
	assert.Equal(t, 3, res.Matching)
}

func TestPredictCommand(t *testing.T) {
	svc := &fakeService{}
	dir := setupEnv(t, svc)
	path := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte("customerID,tenure\nA-1,4\n"), 0600))

	out, err := runCommand(t, "", "predict", path, "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, out).Customers, 3)
	assert.Equal(t, "customerID,tenure\nA-1,4\n", svc.predictBody.Load())
}

func TestPredictCommand_InvalidFileType(t *testing.T) {
	svc := &fakeService{}
	dir := setupEnv(t, svc)
	path := filepath.Join(dir, "customers.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := runCommand(t, "", "predict", path, "--passkey", "admin123")
	require.Error(t, err)
	assert.Equal(t, "Please upload a CSV file only.", err.Error())
	assert.Equal(t, ExitFailed, exitCode(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.scored), "invalid files never reach the server")
}

func TestPredictCommand_ServerDetail(t *testing.T) {
	svc := &fakeService{failPredict: true}
	dir := setupEnv(t, svc)
	path := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte("customerID\n"), 0600))

	_, err := runCommand(t, "", "predict", path, "--passkey", "admin123")
	require.Error(t, err)
	assert.Equal(t, "CSV is missing the tenure column", err.Error())
	assert.Equal(t, ExitFailed, exitCode(err))
}

func TestResultsCommand_RestoresAndLogoutClears(t *testing.T) {
	svc := &fakeService{}
	setupEnv(t, svc)

	_, err := runCommand(t, "", "results")
	require.Error(t, err)
	assert.Equal(t, noStoredResultMessage, err.Error())

	_, err = runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)

	out, err := runCommand(t, "", "results", "-o", "json", "--risk", "loyal")
	require.NoError(t, err)
	assert.Equal(t, []string{"B-2"}, customerIDs(decodeResults(t, out)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.scored), "results never rescore")

	out, err = runCommand(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Session cleared.")

	_, err = runCommand(t, "", "results")
	assert.Error(t, err)
}

func TestResultsCommand_YAML(t *testing.T) {
	setupEnv(t, &fakeService{})
	_, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)

	out, err := runCommand(t, "", "results", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "customer_id: C-3")
}

func TestDashboardCommand_IndependentWidgets(t *testing.T) {
	setupEnv(t, &fakeService{})

	out, err := runCommand(t, "", "dashboard", "--passkey", "admin123")
	require.NoError(t, err)
	assert.Contains(t, out, "XGBoost")
	assert.Contains(t, out, "(champion)")
	assert.Contains(t, out, "Not Found", "failed widget shows its own message")
	assert.Contains(t, out, "Logistic Regression")
}

func TestDashboardCommand_RequiresSession(t *testing.T) {
	setupEnv(t, &fakeService{})

	_, err := runCommand(t, "", "dashboard")
	var authErr *session.AuthError
	assert.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
}

func TestInvalidOutputFormat(t *testing.T) {
	setupEnv(t, &fakeService{})

	_, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitError, exitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t, &fakeService{})
	t.Setenv("CHURNWATCH_STORAGE_BACKEND", "redis")

	_, err := runCommand(t, "", "results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Equal(t, ExitError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitFailed, exitCode(&analysisError{Message: "x"}))
	assert.Equal(t, ExitFailed, exitCode(&session.AuthError{Message: "x"}))
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
}

func TestSessionCommand_RestoredResults(t *testing.T) {
	setupEnv(t, &fakeService{})
	_, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)

	// Model dashboard, then quit.
	out, err := runCommand(t, "3\n6\n", "session")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored results from the previous session.")
	assert.Contains(t, out, "C-3")
	assert.Contains(t, out, "XGBoost")
}

func TestSessionCommand_LoginRetryThenSampleAndFilter(t *testing.T) {
	svc := &fakeService{}
	setupEnv(t, svc)

	// Wrong key, right key, run sample, filter to Critical, quit.
	out, err := runCommand(t, "wrong\nadmin123\n1\n2\n2\n6\n", "session")
	require.NoError(t, err)
	assert.Contains(t, out, "Invalid authorization key. Please try again.")
	assert.Contains(t, out, "Showing 3 of 3")
	assert.Contains(t, out, "Showing 1 of 1", "filter change applies to the cached view")
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.scored))

	out, err = runCommand(t, "", "results", "-o", "json")
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, out).Customers, 3, "interactive result is persisted")
}

func TestSessionCommand_BadFileReprompt(t *testing.T) {
	svc := &fakeService{}
	dir := setupEnv(t, svc)
	bad := filepath.Join(dir, "customers.txt")
	good := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(good, []byte("customerID\nA-1\n"), 0600))

	// Upload mode, rejected file, accepted file, then log out.
	input := "admin123\n2\n" + bad + "\n" + good + "\n5\n"
	out, err := runCommand(t, input, "session")
	require.NoError(t, err)
	assert.Contains(t, out, "Please upload a CSV file only.")
	assert.Contains(t, out, "Showing 3 of 3")
	assert.Contains(t, out, "Logged out.")
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.scored), "rejected file never reaches the server")

	_, err = runCommand(t, "", "results")
	assert.Error(t, err, "logout clears the stored result")
}

func TestSessionCommand_UploadFailureReprompts(t *testing.T) {
	svc := &fakeService{failPredict: true}
	dir := setupEnv(t, svc)
	path := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte("customerID\n"), 0600))

	// Upload fails; an empty path goes back to mode choice, then quit.
	out, err := runCommand(t, "admin123\n2\n"+path+"\n\n4\n", "session")
	require.NoError(t, err)
	assert.Contains(t, out, "CSV is missing the tenure column")
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.scored))
}

func TestSessionCommand_LoadMoreAndSearch(t *testing.T) {
	setupEnv(t, &fakeService{})
	t.Setenv("CHURNWATCH_VIEW_DEFAULT_LIMIT", "1")
	t.Setenv("CHURNWATCH_VIEW_LIMIT_STEP", "1")
	_, err := runCommand(t, "", "sample", "--passkey", "admin123", "-o", "json")
	require.NoError(t, err)

	// Load more, then search "b-", then quit.
	out, err := runCommand(t, "3\n1\nb-\n6\n", "session")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 3")
	assert.Contains(t, out, "Showing 2 of 3", "load more grows the cached view")
	assert.Contains(t, out, "Showing 1 of 1", "search narrows and resets the limit")
}

func TestSessionCommand_EndOfInputQuits(t *testing.T) {
	setupEnv(t, &fakeService{})

	_, err := runCommand(t, "", "session")
	assert.NoError(t, err)
}
