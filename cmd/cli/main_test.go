package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/badbank/internal/usecase"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}))

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestHashPasswordCmd(t *testing.T) {
	orig := bcryptGenerate
	bcryptGenerate = func(p []byte, cost int) ([]byte, error) {
		return []byte("hashed-value"), nil
	}
	defer func() { bcryptGenerate = orig }()

	out, err := execute(t, "hash-password", "secret")
	require.NoError(t, err)

	if strings.TrimSpace(out) != "hashed-value" {
		t.Fatalf("expected hashed-value, got %q", out)
	}
}

func TestDepositSendsTokenAndIdempotencyKey(t *testing.T) {
	var got struct {
		auth, key string
		body      map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/deposit", r.URL.Path)
		got.auth = r.Header.Get("Authorization")
		got.key = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.Write([]byte(`{"message":"Deposit successful","balances":{"checking":"12.5","savings":"0"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "--token", "tok", "deposit", "--amount", "12.50", "--idempotency-key", "k1")
	require.NoError(t, err)

	require.Equal(t, "Bearer tok", got.auth)
	require.Equal(t, "k1", got.key)
	require.Equal(t, "12.50", got.body["amount"])
	require.Equal(t, "checking", got.body["accountType"])
	require.Contains(t, out, "Deposit successful")
}

func TestAPIErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"insufficient funds","message":"savings balance is too low"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "--url", srv.URL, "withdraw", "--amount", "5", "--account", "savings")

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "insufficient funds", apiErr.Code)
	require.Contains(t, err.Error(), "savings balance is too low")
}

func TestLoginTokenOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"jwt-token","username":"alice","user_id":"u1"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "login", "--email", "a@example.com", "--password", "pw", "--token-only")
	require.NoError(t, err)
	require.Equal(t, "jwt-token\n", out)
}

func TestTransactionsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"id":"01HZZZZZZZZZZZZZZZZZZZZZZZ","userId":"u1","type":"Transfer","amount":"30","accountType":"checking","fromAccount":"checking","toAccount":"savings","date":"2024-01-02T00:00:00Z"},
			{"id":"01HYYYYYYYYYYYYYYYYYYYYYYY","userId":"u1","type":"Deposit","amount":"100","accountType":"checking","date":"2024-01-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "transactions", "--limit", "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "checking->savings")
	require.Contains(t, lines[1], "30.00")
	require.Contains(t, lines[2], "Deposit")
}

func TestLedgerConsistencyDriftFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"user_id":"u1","consistent":false,"checking_diff":"2","savings_diff":"0"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "ledger", "consistency")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FAILED")
	require.Contains(t, out, `"user_id": "u1"`)
}

type stubAllChecker struct {
	report *usecase.ConsistencyReport
	err    error
}

func (s stubAllChecker) CheckAll(ctx context.Context) (*usecase.ConsistencyReport, error) {
	return s.report, s.err
}

func TestLedgerConsistencyAll(t *testing.T) {
	orig := openAllChecker
	defer func() { openAllChecker = orig }()

	var gotURL string
	closed := false
	open := func(report *usecase.ConsistencyReport, err error) {
		openAllChecker = func(ctx context.Context, databaseURL string) (allChecker, func(), error) {
			gotURL = databaseURL
			return stubAllChecker{report: report, err: err}, func() { closed = true }, nil
		}
	}

	open(&usecase.ConsistencyReport{TotalAccounts: 2, ConsistentAccounts: 2, Skipped: 1, CheckedAt: time.Now()}, nil)
	out, err := execute(t, "ledger", "consistency", "--all", "--database-url", "postgres://db")
	require.NoError(t, err)
	require.Equal(t, "postgres://db", gotURL)
	require.True(t, closed)
	require.Contains(t, out, "Skipped (busy): 1")
	require.Contains(t, out, "PASSED")

	open(&usecase.ConsistencyReport{
		TotalAccounts:      2,
		ConsistentAccounts: 1,
		Discrepancies:      []*usecase.ConsistencyResult{{UserID: "u2", CheckingDiff: decimal.NewFromInt(-5), SavingsDiff: decimal.Zero}},
	}, nil)
	out, err = execute(t, "ledger", "consistency", "--all", "--database-url", "postgres://db")
	require.Error(t, err)
	require.Contains(t, out, "DRIFT u2 checking=-5")

	open(nil, errors.New("boom"))
	_, err = execute(t, "ledger", "consistency", "--all", "--database-url", "postgres://db")
	require.EqualError(t, err, "boom")
}

func TestMigrateCommands(t *testing.T) {
	origUp, origDown := runMigrations, runMigrationsDown
	defer func() { runMigrations, runMigrationsDown = origUp, origDown }()

	var calls []string
	runMigrations = func(url, path string) error {
		calls = append(calls, "up "+url+" "+path)
		return nil
	}
	runMigrationsDown = func(url, path string) error {
		calls = append(calls, "down "+url)
		return nil
	}

	_, err := execute(t, "migrate", "up", "--database-url", "postgres://db", "--path", "migrations")
	require.NoError(t, err)
	_, err = execute(t, "migrate", "down", "--database-url", "postgres://db")
	require.NoError(t, err)

	require.Equal(t, []string{"up postgres://db migrations", "down postgres://db"}, calls)
}
