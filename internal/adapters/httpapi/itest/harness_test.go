package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/transportops/field-service-api/internal/adapters/httpapi"
	memclock "github.com/transportops/field-service-api/internal/adapters/memory/clock"
	memdriverrepo "github.com/transportops/field-service-api/internal/adapters/memory/driverrepo"
	memkvstore "github.com/transportops/field-service-api/internal/adapters/memory/kvstore"
	memreportrepo "github.com/transportops/field-service-api/internal/adapters/memory/reportrepo"
	memsynclogrepo "github.com/transportops/field-service-api/internal/adapters/memory/synclogrepo"
	pgdriverrepo "github.com/transportops/field-service-api/internal/adapters/postgres/driverrepo"
	pgreportrepo "github.com/transportops/field-service-api/internal/adapters/postgres/reportrepo"
	pgsynclogrepo "github.com/transportops/field-service-api/internal/adapters/postgres/synclogrepo"
	postgres_testutil "github.com/transportops/field-service-api/internal/adapters/postgres/testutil"
	"github.com/transportops/field-service-api/internal/app/fieldauth"
	"github.com/transportops/field-service-api/internal/app/fieldreports"
	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/platform/auth/qrtoken"
	"github.com/transportops/field-service-api/internal/platform/ratelimit"
	driverrepoport "github.com/transportops/field-service-api/internal/ports/out/driverrepo"
	reportrepoport "github.com/transportops/field-service-api/internal/ports/out/reportrepo"
	synclogrepoport "github.com/transportops/field-service-api/internal/ports/out/synclogrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

const itestSecret = "itest-qr-secret"

type testServer struct {
	baseURL string
	client  *http.Client

	signer  *qrtoken.Signer
	clk     *memclock.Clock
	reports reportrepoport.Repository
	drivers driverrepoport.Repository
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))
	signer, err := qrtoken.NewWithClock(itestSecret, clk)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	var (
		reportRepo  reportrepoport.Repository
		driverRepo  driverrepoport.Repository
		syncLogRepo synclogrepoport.Repository
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		reportRepo = pgreportrepo.NewRepo(pool)
		driverRepo = pgdriverrepo.NewRepo(pool)
		syncLogRepo = pgsynclogrepo.NewRepo(pool)
	case backendMemory:
		reportRepo = memreportrepo.NewRepo()
		driverRepo = memdriverrepo.NewRepo()
		syncLogRepo = memsynclogrepo.NewRepo()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	// The ephemeral cache stays in memory for both backends; TTL behavior is
	// already covered by the kvstore contract suite.
	kv := memkvstore.NewStoreWithClock(clk)

	authSvc := fieldauth.NewService(signer, kv)
	reportsSvc := fieldreports.NewService(reportRepo, driverRepo, signer, ratelimit.New(kv), clk)
	api := httpapi.NewServer(authSvc, reportsSvc, syncLogRepo, clk)

	srv := httptest.NewServer(httpapi.NewRouter(api))
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		signer:  signer,
		clk:     clk,
		reports: reportRepo,
		drivers: driverRepo,
	}
}

func (s *testServer) seedDriver(t *testing.T, canonicalID string) {
	t.Helper()
	now := s.clk.Now()
	err := s.drivers.Create(context.Background(), driverrepoport.Driver{
		CanonicalID: domain.DriverCanonicalID(canonicalID),
		DisplayName: "Itest Driver " + canonicalID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed driver %s: %v", canonicalID, err)
	}
}

func (s *testServer) mintQR(t *testing.T, customer string, ttl time.Duration) string {
	t.Helper()
	tok, err := s.signer.Mint(customer, ttl)
	if err != nil {
		t.Fatalf("mint qr: %v", err)
	}
	return tok
}

func (s *testServer) doJSON(t *testing.T, method, path, bearer string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.baseURL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}
