package deploy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmbay/rental-service/pkg/logger"
)

// newTestProber returns a prober pointed at 127.0.0.1 with retries tightened
// so the down cases finish quickly.
func newTestProber(t *testing.T) *Prober {
	t.Helper()
	p := NewProber("127.0.0.1", logger.NewDefault("deploy-test"))
	p.attempts = 2
	p.backoff = 10 * time.Millisecond
	return p
}

// healthServer serves the app health endpoint on an ephemeral port and
// returns the port it listens on.
func healthServer(t *testing.T, status string) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/system/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q,"uptime":"1s"}`, status)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return port
}

// tcpListener opens a bare TCP listener, standing in for the database port.
func tcpListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return port
}

// unusedPort reserves an ephemeral port and releases it so nothing listens
// there when the prober dials.
func unusedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	return port
}

func descriptorFor(appPort, dbPort string) *Descriptor {
	return &Descriptor{Services: map[string]Service{
		"app": {
			Build:       ".",
			Ports:       []string{appPort + ":8000"},
			Environment: []string{"DB_HOST=db"},
			DependsOn:   []string{"db"},
		},
		"db": {
			Image: "postgres:16-alpine",
			Ports: []string{dbPort + ":5432"},
		},
	}}
}

func TestProberStatusAllUp(t *testing.T) {
	appPort := healthServer(t, "healthy")
	dbPort := tcpListener(t)
	p := newTestProber(t)

	results, err := p.Status(context.Background(), descriptorFor(appPort, dbPort))
	require.NoError(t, err)
	require.Len(t, results, 2)

	// db starts first, app depends on it
	db, app := results[0], results[1]
	assert.Equal(t, "db", db.Service)
	assert.True(t, db.Up)
	assert.Empty(t, db.Health, "only the app container reports health")

	assert.Equal(t, "app", app.Service)
	assert.True(t, app.Up)
	assert.Equal(t, appPort, app.Port)
	assert.Equal(t, "healthy", app.Health)
}

func TestProberStatusDownPort(t *testing.T) {
	appPort := unusedPort(t)
	dbPort := tcpListener(t)
	p := newTestProber(t)

	results, err := p.Status(context.Background(), descriptorFor(appPort, dbPort))
	require.NoError(t, err)
	require.Len(t, results, 2)

	app := results[1]
	assert.Equal(t, "app", app.Service)
	assert.False(t, app.Up)
	assert.NotEmpty(t, app.Error)
	assert.Empty(t, app.Health, "a down service gets no health probe")
}

func TestProberStatusNoPublishedPorts(t *testing.T) {
	p := newTestProber(t)
	d := &Descriptor{Services: map[string]Service{
		"worker": {Image: "rental-worker:latest"},
	}}

	results, err := p.Status(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Up, "nothing to dial counts as up")
	assert.Empty(t, results[0].Port)
}

func TestProberStatusUnhealthyApp(t *testing.T) {
	appPort := healthServer(t, "degraded")
	dbPort := tcpListener(t)
	p := newTestProber(t)

	results, err := p.Status(context.Background(), descriptorFor(appPort, dbPort))
	require.NoError(t, err)
	assert.Equal(t, "degraded", results[1].Health)
}

func TestIsAppService(t *testing.T) {
	cases := []struct {
		name string
		svc  Service
		want bool
	}{
		{"Build", Service{Build: "."}, true},
		{"DBHostEnv", Service{Image: "rental-app:latest", Environment: []string{"DB_HOST=db"}}, true},
		{"PostgresImage", Service{Image: "postgres:16-alpine", Environment: []string{"DB_HOST=db"}}, false},
		{"PlainImage", Service{Image: "redis:7"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isAppService(tc.svc))
		})
	}
}
