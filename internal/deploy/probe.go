package deploy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/filmbay/rental-service/pkg/logger"
)

// ProbeResult reports reachability of one service.
type ProbeResult struct {
	Service string `json:"service"`
	Port    string `json:"port,omitempty"`
	Up      bool   `json:"up"`
	Health  string `json:"health,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Prober checks deployed services by dialing their published ports.
type Prober struct {
	host     string
	attempts int
	backoff  time.Duration
	client   *http.Client
	log      *logger.Logger
}

// NewProber creates a prober against the given host (usually localhost).
func NewProber(host string, log *logger.Logger) *Prober {
	if host == "" {
		host = "localhost"
	}
	if log == nil {
		log = logger.NewDefault("deploy")
	}
	return &Prober{
		host:     host,
		attempts: 5,
		backoff:  500 * time.Millisecond,
		client:   &http.Client{Timeout: 3 * time.Second},
		log:      log,
	}
}

// Status probes every service in start order. A service without published
// ports is reported as up; there is nothing to dial.
func (p *Prober) Status(ctx context.Context, d *Descriptor) ([]ProbeResult, error) {
	order, err := d.StartOrder()
	if err != nil {
		return nil, err
	}

	results := make([]ProbeResult, 0, len(order))
	for _, name := range order {
		svc := d.Services[name]
		result := ProbeResult{Service: name, Up: true}

		for _, mapping := range svc.Ports {
			host, _, err := splitPort(mapping)
			if err != nil {
				result.Up = false
				result.Error = err.Error()
				break
			}
			result.Port = host
			if err := p.dial(ctx, host); err != nil {
				result.Up = false
				result.Error = err.Error()
				break
			}
		}

		// the app container exposes a health endpoint; report its status too
		if result.Up && isAppService(svc) && result.Port != "" {
			result.Health = p.health(ctx, result.Port)
		}

		results = append(results, result)
	}
	return results, nil
}

func (p *Prober) dial(ctx context.Context, port string) error {
	addr := net.JoinHostPort(p.host, port)
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff * time.Duration(attempt)):
			}
		}
		dialer := net.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err
		p.log.WithError(err).Debugf("dial %s attempt %d failed", addr, attempt+1)
	}
	return fmt.Errorf("dial %s: %w", addr, lastErr)
}

func (p *Prober) health(ctx context.Context, port string) string {
	url := fmt.Sprintf("http://%s/v1/system/health", net.JoinHostPort(p.host, port))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.WithError(err).Debug("health probe failed")
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ""
	}
	return gjson.GetBytes(body, "status").String()
}

func isAppService(svc Service) bool {
	if svc.Build != "" {
		return true
	}
	_, hasDBHost := svc.Env("DB_HOST")
	return hasDBHost && !strings.HasPrefix(svc.Image, "postgres")
}
