// Package registry looks up Belgian enterprises in the CBE/KBO register by
// VAT number. Lookups are advisory: the auditor degrades to a warning when
// the register is unreachable, so failures here never block a document.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/resilience"
)

// ErrUnavailable indicates the register could not be reached or answered
// with a server error. Callers treat it as "unknown", not "not found".
var ErrUnavailable = eris.New("registry: service unavailable")

// ErrNotFound indicates the enterprise number is not in the register.
var ErrNotFound = eris.New("registry: enterprise not found")

// Company is one register entry.
type Company struct {
	EnterpriseNumber string `json:"enterprise_number"`
	Name             string `json:"name"`
	Status           string `json:"status"` // "active" or "stopped"
	LegalForm        string `json:"legal_form"`
	Municipality     string `json:"municipality"`
}

// Active reports whether the enterprise is currently registered as active.
func (c Company) Active() bool {
	return strings.EqualFold(c.Status, "active")
}

// Client defines register lookups used by the auditor.
type Client interface {
	Lookup(ctx context.Context, vat string) (*Company, error)
}

// HTTPClient implements Client against the CBE public data endpoint.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	breaker  *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

// NewHTTPClient creates a register client from configuration.
func NewHTTPClient(cfg config.RegistryConfig) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("registry circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = 2
	retryCfg.InitialBackoff = 250 * time.Millisecond
	retryCfg.OnRetry = resilience.RetryLogger("registry", "lookup")

	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		breaker:  resilience.NewCircuitBreaker(breakerCfg),
		retryCfg: retryCfg,
	}
}

// Lookup fetches the register entry for a VAT number. The VAT prefix and
// punctuation are stripped to form the enterprise number.
func (c *HTTPClient) Lookup(ctx context.Context, vat string) (*Company, error) {
	number := EnterpriseNumber(vat)
	if number == "" {
		return nil, eris.Errorf("registry: malformed vat number %q", vat)
	}

	company, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Company, error) {
		return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*Company, error) {
			return c.fetch(ctx, number)
		})
	})
	if err != nil {
		if eris.Is(err, resilience.ErrCircuitOpen) || resilience.IsTransient(err) {
			return nil, eris.Wrap(ErrUnavailable, err.Error())
		}
		return nil, err
	}
	return company, nil
}

func (c *HTTPClient) fetch(ctx context.Context, number string) (*Company, error) {
	endpoint := fmt.Sprintf("%s/enterprise/%s", c.baseURL, url.PathEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "registry: request"), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("registry: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("registry: unexpected status %d", resp.StatusCode)
	}

	var company Company
	if err := json.NewDecoder(resp.Body).Decode(&company); err != nil {
		return nil, eris.Wrap(err, "registry: decode response")
	}
	return &company, nil
}

// EnterpriseNumber normalizes a Belgian VAT number ("BE 0123.456.749") to
// the 10-digit enterprise number ("0123456749"). Returns "" when the input
// does not reduce to 10 digits.
func EnterpriseNumber(vat string) string {
	s := strings.ToUpper(strings.TrimSpace(vat))
	s = strings.TrimPrefix(s, "BE")

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	// Older formats carry 9 digits; the register pads with a leading zero.
	if len(number) == 9 {
		number = "0" + number
	}
	if len(number) != 10 {
		return ""
	}
	return number
}
