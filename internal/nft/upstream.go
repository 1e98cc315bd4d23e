package nft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

// upstream performs JSON GETs against one third-party API, optionally
// through a response cache.
type upstream struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	cache      Cache
	log        *zap.Logger
}

func newUpstream(baseURL string, timeout time.Duration, headers map[string]string, log *zap.Logger) upstream {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return upstream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (u *upstream) get(ctx context.Context, op, url string) ([]byte, error) {
	key := cacheKey(url)
	if u.cache != nil {
		if body, ok := u.cache.Get(ctx, key); ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range u.headers {
		req.Header.Set(k, v)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s unavailable: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New(op + ": upstream returned invalid JSON")
	}

	if u.cache != nil {
		u.cache.Set(ctx, key, body)
	}
	return body, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "nft:proxy:" + hex.EncodeToString(sum[:])
}

// first returns the first non-empty string among paths.
func first(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(r.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}
