package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"supplierhub_api/metrics"
	"supplierhub_api/pkg/logger"
)

type ErrorKind string

const (
	ErrNetwork            ErrorKind = "network"
	ErrTimeout            ErrorKind = "timeout"
	ErrHTTPStatus         ErrorKind = "http-status"
	ErrUnsupportedContent ErrorKind = "unsupported-content-type"
	ErrSizeExceeded       ErrorKind = "size-exceeded"
)

// FetchError carries the failure kind so callers can tell transient
// network trouble from policy rejections.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (%d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AuthConfig describes how a feed endpoint authenticates requests.
// For "header" auth, Login is the header name and Secret its value;
// for "query", Login is the parameter name.
type AuthConfig struct {
	Type   string // none|basic|bearer|header|query
	Login  string
	Secret string
}

type Options struct {
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RatePerWindow   int
	RateWindow      time.Duration
	MaxBodyBytes    int64
	AllowedTypes    []string
	UserAgent       string
}

func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  5 * time.Second,
		ResponseTimeout: 25 * time.Second,
		MaxRetries:      2,
		RetryBaseDelay:  300 * time.Millisecond,
		RatePerWindow:   6,
		RateWindow:      2 * time.Second,
		MaxBodyBytes:    64 << 20,
		AllowedTypes: []string{
			"text/csv", "application/csv", "text/plain",
			"application/json", "text/json",
			"application/xml", "text/xml",
			"application/octet-stream", // some wholesalers serve CSV this way
		},
		UserAgent: "SupplierHub/1.0",
	}
}

// HttpClient fetches feed bodies with timeouts, bounded retries, a
// per-host rate limit, a response size cap and a content-type whitelist.
type HttpClient struct {
	opts   Options
	client *http.Client
	log    logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHttpClient(opts Options, log logger.Logger) *HttpClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
	}
	return &HttpClient{
		opts: opts,
		client: &http.Client{
			Timeout:   opts.ResponseTimeout,
			Transport: transport,
		},
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves the feed at rawURL and returns the body (normalized to
// UTF-8) together with the response media type ("" when the server sent
// none). Retries apply only to network errors and 5xx responses.
func (c *HttpClient) Fetch(ctx context.Context, rawURL string, auth AuthConfig, headers, query map[string]string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", &FetchError{Kind: ErrNetwork, URL: rawURL, Err: err}
	}

	if len(query) > 0 || auth.Type == "query" {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		if auth.Type == "query" && auth.Login != "" {
			q.Set(auth.Login, auth.Secret)
		}
		u.RawQuery = q.Encode()
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, "", &FetchError{Kind: ErrTimeout, URL: rawURL, Err: err}
	}

	var lastErr error
	attempts := c.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		body, ctype, err := c.doOnce(ctx, u, auth, headers)
		if err == nil {
			metrics.RecordFetch("ok")
			return body, ctype, nil
		}
		lastErr = err

		fe, ok := err.(*FetchError)
		if !ok || !retryable(fe) {
			metrics.RecordFetch(string(kindOf(err)))
			return nil, "", err
		}
		if attempt < attempts {
			c.log.Log("fetch attempt %d/%d for %s failed: %v", attempt, attempts, rawURL, err)
			select {
			case <-time.After(c.opts.RetryBaseDelay * time.Duration(attempt)):
			case <-ctx.Done():
				metrics.RecordFetch(string(ErrTimeout))
				return nil, "", &FetchError{Kind: ErrTimeout, URL: rawURL, Err: ctx.Err()}
			}
		}
	}
	metrics.RecordFetch(string(kindOf(lastErr)))
	return nil, "", lastErr
}

func (c *HttpClient) doOnce(ctx context.Context, u *url.URL, auth AuthConfig, headers map[string]string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &FetchError{Kind: ErrNetwork, URL: u.String(), Err: err}
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	switch auth.Type {
	case "basic":
		req.SetBasicAuth(auth.Login, auth.Secret)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Secret)
	case "header":
		if auth.Login != "" {
			req.Header.Set(auth.Login, auth.Secret)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		kind := ErrNetwork
		if isTimeout(err) {
			kind = ErrTimeout
		}
		return nil, "", &FetchError{Kind: kind, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &FetchError{Kind: ErrHTTPStatus, URL: u.String(), Status: resp.StatusCode}
	}

	mediaType, charset := splitContentType(resp.Header.Get("Content-Type"))
	if mediaType != "" && !c.allowed(mediaType) {
		return nil, "", &FetchError{Kind: ErrUnsupportedContent, URL: u.String(), Err: fmt.Errorf("disallowed content type %q", mediaType)}
	}

	limited := io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		kind := ErrNetwork
		if isTimeout(err) {
			kind = ErrTimeout
		}
		return nil, "", &FetchError{Kind: kind, URL: u.String(), Err: err}
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, "", &FetchError{Kind: ErrSizeExceeded, URL: u.String(), Err: fmt.Errorf("body exceeds %d bytes", c.opts.MaxBodyBytes)}
	}

	body, err = decodeCharset(body, charset)
	if err != nil {
		return nil, "", &FetchError{Kind: ErrNetwork, URL: u.String(), Err: err}
	}
	return body, mediaType, nil
}

func (c *HttpClient) allowed(mediaType string) bool {
	for _, t := range c.opts.AllowedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

func (c *HttpClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		per := rate.Every(c.opts.RateWindow / time.Duration(max(1, c.opts.RatePerWindow)))
		lim = rate.NewLimiter(per, max(1, c.opts.RatePerWindow))
		c.limiters[host] = lim
	}
	return lim
}

func retryable(e *FetchError) bool {
	switch e.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	case ErrHTTPStatus:
		return e.Status >= 500
	}
	return false
}

func kindOf(err error) ErrorKind {
	if fe, ok := err.(*FetchError); ok {
		return fe.Kind
	}
	return ErrNetwork
}

func isTimeout(err error) bool {
	var ne net.Error
	if ok := asNetError(err, &ne); ok {
		return ne.Timeout()
	}
	return strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout")
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func splitContentType(header string) (mediaType, charset string) {
	if header == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0])), ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

// decodeCharset converts a feed body declared in a legacy encoding to
// UTF-8. Unknown or absent charsets pass through unchanged.
func decodeCharset(body []byte, charset string) ([]byte, error) {
	var enc encoding.Encoding
	switch charset {
	case "", "utf-8", "utf8", "us-ascii":
		return body, nil
	case "windows-1251", "cp1251":
		enc = charmap.Windows1251
	case "windows-1250", "cp1250":
		enc = charmap.Windows1250
	case "iso-8859-1", "latin1":
		enc = charmap.ISO8859_1
	case "iso-8859-2", "latin2":
		enc = charmap.ISO8859_2
	default:
		return body, nil
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("charset %s decode: %w", charset, err)
	}
	return decoded, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
