// Package client is the editor side of the registry protocol: it loads the
// bundle, saves drafts and publishes with the pointers it last saw, and keeps
// the local undo ring.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"giftregistry/api/internal/app"
	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/undoring"
)

var (
	ErrMissingToken  = errors.New("client: write token required")
	ErrNothingToUndo = errors.New("client: local undo ring is empty")
	ErrNotLoaded     = errors.New("client: bundle not loaded")
)

// APIError is any non-success response not covered by a typed error.
type APIError struct {
	Status  int
	Code    string
	Stage   string
	Message string
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("registry api: %d %s (stage %s)", e.Status, e.Code, e.Stage)
	}
	return fmt.Sprintf("registry api: %d %s", e.Status, e.Code)
}

// Persister saves the ring after every change.
type Persister interface {
	Save(*undoring.Ring)
}

type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	ring      *undoring.Ring
	persister Persister
	log       *logger.Logger

	mu       sync.Mutex
	loaded   bool
	meta     registry.Meta
	baseline registry.Pointers
	working  registry.Bundle
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRing replaces the in-memory undo ring. persister may be nil.
func WithRing(ring *undoring.Ring, persister Persister) Option {
	return func(c *Client) {
		c.ring = ring
		c.persister = persister
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		ring:    undoring.New(undoring.DefaultCapacity),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the bundle and adopts its meta as the baseline and its draft
// as the working payload.
func (c *Client) Load(ctx context.Context) (registry.BundleView, error) {
	var view registry.BundleView
	if err := c.do(ctx, http.MethodGet, "/api/registry/bundle", nil, &view); err != nil {
		return registry.BundleView{}, err
	}
	c.mu.Lock()
	c.loaded = true
	c.meta = view.Meta
	c.baseline = view.Meta.Pointers()
	c.working = view.Draft
	c.mu.Unlock()
	return view, nil
}

// Save snapshots the working payload onto the undo ring, then writes it with
// the baseline as expected pointers. A conflict adopts the server pointers
// and returns *registry.ConflictError.
func (c *Client) Save(ctx context.Context, mode registry.Mode) (registry.Meta, error) {
	c.mu.Lock()
	loaded := c.loaded
	working := c.working
	baseline := c.baseline
	c.mu.Unlock()
	if !loaded {
		return registry.Meta{}, ErrNotLoaded
	}

	c.pushUndo(working)

	if c.token == "" {
		return registry.Meta{}, ErrMissingToken
	}

	input := app.WriteInput{
		Mode:    string(mode),
		Payload: &working,
		Client: &app.ClientPointers{
			ExpectedPublishedVersion: baseline.PublishedVersion,
			ExpectedDraftVersion:     baseline.DraftVersion,
		},
	}
	var result app.WriteResult
	err := c.do(ctx, http.MethodPost, "/api/registry/write", input, &result)

	var conflict *registry.ConflictError
	if errors.As(err, &conflict) {
		conflict.Expected = baseline
		c.mu.Lock()
		c.baseline = conflict.Server
		c.mu.Unlock()
		return registry.Meta{}, conflict
	}
	if err != nil {
		return registry.Meta{}, err
	}

	c.adopt(result.Meta)
	return result.Meta, nil
}

// UndoPublish asks the server to roll back the latest publish.
func (c *Client) UndoPublish(ctx context.Context) (registry.Meta, error) {
	if c.token == "" {
		return registry.Meta{}, ErrMissingToken
	}
	var result struct {
		OK   bool          `json:"ok"`
		Meta registry.Meta `json:"meta"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/registry/undo", app.UndoInput{Mode: "undo_publish"}, &result); err != nil {
		return registry.Meta{}, err
	}
	c.adopt(result.Meta)
	return result.Meta, nil
}

// UndoLocal restores the newest ring snapshot as the working payload.
func (c *Client) UndoLocal() (registry.Bundle, error) {
	snapshot, ok := c.ring.Pop()
	if !ok {
		return registry.Bundle{}, ErrNothingToUndo
	}
	c.persist()

	var bundle registry.Bundle
	if err := json.Unmarshal(snapshot, &bundle); err != nil {
		return registry.Bundle{}, fmt.Errorf("decode undo snapshot: %w", err)
	}
	c.mu.Lock()
	c.working = bundle
	c.mu.Unlock()
	return bundle, nil
}

// PublishedVersion polls the cheap version probe.
func (c *Client) PublishedVersion(ctx context.Context) (registry.VersionID, error) {
	var result struct {
		PublishedVersion registry.VersionID `json:"publishedVersion"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/registry/version", nil, &result); err != nil {
		return "", err
	}
	return result.PublishedVersion, nil
}

// Export downloads the printable gift list of the live version. format is
// "pdf" or "html".
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, "/api/registry/export?format="+url.QueryEscape(format), nil)
}

// SetWorking replaces the working payload.
func (c *Client) SetWorking(bundle registry.Bundle) {
	c.mu.Lock()
	c.working = bundle
	c.mu.Unlock()
}

func (c *Client) Working() registry.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working
}

// Baseline returns the pointers the next write will expect.
func (c *Client) Baseline() registry.Pointers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline
}

func (c *Client) Meta() registry.Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.Clone()
}

func (c *Client) Ring() *undoring.Ring {
	return c.ring
}

func (c *Client) adopt(meta registry.Meta) {
	c.mu.Lock()
	c.meta = meta
	c.baseline = meta.Pointers()
	c.mu.Unlock()
}

func (c *Client) pushUndo(working registry.Bundle) {
	snapshot, err := json.Marshal(working)
	if err != nil {
		c.log.Warn().Err(err).Msg("undo snapshot skipped")
		return
	}
	c.ring.Push(snapshot)
	c.persist()
}

func (c *Client) persist() {
	if c.persister != nil {
		c.persister.Save(c.ring)
	}
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Stage   string            `json:"stage"`
	Server  registry.Pointers `json:"server"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, err := c.send(ctx, method, path, body)
	if err != nil || out == nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs one request and returns the body of a 200 response. Any
// other status is turned into a typed error.
func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return data, nil
	}

	var apiErr errorBody
	_ = json.Unmarshal(data, &apiErr)
	switch {
	case resp.StatusCode == http.StatusConflict && apiErr.Error == "version_conflict":
		return nil, &registry.ConflictError{Server: apiErr.Server}
	case resp.StatusCode == http.StatusBadRequest && apiErr.Error == "no_undo":
		return nil, registry.ErrNoUndo
	}
	return nil, &APIError{Status: resp.StatusCode, Code: apiErr.Error, Stage: apiErr.Stage, Message: apiErr.Message}
}
