// Package apiclient maps abstract list/get/create/update/delete intents onto
// the backend's REST conventions. Every request is routed through the
// credential attacher, and every failure is normalized to a resterror.Error.
//
// Bulk intents (GetMany, UpdateMany, DeleteMany) fan out one request per id
// concurrently with all-or-nothing completion: if any request fails the whole
// call fails, and callers cannot observe partial success.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vulnwatch/vulnwatch-client/resterror"
)

// Attacher decorates a request with the active credential. Implemented by
// credentials.Attacher; kept as a local interface so tests can stub it.
type Attacher interface {
	Attach(ctx context.Context, req *http.Request)
}

// noopAttacher sends every request anonymously.
type noopAttacher struct{}

func (noopAttacher) Attach(context.Context, *http.Request) {}

// Client issues REST calls against a single backend base URL.
type Client struct {
	baseURL  string
	http     *http.Client
	attacher Attacher
	logger   zerolog.Logger
}

type ClientOption func(*Client)

// WithAttacher wires the credential attacher. Without one all requests are
// anonymous.
func WithAttacher(attacher Attacher) ClientOption {
	return func(c *Client) {
		c.attacher = attacher
	}
}

// WithHTTPClient overrides the underlying transport, primarily for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for baseURL (e.g. "https://backend.example.com/api").
func New(baseURL string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] baseURL is required")
	}

	client := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		attacher: noopAttacher{},
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// ListResult is the normalized shape of a paginated list response.
type ListResult struct {
	Data  []json.RawMessage
	Total int
}

// List fetches one page of resource. The decoded response body must carry
// both "count" and "results" or the call fails as a server error.
func (c *Client) List(ctx context.Context, resource string, p ListParams) (*ListResult, error) {
	endpoint := c.collectionURL(resource)
	if query := encodeQuery(p); query != "" {
		endpoint += "?" + query
	}

	body, _, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeListBody(body)
}

// Get fetches a single record by id.
func (c *Client) Get(ctx context.Context, resource string, id any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.recordURL(resource, id), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// GetMany fetches the given ids concurrently. Results are returned in input
// order regardless of response arrival order; the call fails as a whole if
// any single fetch fails.
func (c *Client) GetMany(ctx context.Context, resource string, ids []any) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, len(ids))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		group.Go(func() error {
			record, err := c.Get(groupCtx, resource, id)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetManyReference lists records of resource that reference p.ID through
// p.Target, by injecting {target: id} into the filter map.
func (c *Client) GetManyReference(ctx context.Context, resource string, p GetManyReferenceParams) (*ListResult, error) {
	filter := make(map[string]any, len(p.Filter)+1)
	for key, value := range p.Filter {
		filter[key] = value
	}
	filter[p.Target] = p.ID

	return c.List(ctx, resource, ListParams{
		Filter:     filter,
		Sort:       p.Sort,
		Pagination: p.Pagination,
	})
}

// Create POSTs body and returns the created record: the submitted fields
// overlaid with everything the server assigned, so no sent field is dropped
// even when the server echoes a partial body.
func (c *Client) Create(ctx context.Context, resource string, body any) (json.RawMessage, error) {
	responseBody, _, err := c.do(ctx, http.MethodPost, c.collectionURL(resource), body)
	if err != nil {
		return nil, err
	}
	return mergeRecord(body, responseBody)
}

// Update PATCHes a partial body onto the record and returns the updated
// record.
func (c *Client) Update(ctx context.Context, resource string, id any, patch any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodPatch, c.recordURL(resource, id), patch)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// UpdateMany PATCHes the same partial body onto every id concurrently and
// returns the updated ids. All requests are issued at once; one failure fails
// the aggregate call without reporting which updates went through.
func (c *Client) UpdateMany(ctx context.Context, resource string, ids []any, patch any) ([]any, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		group.Go(func() error {
			_, err := c.Update(groupCtx, resource, id, patch)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes a record and returns whatever body the server supplied,
// which may be empty.
func (c *Client) Delete(ctx context.Context, resource string, id any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodDelete, c.recordURL(resource, id), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// DeleteMany deletes every id concurrently with all-or-nothing semantics.
// Callers are expected to already know which ids were deleted; nothing is
// returned on success.
func (c *Client) DeleteMany(ctx context.Context, resource string, ids []any) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		group.Go(func() error {
			_, err := c.Delete(groupCtx, resource, id)
			return err
		})
	}
	return group.Wait()
}

func (c *Client) collectionURL(resource string) string {
	return c.baseURL + "/" + strings.Trim(resource, "/") + "/"
}

func (c *Client) recordURL(resource string, id any) string {
	return c.collectionURL(resource) + url.PathEscape(fmt.Sprint(id)) + "/"
}

// do issues one request with the active credential attached and the response
// read in full. Transport failures and non-2xx statuses come back as
// normalized errors.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, errors.Wrap(err, "[Client.do] encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.do] build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	c.attacher.Attach(ctx, req)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("url", endpoint).Err(err).Msg("transport failure")
		return nil, 0, resterror.FromTransport(err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resterror.FromTransport(err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		restErr := resterror.FromStatus(resp.StatusCode, responseBody)
		// An anonymous request has no credential to expire; the server simply
		// denied it.
		if restErr.Kind == resterror.KindAuthExpired && req.Header.Get("Authorization") == "" {
			restErr.Kind = resterror.KindClientRejected
		}
		return nil, resp.StatusCode, restErr
	}
	return responseBody, resp.StatusCode, nil
}

// decodeListBody enforces the list contract: both count and results present.
func decodeListBody(body []byte) (*ListResult, error) {
	var page struct {
		Count   *int              `json:"count"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, resterror.New(resterror.KindServerError, 0, "malformed list response: "+err.Error())
	}
	if page.Count == nil || page.Results == nil {
		return nil, resterror.New(resterror.KindServerError, 0, "list response missing count or results")
	}
	return &ListResult{Data: page.Results, Total: *page.Count}, nil
}

// mergeRecord overlays the server response onto the submitted body so
// server-assigned fields appear without losing any sent field.
func mergeRecord(sent any, responseBody []byte) (json.RawMessage, error) {
	merged := map[string]any{}
	if sent != nil {
		sentJSON, err := json.Marshal(sent)
		if err != nil {
			return nil, errors.Wrap(err, "[mergeRecord] encode submitted body")
		}
		// Non-object bodies cannot be merged; fall through with an empty base.
		_ = json.Unmarshal(sentJSON, &merged)
	}

	if len(bytes.TrimSpace(responseBody)) > 0 {
		assigned := map[string]any{}
		if err := json.Unmarshal(responseBody, &assigned); err != nil {
			return nil, resterror.New(resterror.KindServerError, 0, "malformed create response: "+err.Error())
		}
		for key, value := range assigned {
			merged[key] = value
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "[mergeRecord] encode merged record")
	}
	return json.RawMessage(data), nil
}
