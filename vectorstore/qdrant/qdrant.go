// Package qdrant is a minimal REST client for a Qdrant collection
// implementing core.VectorIndex and core.VectorWriter. It assumes cosine
// distance and creates the collection if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
)

const payloadProductID = "product_id"

// pointNamespace derives stable point UUIDs from catalog IDs, since Qdrant
// only accepts UUIDs or unsigned integers as point IDs.
var pointNamespace = uuid.MustParse("8f3b2c1e-6a4d-4b7e-9c2f-1d5e7a9b3c40")

// Options configure the client.
type Options struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Index talks to one Qdrant collection.
type Index struct {
	opts   Options
	client *http.Client
}

// New creates a client. The default URL is http://localhost:6333 and the
// default collection "products".
func New(optFns ...func(o *Options)) *Index {
	opts := Options{URL: "http://localhost:6333", Collection: "products", Timeout: 15 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.URL = strings.TrimRight(opts.URL, "/")
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Index{opts: opts, client: client}
}

// PointID maps a catalog ID to its Qdrant point UUID.
func PointID(productID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(productID)).String()
}

// Init creates the collection when it does not exist yet.
func (s *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

// Upsert writes points with the document metadata as payload.
func (s *Index) Upsert(ctx context.Context, docs []core.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	points := make([]map[string]any, len(docs))
	for i, d := range docs {
		payload := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			payload[k] = v
		}
		payload[payloadProductID] = d.ID
		points[i] = map[string]any{
			"id":      PointID(d.ID),
			"vector":  vectors[i],
			"payload": payload,
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
		Vector  []float32      `json:"vector"`
	} `json:"result"`
}

// Search implements core.VectorIndex. Vectors are requested so callers can
// run diversity selection.
func (s *Index) Search(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp searchResponse
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	out := make([]core.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := catalog.CleanString(r.Payload[payloadProductID])
		if id == "" {
			id = fmt.Sprintf("%v", r.ID)
		}
		out = append(out, catalog.CandidateFromMetadata(id, r.Score, r.Payload, r.Vector))
	}
	return out, nil
}

// Count returns the number of points, or 0 when the collection is missing.
func (s *Index) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Drop deletes the collection.
func (s *Index) Drop(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	return err
}

func (s *Index) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.opts.URL, s.opts.Collection)
}

func (s *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("qdrant: encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("api-key", s.opts.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
