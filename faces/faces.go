package faces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"photoserver/apperr"
	"photoserver/logutils"
	"photoserver/metrics"

	imrocreq "github.com/imroc/req/v3"
)

const (
	generateTimeout = 120 * time.Second
	findTimeout     = 60 * time.Second
	removeTimeout   = 60 * time.Second
)

var ErrNotConfigured = errors.New("face matching service is not configured")

// Client talks to the face matching service. It never interprets scores or
// embeddings, responses are handed back to the caller as they are.
type Client struct {
	baseURL   string
	threshold string
	req       *imrocreq.Client
}

// NewClient expects baseURL to end with a slash. threshold is forwarded to
// find_similar_faces when not empty.
func NewClient(baseURL, threshold string) *Client {
	return &Client{
		baseURL:   baseURL,
		threshold: threshold,
		req:       imrocreq.C().SetUserAgent("photoserver"),
	}
}

// EmbeddingArtifact is the name of the per album embeddings file kept by the service
func EmbeddingArtifact(photographer, slug string) string {
	return fmt.Sprintf("%s-%s_embeddings.json", photographer, slug)
}

func (c *Client) GenerateEmbeddings(ctx context.Context, urls []string, artifact string) (*Response, error) {
	return c.postJSON(ctx, "generate_embeddings", generateTimeout, EmbeddingRequest{ImageURLs: urls, EmbeddingFile: artifact})
}

func (c *Client) RemoveEmbeddings(ctx context.Context, urls []string, artifact string) (*Response, error) {
	return c.postJSON(ctx, "remove_embeddings", removeTimeout, EmbeddingRequest{ImageURLs: urls, EmbeddingFile: artifact})
}

// FindSimilar submits a reference image and returns the service answer untouched
func (c *Client) FindSimilar(ctx context.Context, image []byte, artifact string) (*Response, error) {
	if c.baseURL == "" {
		return nil, apperr.NewUpstream("Face matching service is not configured.", ErrNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, findTimeout)
	defer cancel()

	form := map[string]string{"embedding_file": artifact}
	if c.threshold != "" {
		form["threshold"] = c.threshold
	}
	resp, err := c.req.R().
		SetContext(ctx).
		SetFileBytes("file", "reference_image.jpg", image).
		SetFormData(form).
		Post(c.baseURL + "find_similar_faces/")
	return c.finish("find_similar_faces", resp, err)
}

func (c *Client) postJSON(ctx context.Context, op string, timeout time.Duration, body EmbeddingRequest) (*Response, error) {
	if c.baseURL == "" {
		return nil, apperr.NewUpstream("Face matching service is not configured.", ErrNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.req.R().
		SetContext(ctx).
		SetBodyJsonMarshal(body).
		Post(c.baseURL + op + "/")
	return c.finish(op, resp, err)
}

func (c *Client) finish(op string, resp *imrocreq.Response, err error) (*Response, error) {
	if err == nil && !resp.IsSuccessState() {
		err = fmt.Errorf("%s returned status %d", op, resp.StatusCode)
	}
	metrics.MLRequests.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		logutils.Log.WithField("op", op).Errorf("face matching request failed: %v", err)
		return nil, apperr.NewUpstream("Failed to connect to ML service.", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: resp.Bytes()}, nil
}

// Matches decodes a find_similar_faces answer
func (r *Response) Matches() (result MatchResult, err error) {
	err = json.Unmarshal(r.Body, &result)
	return result, err
}
