// Package biometric talks to the face-embedding oracle.  The oracle is an
// external service that turns a captured image into a fixed-length
// embedding; matching two embeddings is a cosine-distance comparison
// against a model-specific threshold.
package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// ErrNoSubject is returned by Embed when the oracle finds no face in the
// image.  Callers surface it as its own rejection rather than a server
// error.
var ErrNoSubject = errors.New("biometric: no face detected")

// DefaultThreshold is the cosine-distance threshold of the Facenet model.
const DefaultThreshold = 0.40

// Embedding is a face feature vector.
type Embedding []float64

// Oracle is the embedding service used by biometric verification.
type Oracle interface {
	// Embed computes the embedding of a capture, or ErrNoSubject.
	Embed(ctx context.Context, img Image) (Embedding, error)
	// Match reports whether two embeddings belong to the same subject.
	Match(a, b Embedding) (bool, error)
}

// CosineDistance returns 1 - cos(a, b).  Vectors must have equal, non-zero
// length and non-zero norm.
func CosineDistance(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("biometric: embedding length mismatch (%d vs %d)", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("biometric: zero-norm embedding")
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// HTTPOracle calls an embedding sidecar over HTTP.
//
// The sidecar accepts POST {BaseURL}/represent with
// {"img": "<data url>", "model_name": "<model>"} and answers
// {"results": [{"embedding": [...]}]}.  A 400 or 422 response whose error
// mentions face detection is reported as ErrNoSubject.
type HTTPOracle struct {
	BaseURL   string
	Model     string
	Threshold float64
	Client    *http.Client
}

// NewHTTPOracle builds an oracle client with the given timeout.
func NewHTTPOracle(baseURL string, threshold float64, timeout time.Duration) *HTTPOracle {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOracle{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     "Facenet",
		Threshold: threshold,
		Client:    &http.Client{Timeout: timeout},
	}
}

type representRequest struct {
	Img       string `json:"img"`
	ModelName string `json:"model_name"`
}

type representResponse struct {
	Results []struct {
		Embedding Embedding `json:"embedding"`
	} `json:"results"`
	Error string `json:"error"`
}

// Embed implements Oracle.
func (o *HTTPOracle) Embed(ctx context.Context, img Image) (Embedding, error) {
	body, err := json.Marshal(representRequest{Img: img.DataURL(), ModelName: o.Model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/represent", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("biometric: oracle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("biometric: read oracle response: %w", err)
	}
	var out representResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("biometric: decode oracle response (status %d): %w", resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(out.Error), "detect") {
			return nil, ErrNoSubject
		}
		return nil, fmt.Errorf("biometric: oracle rejected image: %s", out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("biometric: oracle status %d: %s", resp.StatusCode, out.Error)
	}
	if len(out.Results) == 0 || len(out.Results[0].Embedding) == 0 {
		return nil, ErrNoSubject
	}
	return out.Results[0].Embedding, nil
}

// Match implements Oracle: the embeddings match when their cosine
// distance does not exceed the threshold.
func (o *HTTPOracle) Match(a, b Embedding) (bool, error) {
	d, err := CosineDistance(a, b)
	if err != nil {
		return false, err
	}
	return d <= o.Threshold, nil
}
