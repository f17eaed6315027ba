package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClassifier calls the classification backend. The request is a JSON
// POST of {"prompt": <text>}; the response carries category, confidence
// and explanation.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClassifier(endpoint string, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClassifier{endpoint: endpoint, client: client}
}

type classifyRequest struct {
	Prompt string `json:"prompt"`
}

// classifyResponse accepts both the current wire shape
// (confidenceScore/explanationText) and the legacy backend's shape
// (confidence as "High"/"Medium"/"Low", explanation).
type classifyResponse struct {
	Category        string          `json:"category"`
	ConfidenceScore *float64        `json:"confidenceScore"`
	ExplanationText string          `json:"explanationText"`
	Confidence      json.RawMessage `json:"confidence"`
	Explanation     string          `json:"explanation"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	body, err := json.Marshal(classifyRequest{Prompt: text})
	if err != nil {
		return Classification{}, fmt.Errorf("classifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Classification{}, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Classification{}, fmt.Errorf("classifier: request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Classification{}, fmt.Errorf("classifier: status=%d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Classification{}, fmt.Errorf("classifier: decode response: %w", err)
	}
	if parsed.Category == "" {
		return Classification{}, fmt.Errorf("classifier: response missing category")
	}

	cls := Classification{
		Category:        parsed.Category,
		ExplanationText: parsed.ExplanationText,
	}
	if cls.ExplanationText == "" {
		cls.ExplanationText = parsed.Explanation
	}

	switch {
	case parsed.ConfidenceScore != nil:
		cls.ConfidenceScore = clamp01(*parsed.ConfidenceScore)
	case len(parsed.Confidence) > 0:
		score, err := legacyConfidence(parsed.Confidence)
		if err != nil {
			return Classification{}, err
		}
		cls.ConfidenceScore = score
	}

	return cls, nil
}

// legacyConfidence maps the original backend's confidence labels onto the
// bounded numeric scale. Numeric values are passed through.
func legacyConfidence(raw json.RawMessage) (float64, error) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return clamp01(num), nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return 0, fmt.Errorf("classifier: unrecognized confidence %s", raw)
	}
	switch label {
	case "High":
		return 0.9, nil
	case "Medium":
		return 0.6, nil
	case "Low":
		return 0.3, nil
	default:
		return 0, fmt.Errorf("classifier: unrecognized confidence label %q", label)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
