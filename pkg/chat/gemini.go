// pkg/chat/gemini.go
package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dghubble/sling"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// apiError is the error body of the generative language API
type apiError struct {
	Err struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("generative language API error %d (%s): %s", e.Err.Code, e.Err.Status, e.Err.Message)
}

type keyParam struct {
	Key string `url:"key"`
}

// geminiClient calls models/{model}:generateContent
type geminiClient struct {
	base  *sling.Sling
	model string
	key   string
}

func newGeminiClient(httpClient *http.Client, baseURL, model, key string) *geminiClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &geminiClient{
		base:  sling.New().Client(httpClient).Base(baseURL),
		model: model,
		key:   key,
	}
}

// generate sends one prompt and returns the first candidate's text, empty
// when the reply carries none
func (c *geminiClient) generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}

	req, err := c.base.New().
		Post("v1beta/models/"+c.model+":generateContent").
		QueryStruct(keyParam{Key: c.key}).
		BodyJSON(body).
		Request()
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	var success generateResponse
	failure := new(apiError)
	resp, err := c.base.Do(req.WithContext(ctx), &success, failure)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if failure.Err.Code == 0 {
			failure.Err.Code = resp.StatusCode
		}
		return "", failure
	}

	if len(success.Candidates) == 0 || len(success.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return success.Candidates[0].Content.Parts[0].Text, nil
}
