package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-relay/internal/shared"

	"github.com/manifold-inc/manifold-sdk/lib/utils"
	"go.uber.org/zap"
)

// WorkersAI runs models on the Cloudflare Workers AI REST API.
type WorkersAI struct {
	baseURL   string
	accountID string
	apiToken  string
	client    *http.Client
	log       *zap.SugaredLogger
}

type WorkersAIConfig struct {
	BaseURL   string
	AccountID string
	APIToken  string
	// Client overrides the default pooled client
	Client *http.Client
}

func NewWorkersAI(cfg WorkersAIConfig, log *zap.SugaredLogger) (*WorkersAI, error) {
	if cfg.AccountID == "" {
		return nil, errors.New("workers ai account id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = shared.DefaultInferenceBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, utils.Wrap("invalid inference base url", err)
	}
	client := cfg.Client
	if client == nil {
		client = newHTTPClient()
	}
	return &WorkersAI{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accountID: cfg.AccountID,
		apiToken:  cfg.APIToken,
		client:    client,
		log:       log,
	}, nil
}

func newHTTPClient() *http.Client {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: shared.DefaultDialTimeout,
		}).DialContext,
		TLSHandshakeTimeout: shared.DefaultTLSTimeout,
		DisableKeepAlives:   false,
	}
	return &http.Client{Transport: tr, Timeout: shared.DefaultStreamTimeout}
}

func (w *WorkersAI) accountURL(path string) string {
	return fmt.Sprintf("%s/accounts/%s/ai/%s", w.baseURL, url.PathEscape(w.accountID), path)
}

func (w *WorkersAI) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if w.apiToken != "" {
		r.Header.Set("Authorization", "Bearer "+w.apiToken)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r, nil
}

// Run posts the conversation with stream set and hands back the raw event
// stream. The request is bound to ctx, so canceling ctx tears down the
// upstream connection and unblocks reads on the stream.
func (w *WorkersAI) Run(ctx context.Context, model string, messages []shared.ChatMessage) (io.ReadCloser, error) {
	body, err := json.Marshal(shared.InferenceBody{Messages: messages, Stream: true})
	if err != nil {
		return nil, utils.Wrap("failed marshaling inference body", err)
	}

	r, err := w.newRequest(ctx, http.MethodPost, w.accountURL("run/"+model), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Join(shared.ErrFailedModelReq, err)
	}
	r.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	res, err := w.client.Do(r)
	if err != nil {
		return nil, errors.Join(shared.ErrFailedModelReq, err)
	}

	if res.StatusCode != http.StatusOK {
		defer func() {
			_ = res.Body.Close()
		}()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		w.log.Debugw("Inference backend rejected request",
			"model", model,
			"status_code", res.StatusCode,
			"response_body", shared.Truncate(string(msg), 512),
			"http_duration_ms", time.Since(start).Milliseconds())
		return nil, errors.Join(&shared.RequestError{
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("inference backend responded %s", res.Status),
		}, shared.ErrFailedModelReqFromCode)
	}
	return res.Body, nil
}

type modelSearchResponse struct {
	Success bool `json:"success"`
	Result  []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Task        struct {
			Name string `json:"name"`
		} `json:"task"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ListModels returns the text generation models visible to the account.
func (w *WorkersAI) ListModels(ctx context.Context) ([]shared.Model, error) {
	q := url.Values{"task": {"Text Generation"}}
	r, err := w.newRequest(ctx, http.MethodGet, w.accountURL("models/search")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := w.client.Do(r)
	if err != nil {
		return nil, errors.Join(shared.ErrFailedModelReq, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return nil, errors.Join(fmt.Errorf("model search responded %s", res.Status), shared.ErrFailedModelReqFromCode)
	}

	var parsed modelSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.Join(shared.ErrFailedReadingResponse, err)
	}
	if !parsed.Success {
		if len(parsed.Errors) > 0 {
			return nil, fmt.Errorf("model search failed: %s", parsed.Errors[0].Message)
		}
		return nil, errors.New("model search failed")
	}

	models := make([]shared.Model, 0, len(parsed.Result))
	for _, m := range parsed.Result {
		models = append(models, shared.Model{
			ID:          m.Name,
			Name:        m.Name,
			Description: m.Description,
			Task:        m.Task.Name,
		})
	}
	return models, nil
}
