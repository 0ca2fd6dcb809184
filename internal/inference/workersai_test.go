package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-relay/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorkersAI(t *testing.T, handler http.HandlerFunc) *WorkersAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	w, err := NewWorkersAI(WorkersAIConfig{
		BaseURL:   srv.URL,
		AccountID: "acct",
		APIToken:  "token",
		Client:    srv.Client(),
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return w
}

func TestWorkersAIRunStreamsBody(t *testing.T) {
	bodies := make(chan shared.InferenceBody, 1)
	w := newTestWorkersAI(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/acct/ai/run/@cf/meta/llama-3-8b-instruct", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var got shared.InferenceBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		bodies <- got

		rw.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(rw, "data: {\"response\":\"Ok\"}\n\ndata: [DONE]\n\n")
	})

	msgs := []shared.ChatMessage{
		{Role: shared.RoleSystem, Content: "Be terse."},
		{Role: shared.RoleUser, Content: "Hi"},
	}
	stream, err := w.Run(context.Background(), "@cf/meta/llama-3-8b-instruct", msgs)
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"response\":\"Ok\"}\n\ndata: [DONE]\n\n", string(body))
	got := <-bodies
	assert.True(t, got.Stream)
	assert.Equal(t, msgs, got.Messages)
}

func TestWorkersAIRunNon200(t *testing.T) {
	w := newTestWorkersAI(t, func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, `{"errors":[{"message":"capacity"}]}`, http.StatusServiceUnavailable)
	})

	stream, err := w.Run(context.Background(), "m1", nil)
	require.Error(t, err)
	assert.Nil(t, stream)

	var rerr *shared.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusServiceUnavailable, rerr.StatusCode)
	assert.ErrorIs(t, err, shared.ErrFailedModelReqFromCode)
}

func TestWorkersAIRunUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	w, err := NewWorkersAI(WorkersAIConfig{BaseURL: srv.URL, AccountID: "acct"}, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = w.Run(context.Background(), "m1", nil)
	assert.ErrorIs(t, err, shared.ErrFailedModelReq)
}

func TestNewWorkersAIRequiresAccount(t *testing.T) {
	_, err := NewWorkersAI(WorkersAIConfig{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestWorkersAIListModels(t *testing.T) {
	w := newTestWorkersAI(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/ai/models/search", r.URL.Path)
		assert.Equal(t, "Text Generation", r.URL.Query().Get("task"))
		_, _ = io.WriteString(rw, `{"success":true,"errors":[],"result":[
			{"id":"a1","name":"@cf/meta/llama-3-8b-instruct","description":"Llama 3","task":{"name":"Text Generation"}},
			{"id":"b2","name":"@cf/mistral/mistral-7b-instruct-v0.1","description":"Mistral","task":{"name":"Text Generation"}}
		]}`)
	})

	models, err := w.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, shared.Model{
		ID:          "@cf/meta/llama-3-8b-instruct",
		Name:        "@cf/meta/llama-3-8b-instruct",
		Description: "Llama 3",
		Task:        "Text Generation",
	}, models[0])
}

func TestWorkersAIListModelsUnsuccessful(t *testing.T) {
	w := newTestWorkersAI(t, func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"result":null}`)
	})

	_, err := w.ListModels(context.Background())
	assert.ErrorContains(t, err, "Authentication error")
}
