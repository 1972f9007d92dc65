package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicdocs/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbedderConfig
		wantType any
		wantErr  error
	}{
		{name: "stub", cfg: config.EmbedderConfig{Provider: config.ProviderStub, Dim: 4}, wantType: &Stub{}},
		{name: "ollama", cfg: config.EmbedderConfig{Provider: config.ProviderOllama}, wantType: &OllamaEmbedder{}},
		{name: "openai", cfg: config.EmbedderConfig{Provider: config.ProviderOpenAI, OpenAI: config.OpenAIConfig{APIKey: "k"}}, wantType: &OpenAIEmbedder{}},
		{name: "unknown", cfg: config.EmbedderConfig{Provider: "word2vec"}, wantErr: config.ErrUnknownProvider},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New(tc.cfg)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.wantType, e)
		})
	}
}

func TestNew_OpenAIWithoutKey(t *testing.T) {
	_, err := New(config.EmbedderConfig{Provider: config.ProviderOpenAI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestStub_Deterministic(t *testing.T) {
	s := NewStub("stub-model", 16, 42)
	ctx := context.Background()

	a, err := s.Embed(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	b, err := s.Embed(ctx, []string{"x", "y", "z"})
	require.NoError(t, err)

	require.Len(t, a, 3)
	for i := range a {
		assert.Len(t, a[i], 16)
		assert.Equal(t, a[i], b[i], "vector %d differs between calls", i)
	}
	assert.NotEqual(t, a[0], a[1])
	assert.Equal(t, "stub-model", s.Model())
}

func TestStub_SeedMatters(t *testing.T) {
	ctx := context.Background()
	a, err := NewStub("m", 8, 42).Embed(ctx, []string{"q"})
	require.NoError(t, err)
	b, err := NewStub("m", 8, 7).Embed(ctx, []string{"q"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], b[0])
}

func TestStub_Empty(t *testing.T) {
	out, err := NewStub("m", 8, 42).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAI_MapsByIndex(t *testing.T) {
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL+"/v1/", "sk-test", "text-embedding-3-small", 0)
	require.NoError(t, err)

	out, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
	assert.Equal(t, "text-embedding-3-small", gotReq.Model)
}

func TestOpenAI_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "too few", body: `{"data":[{"index":0,"embedding":[1,2]}]}`},
		{name: "ragged", body: `{"data":[{"index":0,"embedding":[1,2]},{"index":1,"embedding":[1]}]}`},
		{name: "repeated index", body: `{"data":[{"index":0,"embedding":[1,2]},{"index":0,"embedding":[3,4]}]}`},
		{name: "index out of range", body: `{"data":[{"index":0,"embedding":[1,2]},{"index":5,"embedding":[3,4]}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			e, err := NewOpenAIEmbedder(srv.URL, "k", "m", 0)
			require.NoError(t, err)
			_, err = e.Embed(context.Background(), []string{"a", "b"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestOpenAI_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "k", "m", 0)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota")
}

func TestOllama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		resp := ollamaResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.5, 0.5, 0.5})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 0)
	out, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestOllama_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m", 0).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

type countingEmbedder struct {
	calls  int
	inputs [][]string
}

func (c *countingEmbedder) Model() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestCached(t *testing.T) {
	next := &countingEmbedder{}
	c, err := NewCached(next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Embed(ctx, []string{"bill of rights"})
	require.NoError(t, err)
	second, err := c.Embed(ctx, []string{"bill of rights"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	mixed, err := c.Embed(ctx, []string{"land", "bill of rights"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, []string{"land"}, next.inputs[1])
	assert.Equal(t, []float32{4, 1}, mixed[0])
	assert.Equal(t, first[0], mixed[1])
	assert.Equal(t, "counting", c.Model())
}

func TestCached_InvalidSize(t *testing.T) {
	_, err := NewCached(&countingEmbedder{}, 0)
	assert.Error(t, err)
}
