package speller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// echoService flags every text's first word and records the batches it saw.
type echoService struct {
	batches [][]string
	failOn  int
	short   bool
	name    string
}

func (s *echoService) CheckTexts(ctx context.Context, texts []string) ([][]Suggestion, error) {
	s.batches = append(s.batches, append([]string(nil), texts...))
	if s.failOn > 0 && len(s.batches) == s.failOn {
		return nil, ErrTransport
	}
	out := make([][]Suggestion, len(texts))
	for i, t := range texts {
		word := strings.Fields(t)[0]
		out[i] = []Suggestion{{Word: word, Position: 0, Length: len([]rune(word)), Candidates: []string{word + "!"}}}
	}
	if s.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func (s *echoService) Name() string {
	if s.name != "" {
		return s.name
	}
	return "echo"
}
func (s *echoService) Close() error { return nil }

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]Suggestion
}

func (c *memoryCache) Lookup(ctx context.Context, provider, lang string, texts []string) (map[int][]Suggestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hits := make(map[int][]Suggestion)
	for i, t := range texts {
		if s, ok := c.items[provider+"|"+lang+"|"+t]; ok {
			hits[i] = s
		}
	}
	return hits, nil
}

func (c *memoryCache) Store(ctx context.Context, provider, lang string, texts []string, results [][]Suggestion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range texts {
		c.items[provider+"|"+lang+"|"+t] = results[i]
	}
	return nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1) + " tail"
	}
	return out
}

func TestClientCheckAll(t *testing.T) {
	logger := zap.NewNop()

	t.Run("batches of five in order", func(t *testing.T) {
		svc := &echoService{}
		client := NewClient(svc, nil, &Config{Lang: "ru", BatchSize: 5}, logger)

		var reports [][2]int
		progress := ProgressFunc(func(done, total int) { reports = append(reports, [2]int{done, total}) })

		in := texts(12)
		got, err := client.CheckAll(context.Background(), in, progress)
		require.NoError(t, err)
		require.Len(t, got, 12)

		require.Len(t, svc.batches, 3)
		assert.Len(t, svc.batches[0], 5)
		assert.Len(t, svc.batches[1], 5)
		assert.Len(t, svc.batches[2], 2)
		for i, list := range got {
			require.Len(t, list, 1)
			assert.Equal(t, strings.Fields(in[i])[0], list[0].Word)
		}

		assert.Equal(t, [][2]int{{5, 12}, {10, 12}, {12, 12}}, reports)
	})

	t.Run("empty input", func(t *testing.T) {
		svc := &echoService{}
		client := NewClient(svc, nil, &Config{BatchSize: 5}, logger)
		got, err := client.CheckAll(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, svc.batches)
	})

	t.Run("zero batch size falls back to default", func(t *testing.T) {
		svc := &echoService{}
		client := NewClient(svc, nil, &Config{}, logger)
		_, err := client.CheckAll(context.Background(), texts(6), nil)
		require.NoError(t, err)
		require.Len(t, svc.batches, 2)
		assert.Len(t, svc.batches[0], DefaultBatchSize)
	})

	t.Run("service error aborts the run", func(t *testing.T) {
		svc := &echoService{failOn: 2}
		client := NewClient(svc, nil, &Config{BatchSize: 2}, logger)
		_, err := client.CheckAll(context.Background(), texts(6), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransport))
		assert.Len(t, svc.batches, 2)
		assert.Equal(t, int64(1), client.GetStats().FailedRequests)
	})

	t.Run("short response is invalid", func(t *testing.T) {
		svc := &echoService{short: true}
		client := NewClient(svc, nil, &Config{BatchSize: 5}, logger)
		_, err := client.CheckAll(context.Background(), texts(3), nil)
		assert.True(t, errors.Is(err, ErrResponseInvalid))
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc := &echoService{}
		client := NewClient(svc, nil, &Config{BatchSize: 5}, logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.CheckAll(ctx, texts(3), nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, svc.batches)
	})
}

func TestClientCache(t *testing.T) {
	logger := zap.NewNop()
	cache := &memoryCache{items: map[string][]Suggestion{}}
	svc := &echoService{}
	client := NewClient(svc, cache, &Config{Lang: "ru", BatchSize: 5}, logger)

	in := texts(3)
	first, err := client.CheckAll(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, svc.batches, 1)

	// Second run mixes one new text with cached ones; only the new one is sent.
	in2 := append([]string{"fresh text"}, in...)
	second, err := client.CheckAll(context.Background(), in2, nil)
	require.NoError(t, err)
	require.Len(t, svc.batches, 2)
	assert.Equal(t, []string{"fresh text"}, svc.batches[1])
	assert.Equal(t, first, second[1:])
	assert.Equal(t, "fresh", second[0][0].Word)

	stats := client.GetStats()
	assert.Equal(t, int64(3), stats.CacheHits)
	assert.Equal(t, int64(7), stats.Texts)
	assert.Equal(t, int64(2), stats.Requests)
	assert.Equal(t, "echo", stats.Provider)

	// Fully cached batch issues no request.
	_, err = client.CheckAll(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Len(t, svc.batches, 2)
}

func TestClientCacheIsPerProvider(t *testing.T) {
	logger := zap.NewNop()
	cache := &memoryCache{items: map[string][]Suggestion{}}
	in := texts(2)

	yandex := &echoService{name: "yandex"}
	_, err := NewClient(yandex, cache, &Config{Lang: "ru"}, logger).CheckAll(context.Background(), in, nil)
	require.NoError(t, err)

	lt := &echoService{name: "languagetool"}
	client := NewClient(lt, cache, &Config{Lang: "ru"}, logger)
	_, err = client.CheckAll(context.Background(), in, nil)
	require.NoError(t, err)

	require.Len(t, lt.batches, 1)
	assert.Equal(t, in, lt.batches[0])
	assert.Zero(t, client.GetStats().CacheHits)
}

func TestMultiProgress(t *testing.T) {
	var a, b []int
	p := MultiProgress(
		ProgressFunc(func(done, total int) { a = append(a, done) }),
		nil,
		ProgressFunc(func(done, total int) { b = append(b, total) }),
	)
	p.Report(3, 9)
	assert.Equal(t, []int{3}, a)
	assert.Equal(t, []int{9}, b)
}

func TestTerminalProgress(t *testing.T) {
	var sb strings.Builder
	TerminalProgress(&sb).Report(5, 7)
	assert.Equal(t, "Progress: 5/7\r", sb.String())
}
