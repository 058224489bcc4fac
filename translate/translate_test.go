package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewWithLogger(Config{Endpoint: srv.URL}, zap.NewNop()), &calls
}

func TestTranslate(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		assert.Equal(t, "en", q.Get("sl"))
		assert.Equal(t, "mr", q.Get("tl"))
		assert.Equal(t, "t", q.Get("dt"))
		assert.Equal(t, "Primary School", q.Get("q"))
		w.Write([]byte(`[[["प्राथमिक ","Primary ",null,null,1],["शाळा","School",null,null,1]],null,"en"]`))
	})

	out, err := c.Translate(context.Background(), "Primary School")
	require.NoError(t, err)
	assert.Equal(t, "प्राथमिक शाळा", out)

	// second call is served from the cache
	out, err = c.Translate(context.Background(), "Primary School")
	require.NoError(t, err)
	assert.Equal(t, "प्राथमिक शाळा", out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranslateBlankSkipsRequest(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	out, err := c.Translate(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTranslateErrors(t *testing.T) {
	testCases := map[string]http.HandlerFunc{
		"Status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"NotJSON": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		},
		"Empty": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		},
		"NoSentences": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[],null,"en"]`))
		},
	}

	for name, handler := range testCases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, handler)
			_, err := c.Translate(context.Background(), "Ram")
			assert.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestTranslateCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[["x","y"]]]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Translate(ctx, "Ram")
	assert.ErrorIs(t, err, context.Canceled)
}
