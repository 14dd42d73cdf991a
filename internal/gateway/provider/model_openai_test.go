package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

// 第一个连接被服务端掐断，客户端应当退避后重试而不是直接报错。
func TestCallWithMessages_RetriesTransportError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatReply(`{"price":"348.00"}`))
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "gpt-4o-mini", MaxRetries: 2}
	out, err := c.CallWithMessages(context.Background(), ChatPayload{User: "extract the price", ExpectJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"price":"348.00"}`, out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestCallWithMessages_Retries429WithRetryAfter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chatReply("ok"))
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "gpt-4o-mini", MaxRetries: 2}
	out, err := c.CallWithMessages(context.Background(), ChatPayload{User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

// 4xx（非 429）不重试。
func TestCallWithMessages_NoRetryOnBadRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "nope", MaxRetries: 2}
	_, err := c.CallWithMessages(context.Background(), ChatPayload{User: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
