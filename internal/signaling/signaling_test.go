package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cnotch/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + Path
}

func TestExchange(t *testing.T) {
	var gotStream string
	s := NewServer(func(stream string, offer json.RawMessage) (json.RawMessage, error) {
		gotStream = stream
		var o map[string]string
		require.NoError(t, json.Unmarshal(offer, &o))
		return json.Marshal(map[string]string{"sdp": "answer-to-" + o["sdp"]})
	}, xlog.L())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c := NewClient(wsURL(srv), "cam0", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	answer, err := c.Exchange(ctx, json.RawMessage(`{"sdp":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sdp":"answer-to-x"}`, string(answer))
	assert.Equal(t, "cam0", gotStream)
}

func TestExchangeRefused(t *testing.T) {
	s := NewServer(func(string, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("busy")
	}, xlog.L())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, err := NewClient(wsURL(srv), "", nil).Exchange(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}

func TestExchangeNoServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewClient("ws://127.0.0.1:1"+Path, "", nil).Exchange(ctx, json.RawMessage(`{}`))
	assert.Error(t, err)
}
