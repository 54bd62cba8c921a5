// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartServeStop(t *testing.T) {
	r, _ := newLiveRouter(t)
	srv := NewServer("127.0.0.1:0", r, slog.New(slog.NewTextHandler(io.Discard, nil)))

	errCh, err := srv.Start()
	require.NoError(t, err)

	_, err = srv.Start()
	assert.Error(t, err, "double start")

	resp, err := http.Get("http://" + srv.Addr() + "/login")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `action="/login"`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx), "stop is idempotent")

	select {
	case serveErr, ok := <-errCh:
		if ok {
			assert.NoError(t, serveErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", http.NotFoundHandler(), nil)
	_, err := srv.Start()
	require.Error(t, err)
	assert.Empty(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}
