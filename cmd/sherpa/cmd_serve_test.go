package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/sherpa/internal/infra/worker"
	"github.com/xavierca1/sherpa/internal/usecase"
)

func TestServe_BindFailureStopsWorkers(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	var runs atomic.Int32
	w := worker.NewPassWorker("dispatch", 10*time.Millisecond, func(context.Context) (usecase.PassReport, error) {
		runs.Add(1)
		return usecase.PassReport{}, nil
	}, nil)

	srv := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), srv, []*worker.PassWorker{w}) }()

	select {
	case err := <-done:
		var opErr *net.OpError
		assert.ErrorAs(t, err, &opErr)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestServe_ContextCancelShutsDownCleanly(t *testing.T) {
	w := worker.NewPassWorker("draft", time.Hour, func(context.Context) (usecase.PassReport, error) {
		return usecase.PassReport{}, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, []*worker.PassWorker{w}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
