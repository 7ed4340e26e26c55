package main

import (
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestShutdownSignals(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGTERM
		}()
	}

	server := &http.Server{}
	called := make(chan struct{}, 1)
	server.RegisterOnShutdown(func() {
		called <- struct{}{}
	})

	logger := zaptest.NewLogger(t)
	shutdown(server, nil, time.Millisecond, logger)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected server shutdown callback to execute")
	}
}

func TestShutdownReloadsOnHangup(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGHUP
			ch <- syscall.SIGTERM
		}()
	}

	reloaded := make(chan struct{}, 1)
	reload := func() error {
		reloaded <- struct{}{}
		return nil
	}

	logger := zaptest.NewLogger(t)
	shutdown(&http.Server{}, reload, time.Millisecond, logger)

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatalf("expected SIGHUP to trigger a configuration reload")
	}
}
