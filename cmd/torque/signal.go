package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalHandler turns the first interrupt, SIGTERM or SIGHUP into a graceful
// shutdown of the session. A second signal while the session is still tearing down
// exits immediately with status 130.
type SignalHandler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	wg      sync.WaitGroup

	out  io.Writer
	exit func(int)
}

func NewSignalHandler(ctx context.Context) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	return &SignalHandler{
		ctx:     ctx,
		cancel:  cancel,
		sigChan: sigChan,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

func (s *SignalHandler) Context() context.Context {
	return s.ctx
}

func (s *SignalHandler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case sig, ok := <-s.sigChan:
			if !ok {
				return
			}
			fmt.Fprintf(s.out, "\nReceived %s, disconnecting (repeat to force quit)...\n", sig)
			s.cancel()
		case <-s.ctx.Done():
			return
		}

		// Stop closes sigChan once shutdown finished.
		if sig, ok := <-s.sigChan; ok {
			fmt.Fprintf(s.out, "Received %s again, exiting.\n", sig)
			s.exit(130)
		}
	}()
}

func (s *SignalHandler) Stop() {
	signal.Stop(s.sigChan)
	s.cancel()
	close(s.sigChan)
	s.wg.Wait()
}
