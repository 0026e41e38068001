// Command pipelinectl runs a demonstration client pipeline and server
// pipeline wired back to back over an in-process transport: it submits a
// handful of requests through an echo service, optionally gated by an
// admission queue and a circuit breaker, and prints the responses.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skipperproto/pipeline/circuitpipe"
	"github.com/skipperproto/pipeline/clientdispatch"
	"github.com/skipperproto/pipeline/config"
	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/logging"
	"github.com/skipperproto/pipeline/metrics"
	"github.com/skipperproto/pipeline/pipeline"
	"github.com/skipperproto/pipeline/reactor"
	"github.com/skipperproto/pipeline/serverdispatch"
	"github.com/skipperproto/pipeline/transport"
)

// wireErr is the demo protocol's Error-frame payload.
type wireErr struct {
	Reason string
}

func (e wireErr) Error() string { return e.Reason }

func toWireErr(err error) wireErr { return wireErr{Reason: err.Error()} }
func fromWireErr(e wireErr) error { return e }

func echoService(msg frame.Message[string]) serverdispatch.Future[string] {
	return serverdispatch.Resolved[string](frame.WithoutBody("echo: "+msg.Head()), nil)
}

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix: cfg.ApplicationLogPrefix,
		Level:                cfg.ApplicationLogLevel,
	})
	log := logging.DefaultLog{}

	var m *metrics.Set
	if cfg.EnableMetrics {
		m = metrics.NewSet(prometheus.DefaultRegisterer, cfg.MetricsNamespace)
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Errorf("metrics listener stopped: %v", http.ListenAndServe(cfg.MetricsListener, nil))
		}()
	}

	clientTransport, serverTransport := transport.NewInProcessPair[string, string, wireErr](cfg.BodyChannelCapacity)

	client, clientDispatch := clientdispatch.New[string, string](cfg.BodyChannelCapacity)

	var service serverdispatch.Service[string, string] = echoService

	if cfg.EnableBreaker {
		breaker := circuitpipe.New[string, string](circuitpipe.Settings{
			ConsecutiveFailures: uint32(cfg.BreakerFailures),
			Timeout:             cfg.BreakerTimeout,
			HalfOpenRequests:    uint32(cfg.BreakerHalfOpenProbes),
		})
		service = breaker.Wrap(service)
	}

	var serverOpts []serverdispatch.Option[string, string]
	if cfg.EnableAdmission {
		serverOpts = append(serverOpts, serverdispatch.WithAdmission[string, string](serverdispatch.AdmissionConfig{
			MaxConcurrency: cfg.MaxConcurrency,
			MaxQueueSize:   cfg.MaxQueueSize,
			Timeout:        cfg.AdmissionTimeout,
		}))
	}
	serverDispatch := serverdispatch.New(service, serverOpts...)

	clientPipeline := pipeline.NewClient[string, string, wireErr](clientTransport, clientDispatch, fromWireErr, log, m)
	serverPipeline := pipeline.NewServer[string, string, wireErr](serverTransport, serverDispatch, toWireErr, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- reactor.RunAll(ctx, cfg.IdleInterval, clientPipeline, serverPipeline)
	}()

	for i := 0; i < 3; i++ {
		req := frame.WithoutBody(fmt.Sprintf("hello-%d", i))
		resp, err := client.Submit(req).Wait(ctx)
		if err != nil {
			log.Errorf("request %d failed: %v", i, err)
			continue
		}
		log.Infof("request %d: %s", i, resp.Head())
	}

	stop()
	if err := <-done; err != nil && ctx.Err() == nil {
		log.Errorf("pipeline run stopped: %v", err)
	}
}
