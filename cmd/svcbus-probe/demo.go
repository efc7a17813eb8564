package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	svcbus "github.com/glimte/svcbus-go"
	"github.com/glimte/svcbus-go/bridge"
	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/health"
	"github.com/glimte/svcbus-go/interceptors"
	"github.com/glimte/svcbus-go/internal/reliability"
	"github.com/glimte/svcbus-go/messaging"
	"github.com/glimte/svcbus-go/monitor"
	"github.com/glimte/svcbus-go/serialization"
	"github.com/glimte/svcbus-go/transports/memory"
)

type pingMessage interface {
	contracts.Message
	ping()
}

// Ping is sent by the demo client
type Ping struct {
	contracts.BaseCommand
	Seq int `json:"seq"`
}

func (*Ping) ping() {}

// Pong is published by the demo server for every Ping
type Pong struct {
	contracts.BaseEvent
	Seq int `json:"seq"`
}

func (*Pong) ping() {}

// GetStats asks the demo server how many pings it handled
type GetStats struct {
	contracts.BaseRequest
}

func (*GetStats) ping() {}

// Stats answers GetStats
type Stats struct {
	contracts.BaseResponse
	Handled int64 `json:"handled"`
}

func (*Stats) ping() {}

func demoTypes() []contracts.Message {
	return []contracts.Message{&Ping{}, &Pong{}, &GetStats{}, &Stats{}}
}

func newDemoCmd(flags *globalFlags) *cobra.Command {
	var (
		count  int
		listen string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a ping/pong service pair on an in-process broker",
		Long: `Runs a server and a client endpoint for a "Ping" service on the memory broker.
With --listen the process serves /metrics and /health until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runDemo(ctx, count, listen, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of pings")
	cmd.Flags().StringVar(&listen, "listen", "", "Address serving /metrics and /health, e.g. :9102")
	return cmd
}

func runDemo(ctx context.Context, count int, listen string, out io.Writer) error {
	registry := prometheus.NewRegistry()
	metrics, err := monitor.NewPrometheusCollector(monitor.WithRegisterer(registry))
	if err != nil {
		return err
	}

	broker := memory.NewBroker()
	defer broker.Close()

	types := serialization.NewTypeRegistry()
	if err := types.Register(demoTypes()...); err != nil {
		return err
	}

	svc, err := svcbus.Configure[pingMessage]().
		Named("Ping").
		UsingBroker(broker).
		UsingRegistry(types).
		WithQueueRoles(contracts.RoleCommand).
		WithAckMode(messaging.ClientAcknowledge).
		WithMetrics(metrics).
		AsClientAndServer()
	if err != nil {
		return err
	}
	defer svc.Close()

	chain := interceptors.NewInterceptorChain(slog.Default()).
		Add(interceptors.NewRecoveryInterceptor()).
		Add(interceptors.NewFilteringInterceptor(interceptors.AllOf(
			interceptors.RoleFilter(contracts.RoleCommand),
			interceptors.RegisteredTypeFilter(types, ""),
			interceptors.TargetServiceFilter("Ping"),
		), interceptors.RejectWithLog)).
		Add(interceptors.NewMetricsInterceptor(metrics)).
		Add(interceptors.NewLoggingInterceptor(slog.Default())).
		Add(interceptors.NewTimeoutInterceptor(5 * time.Second))

	var handled atomic.Int64
	serving, err := svc.Server.Commands().Subscribe(ctx, interceptors.Wrap[contracts.Command](chain, func(ctx context.Context, cmd contracts.Command) error {
		p, ok := cmd.(*Ping)
		if !ok {
			return fmt.Errorf("unexpected command %s", contracts.TypeName(cmd))
		}
		handled.Add(1)
		return svc.Server.Publish(ctx, &Pong{BaseEvent: contracts.NewBaseEvent(p.GetID(), int64(p.Seq)), Seq: p.Seq})
	}))
	if err != nil {
		return err
	}
	defer serving.Unsubscribe()

	answering, err := svc.Server.Requests().Subscribe(ctx, func(ctx context.Context, req contracts.Request) error {
		return svc.Server.Reply(ctx, req, &Stats{BaseResponse: contracts.NewBaseResponse(""), Handled: handled.Load()})
	})
	if err != nil {
		return err
	}
	defer answering.Unsubscribe()

	stats, err := bridge.NewSyncAsyncBridge(ctx, svc.Client, svc.Client.Responses(),
		bridge.WithDefaultTimeout(5*time.Second),
		bridge.WithRetryPolicy(reliability.NewFixedDelay(100*time.Millisecond, 2)))
	if err != nil {
		return err
	}
	defer stats.Close()

	var pongs atomic.Int64
	allPongs := make(chan struct{})
	listening, err := svc.Client.Events().Subscribe(ctx, func(_ context.Context, e contracts.Event) error {
		fmt.Fprintf(out, "pong %d\n", e.GetSequence())
		if pongs.Add(1) == int64(count) {
			close(allPongs)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer listening.Unsubscribe()

	checks := health.NewRegistry()
	checks.Register(health.NewSubscriptionChecker("commands", serving))
	checks.Register(health.NewSubscriptionChecker("events", listening), health.Optional())
	checks.Register(health.NewSubscriptionChecker("requests", answering))
	checks.Register(health.NewBrokerChecker("memory", broker, nil))

	// misaddressed, so the filter drops it and the server never counts it
	if err := svc.Client.Send(ctx, &Ping{BaseCommand: contracts.NewBaseCommand("Elsewhere")}); err != nil {
		return err
	}
	for i := 1; i <= count; i++ {
		if err := svc.Client.Send(ctx, &Ping{BaseCommand: contracts.NewBaseCommand("Ping"), Seq: i}); err != nil {
			return err
		}
	}

	if count > 0 {
		select {
		case <-allPongs:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return errors.New("timed out waiting for pongs")
		}
	}

	reply, err := bridge.RequestTyped[*Stats](ctx, stats, &GetStats{BaseRequest: contracts.NewBaseRequest("svcbus-probe")}, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "server handled %d pings\n", reply.Handled)

	if listen == "" {
		return nil
	}
	return serve(ctx, listen, registry, checks)
}

func serve(ctx context.Context, addr string, registry *prometheus.Registry, checks *health.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", health.NewHandler(checks, 5*time.Second))
	mux.Handle("/ready", health.ReadinessHandler(checks))
	mux.Handle("/live", health.LivenessHandler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics and health", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
