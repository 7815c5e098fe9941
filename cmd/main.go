package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/adt/featureflag"
	adthttp "github.com/aukilabs/adt/http"
	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/adt/smoketest"
	adtws "github.com/aukilabs/adt/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "adt_info",
		Help:        "ADT server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"ADT_ADDR"                  help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"ADT_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"ADT_PUBLIC_ENDPOINT"       help:"The public endpoint where this server is reachable."`
	APIKey             string        `cli:""        env:"ADT_API_KEY"               help:"The key clients must send as a bearer token. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"ADT_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"ADT_LOG_INDENT"            help:"Indent logs."`
	MaxIndexes         int           `cli:""        env:"ADT_MAX_INDEXES"           help:"The maximum number of indexes. Zero means no limit."`
	MaxInsertSize      int           `cli:""        env:"ADT_MAX_INSERT_SIZE"       help:"The maximum number of elements in an insert request."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"ADT_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"ADT_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"ADT_SHUTDOWN_TIMEOUT"      help:"The time given to in-flight requests when the server stops."`
	SmokeTestResultURL string        `cli:",hidden" env:"ADT_SMOKE_TEST_RESULT_URL" help:"Where smoke test results are posted. Results are only logged when empty."`
	Events             eventsConfig  `cli:",hidden" env:"-"                         help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"ADT_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                         help:"Show version."`
	Help               bool          `cli:""        env:"-"                         help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"ADT_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables the event pusher."`
	FlushInterval time.Duration `cli:",hidden" env:"ADT_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"ADT_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"ADT_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		MaxInsertSize:      10000,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    time.Second * 10,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the ADT spatial index server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "adt",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	if unknown := flags.Unknown(); len(unknown) != 0 {
		logs.Warn(errors.New("unknown feature flags").WithTag("flags", unknown))
	}

	indexes := models.IndexStore{
		MaxIndexes:   conf.MaxIndexes,
		VerifySearch: flags.Has(featureflag.FlagVerifySearch),
	}

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", adthttp.HandleWithCORS(http.HandlerFunc(adthttp.HandleHealthCheck)))
	service.Handle("/version", adthttp.HandleWithCORS(http.HandlerFunc(adthttp.HandleVersion(version))))
	service.Handle("/ready", adthttp.HandleWithCORS(http.HandlerFunc(adthttp.HandleReadyCheck(readinessCheck))))

	flags.IfNotSet(featureflag.FlagDisableHTTPAPI, func() {
		api := adthttp.IndexAPI{
			Indexes:       &indexes,
			MaxInsertSize: conf.MaxInsertSize,
		}
		h := adthttp.HandleWithCORS(adthttp.VerifyAPIKeyHandler(conf.APIKey, api.Handler()))

		service.Handle("/indexes", h)
		service.Handle("/indexes/", h)
	})

	flags.IfNotSet(featureflag.FlagDisableSmokeTest, func() {
		client := http.Client{Transport: transport}

		service.Handle("/smoke-test", adthttp.VerifyAPIKeyHandler(conf.APIKey, smoketest.HandleSmokeTest(ctx, smoketest.Options{
			Endpoint:  conf.PublicEndpoint,
			UserAgent: fmt.Sprintf("ADT %s", version),
			SendResult: func(ctx context.Context, res smoketest.Results) error {
				return sendSmokeTestResult(ctx, &client, conf.SmokeTestResultURL, res)
			},
		})))
	})

	flags.IfNotSet(featureflag.FlagDisableWebSocket, func() {
		service.Handle("/", adthttp.HandleWithCORS(websocket.Server{
			Handshake: adthttp.VerifyAPIKey(conf.APIKey),
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var qh adtws.Handler = &adtws.QueryHandler{
					ClientIdleTimeout: conf.ClientIdleTimeout,
					Indexes:           &indexes,
					MaxInsertSize:     conf.MaxInsertSize,
				}
				h := adtws.HandlerWithLogs(qh, conf.LogSummaryInterval)
				h = adtws.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				adtws.Handle(ctx, conn, h)
			},
		}))

		service.Handle("/ping", websocket.Server{
			Handler: func(ws *websocket.Conn) {
				defer ws.Close()
				io.Copy(ws, ws)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", adthttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", adthttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", conf.FeatureFlags).
		WithTag("auth", conf.APIKey != "").
		Info("starting adt server")

	adthttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			adthttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	logs.WithTag("indexes", indexes.Len()).Info("adt server stopped")
}

func sendSmokeTestResult(ctx context.Context, client *http.Client, endpoint string, res smoketest.Results) error {
	logs.WithTag("to_endpoint", res.ToEndpoint).
		WithTag("status", res.Status).
		WithTag("latency_ms", res.LatencyMilliSec).
		Info("smoke test done")

	if endpoint == "" {
		return nil
	}

	body, err := json.Marshal(res)
	if err != nil {
		return errors.New("encoding smoke test result failed").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New("creating smoke test result request failed").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.New("posting smoke test result failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New("smoke test result rejected").
			WithTag("endpoint", endpoint).
			WithTag("status", resp.StatusCode)
	}
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.SmokeTestResultURL != "" {
		if _, err := url.ParseRequestURI(conf.SmokeTestResultURL); err != nil {
			return errors.New("invalid smoke test result url").Wrap(err)
		}
	}

	if conf.MaxIndexes < 0 {
		return errors.New("max indexes must not be negative").
			WithTag("max_indexes", conf.MaxIndexes)
	}

	if conf.MaxInsertSize < 0 {
		return errors.New("max insert size must not be negative").
			WithTag("max_insert_size", conf.MaxInsertSize)
	}
	return nil
}
