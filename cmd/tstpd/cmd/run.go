package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/config"
	"github.com/trustfulmesh/tstp/mac"
	"github.com/trustfulmesh/tstp/mactimer"
	"github.com/trustfulmesh/tstp/pipeline"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/radio"
	"github.com/trustfulmesh/tstp/smartdata"
	"github.com/trustfulmesh/tstp/stats"
	"github.com/trustfulmesh/tstp/tstp"
)

var (
	runConfigPath    string
	runNodeName      string
	runMetricsAddr   string
	runLogLevel      string
	runListenAddr    string
	runBroadcastAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a TSTP node against a real UDP-broadcast radio",
	RunE:  runNode,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to a node config YAML file")
	runCmd.Flags().StringVar(&runNodeName, "node-name", "", "override the configured node name")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "override the configured Prometheus listen address")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "override the configured log level")
	runCmd.Flags().StringVar(&runListenAddr, "listen", ":17754", "UDP address this node's radio binds")
	runCmd.Flags().StringVar(&runBroadcastAddr, "broadcast", "255.255.255.255:17754", "UDP address this node's radio transmits to")
	RootCmd.AddCommand(runCmd)
}

func runNode(c *cobra.Command, args []string) error {
	setFlags := map[string]bool{}
	c.Flags().Visit(func(f *pflag.Flag) { setFlags[f.Name] = true })

	cfg, err := config.PrepareConfig(runConfigPath, runNodeName, runMetricsAddr, runLogLevel, setFlags)
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}
	if err := applyLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	ConfigureVerbosity()

	rawRadio, err := radio.NewUDPRadio(radio.UDPRadioConfig{
		ListenAddr:    runListenAddr,
		BroadcastAddr: runBroadcastAddr,
		Chars:         cfg.Radio.Characteristics(),
		Logger:        log.StandardLogger(),
	})
	if err != nil {
		return fmt.Errorf("opening radio: %w", err)
	}
	defer rawRadio.Close()

	timer := mactimer.NewRealTimer()
	pool := buffer.NewPool(64, 128)
	location := pipeline.StaticLocation{Position: cfg.Coordinates.Coordinates()}
	clock := pipeline.ClockFunc(timer.Now)
	collector := stats.NewCollector(prometheus.DefaultRegisterer)

	var m *mac.MAC

	router := pipeline.Router{
		Location: location,
		Clock:    clock,
		Sink:     cfg.Sink.Coordinates(),
		Alloc:    pool.Alloc,
		Forward: func(fwd *buffer.Buffer) {
			m.Send(fwd)
			collector.BuffersForwarded.Inc()
		},
	}
	chain := pipeline.Chain{
		Locator:    pipeline.Locator{Location: location},
		Timekeeper: pipeline.Timekeeper{},
		Router:     router,
		Security:   pipeline.Security{},
	}

	var t *tstp.TSTP
	t = tstp.New(tstp.Config{
		Chain: chain,
		Pool:  pool,
		Clock: clock,
		NewID: func() protocol.FrameID { return m.NewFrameID() },
		Enqueue: func(buf *buffer.Buffer) {
			m.Send(buf)
		},
	})

	m = mac.New(mac.Config{
		Radio:           rawRadio,
		Timer:           timer,
		Pool:            pool,
		DutyCycle:       cfg.DutyCycle,
		OnReceive:       t.OnReceive,
		RefineRelevance: router.IsRelevant,
		Stats:           collector,
		Logger:          log.StandardLogger(),
	})

	bindings := attachBindings(cfg, t, clock)
	defer func() {
		for _, b := range bindings {
			b.Close()
		}
	}()

	go serveMetrics(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("tstpd: shutting down")
		cancel()
	}()

	log.Infof("tstpd: node %q running at %v, sink %v", cfg.NodeName, location.Position, router.Sink)
	m.Run(ctx)
	return nil
}

// nullSensor is the placeholder Sensor a config-driven Advertised or
// Commanded binding starts with until a real hardware driver is
// wired in; it always reports zero.
type nullSensor struct{}

func (nullSensor) Sense() (protocol.Value, protocol.Error) {
	return protocol.ValueFor(protocol.FormatD64, 0), 0
}

func attachBindings(cfg *config.Config, t *tstp.TSTP, clock pipeline.ClockStrategy) []*smartdata.SmartData {
	bindings := make([]*smartdata.SmartData, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		switch b.Mode {
		case "remote":
			bindings = append(bindings, smartdata.NewRemote(smartdata.RemoteConfig{
				TSTP:   t,
				Clock:  clock,
				Unit:   b.Unit,
				Format: protocol.FormatD64,
				Region: protocol.Region{
					Center: cfg.Coordinates.Coordinates(),
					Radius: b.Radius,
					T0:     0,
					T1:     protocol.Time(1<<63 - 1),
				},
				Period: protocol.TimeOffset(b.Period.Microseconds()),
				Expiry: protocol.Time(1<<63 - 1),
			}))
		case "private", "advertised", "commanded":
			mode := smartdata.Private
			switch b.Mode {
			case "advertised":
				mode = smartdata.Advertised
			case "commanded":
				mode = smartdata.Commanded
			}
			bindings = append(bindings, smartdata.NewLocal(smartdata.LocalConfig{
				TSTP:     t,
				Clock:    clock,
				Unit:     b.Unit,
				Format:   protocol.FormatD64,
				Sink:     cfg.Sink.Coordinates(),
				Location: cfg.Coordinates.Coordinates(),
				Mode:     mode,
				Sensor:   nullSensor{},
			}))
		}
	}
	return bindings
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("tstpd: serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("tstpd: metrics server stopped")
	}
}

func applyLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}
