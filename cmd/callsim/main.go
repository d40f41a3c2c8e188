package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/control"
	"github.com/dennisdiepolder/callbridge/internal/sim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	var (
		controlPort  = pflag.String("control-port", "8081", "Control API port")
		serverURL    = pflag.String("server-url", "http://localhost:8080", "callbridge server base URL")
		scenarioPath = pflag.String("scenario", "", "YAML scenario file (built-in defaults when empty)")
		autoStart    = pflag.Bool("auto-start", false, "Start the scenario immediately")
		logLevel     = pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	pflag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "callsim").
		Logger()

	scenario := sim.DefaultScenario()
	if *scenarioPath != "" {
		scenario, err = sim.LoadScenario(*scenarioPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load scenario")
		}
	}

	logger.Info().
		Str("server_url", *serverURL).
		Int("agents", scenario.Agents).
		Int("suppliers", scenario.Suppliers).
		Msg("starting callsim")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	simulator := sim.NewSimulator(*serverURL, logger)
	api := control.NewAPI(simulator, scenario, logger)

	go func() {
		if err := api.Start(ctx, ":"+*controlPort); err != nil {
			logger.Fatal().Err(err).Msg("control API stopped")
		}
	}()

	if *autoStart {
		if err := simulator.Start(scenario); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start simulation")
		}
	}

	printUsage(*controlPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down callsim")
	if simulator.Running() {
		simulator.Stop()
	}
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func printUsage(port string) {
	fmt.Println()
	fmt.Println("callsim control API")
	fmt.Println()
	fmt.Printf("  GET  http://localhost:%s/health   health check\n", port)
	fmt.Printf("  GET  http://localhost:%s/status   run status\n", port)
	fmt.Printf("  POST http://localhost:%s/start    start (body overrides scenario fields)\n", port)
	fmt.Printf("  POST http://localhost:%s/stop     stop\n", port)
	fmt.Printf("  GET  http://localhost:%s/config   base scenario (PUT to replace)\n", port)
	fmt.Printf("  GET  http://localhost:%s/stats    counters\n", port)
	fmt.Printf("  GET  http://localhost:%s/metrics  counters, Prometheus format\n", port)
	fmt.Println()
	fmt.Printf("  curl -X POST http://localhost:%s/start -d '{\"agents\":10,\"suppliers\":25}'\n", port)
	fmt.Println()
}
