package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/visagekit/visage/cmd/visage/internal/config"
	"github.com/visagekit/visage/cmd/visage/internal/ops"
	"github.com/visagekit/visage/pkg/a2f"
	"github.com/visagekit/visage/pkg/engine"
	"github.com/visagekit/visage/pkg/engine/native"
	"github.com/visagekit/visage/pkg/engine/sim"
	"github.com/visagekit/visage/pkg/ws0"
)

var (
	serverConfigFile string
	serverSim        bool
	serverOpsAddr    string

	// Flags bind straight into the default configuration; a config file,
	// when given, sits between the defaults and explicit flags.
	serverCfg = a2f.DefaultConfig()
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the streaming inference server",
	Long: `Run the WebSocket inference server.

Clients open a session with a StartSession message, push 16 kHz mono
PCM16 audio as binary PushAudio frames, and receive one binary
animation frame per video frame with the blendshape weights.

Without a CUDA build the server refuses to start; pass --sim to use
the deterministic simulation engine instead.

Examples:
  visage server --sim
  visage server --model _data/mark/model.json --max_sessions 8
  visage server --config server.yaml --port 9000
  visage server --sim --ops_addr :9102`,
	RunE: runServer,
}

func init() {
	f := serverCmd.Flags()
	f.StringVar(&serverCfg.Host, "host", serverCfg.Host, "Bind host (IPv4)")
	f.IntVar(&serverCfg.Port, "port", serverCfg.Port, "Bind port")
	f.IntVar(&serverCfg.CudaDevice, "cuda_device", serverCfg.CudaDevice, "CUDA device id")
	f.IntVar(&serverCfg.MaxSessions, "max_sessions", serverCfg.MaxSessions, "Max concurrent sessions")
	f.StringVar(&serverCfg.Model, "model", serverCfg.Model, "Path to model.json")
	f.BoolVar(&serverCfg.Diffusion, "diffusion", serverCfg.Diffusion, "Use diffusion model")
	f.IntVar(&serverCfg.Identity, "identity", serverCfg.Identity, "Diffusion identity index")
	f.BoolVar(&serverCfg.ConstantNoise, "constant_noise", serverCfg.ConstantNoise, "Diffusion constant noise")
	f.StringVar(&serverCfg.ExecutionOption, "execution_option", serverCfg.ExecutionOption, "Execution option: SkinTongue|Skin|Tongue|None")
	f.IntVar(&serverCfg.FPSNumerator, "fps", serverCfg.FPSNumerator, "Frame rate numerator (denominator is 1)")
	f.StringVar(&serverConfigFile, "config", "", "Config file (.yaml, .json, or .toml)")
	f.BoolVar(&serverSim, "sim", false, "Use the simulation engine instead of CUDA")
	f.StringVar(&serverOpsAddr, "ops_addr", "", "Ops HTTP listen address (healthz, metrics, pprof); empty disables")

	rootCmd.AddCommand(serverCmd)
}

// resolveServerConfig layers defaults, the config file, and explicit
// flags, in that order.
func resolveServerConfig(cmd *cobra.Command) (a2f.ServerConfig, error) {
	if serverConfigFile == "" {
		return serverCfg, nil
	}

	cfg := a2f.DefaultConfig()
	if err := config.Load(serverConfigFile, &cfg); err != nil {
		return cfg, err
	}

	overrides := map[string]func(){
		"host":             func() { cfg.Host = serverCfg.Host },
		"port":             func() { cfg.Port = serverCfg.Port },
		"cuda_device":      func() { cfg.CudaDevice = serverCfg.CudaDevice },
		"max_sessions":     func() { cfg.MaxSessions = serverCfg.MaxSessions },
		"model":            func() { cfg.Model = serverCfg.Model },
		"diffusion":        func() { cfg.Diffusion = serverCfg.Diffusion },
		"identity":         func() { cfg.Identity = serverCfg.Identity },
		"constant_noise":   func() { cfg.ConstantNoise = serverCfg.ConstantNoise },
		"execution_option": func() { cfg.ExecutionOption = serverCfg.ExecutionOption },
		"fps":              func() { cfg.FPSNumerator = serverCfg.FPSNumerator },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	setupLogging()
	logger := slog.Default()

	cfg, err := resolveServerConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var provider engine.Provider = native.New()
	if serverSim {
		provider = sim.New()
		logger.Info("Using simulation engine (no CUDA)")
	}

	logger.Info("Initializing session pool", "max_sessions", cfg.MaxSessions, "model", cfg.Model)
	pool, err := a2f.NewPool(provider, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}
	defer pool.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		cancel()
	}()

	if serverOpsAddr != "" {
		opsSrv := &http.Server{Addr: serverOpsAddr, Handler: ops.Handler(nil)}
		go func() {
			logger.Info("Ops endpoints listening", "addr", serverOpsAddr)
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Ops server error", "error", err)
			}
		}()
		defer opsSrv.Shutdown(context.Background())
	}

	ln, err := ws0.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	defer ln.Close()

	srv := &a2f.Server{Pool: pool}
	go func() {
		<-ctx.Done()
		srv.Close()
		ln.Close()
	}()

	logger.Info("Inference server listening",
		"addr", ln.Addr(),
		"fps", fmt.Sprintf("%d/%d", cfg.FPSNumerator, cfg.FPSDenominator),
		"execution", cfg.ExecutionOption)
	if err := srv.Serve(ln); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
