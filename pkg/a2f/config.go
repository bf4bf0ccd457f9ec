package a2f

import (
	"fmt"
	"net"
	"strconv"

	"github.com/visagekit/visage/pkg/engine"
)

// ServerConfig selects the model, solver and session limits for a server.
// Field tags cover the JSON, YAML and TOML config file formats.
type ServerConfig struct {
	Host        string `json:"host" yaml:"host" toml:"host"`
	Port        int    `json:"port" yaml:"port" toml:"port"`
	CudaDevice  int    `json:"cuda_device" yaml:"cuda_device" toml:"cuda_device"`
	MaxSessions int    `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions"`

	Model         string `json:"model" yaml:"model" toml:"model"`
	Diffusion     bool   `json:"diffusion" yaml:"diffusion" toml:"diffusion"`
	Identity      int    `json:"identity" yaml:"identity" toml:"identity"`
	ConstantNoise bool   `json:"constant_noise" yaml:"constant_noise" toml:"constant_noise"`

	UseGpuSolver    bool   `json:"use_gpu_solver" yaml:"use_gpu_solver" toml:"use_gpu_solver"`
	ExecutionOption string `json:"execution_option" yaml:"execution_option" toml:"execution_option"`

	FPSNumerator   int `json:"fps_numerator" yaml:"fps_numerator" toml:"fps_numerator"`
	FPSDenominator int `json:"fps_denominator" yaml:"fps_denominator" toml:"fps_denominator"`
}

// DefaultConfig returns the stock server configuration.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8765,
		CudaDevice:      0,
		MaxSessions:     4,
		Model:           "_data/generated/audio2face-sdk/samples/data/mark/model.json",
		Diffusion:       false,
		Identity:        0,
		ConstantNoise:   true,
		UseGpuSolver:    true,
		ExecutionOption: engine.ExecSkinTongue.String(),
		FPSNumerator:    60,
		FPSDenominator:  1,
	}
}

// Validate reports the first problem that would prevent a server from
// starting with this configuration.
func (c *ServerConfig) Validate() error {
	if c.MaxSessions <= 0 {
		return fmt.Errorf("a2f: max_sessions must be > 0, got %d", c.MaxSessions)
	}
	if c.FPSNumerator <= 0 || c.FPSDenominator <= 0 {
		return fmt.Errorf("a2f: frame rate must be > 0, got %d/%d", c.FPSNumerator, c.FPSDenominator)
	}
	if !c.UseGpuSolver {
		return fmt.Errorf("a2f: only the GPU solver is supported (use_gpu_solver must be true)")
	}
	if _, err := engine.ParseExecutionOption(c.ExecutionOption); err != nil {
		return err
	}
	return nil
}

// BundleConfig translates the server configuration into an engine bundle
// request.
func (c *ServerConfig) BundleConfig() (engine.BundleConfig, error) {
	opt, err := engine.ParseExecutionOption(c.ExecutionOption)
	if err != nil {
		return engine.BundleConfig{}, err
	}
	return engine.BundleConfig{
		ModelPath:     c.Model,
		Device:        c.CudaDevice,
		Diffusion:     c.Diffusion,
		Identity:      c.Identity,
		ConstantNoise: c.ConstantNoise,
		Execution:     opt,
		FPSNum:        c.FPSNumerator,
		FPSDen:        c.FPSDenominator,
	}, nil
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
