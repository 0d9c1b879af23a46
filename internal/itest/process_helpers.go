// If you are AI: This file provides helper functions for starting and managing
// videopipe server processes in integration tests.

package itest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"videopipe/internal/config"
)

// StartServer starts the videopipe server as a subprocess, rewriting
// baseConfigPath's preview/health port to a free one, and returns the
// process and the port it's listening on.
func StartServer(ctx context.Context, baseConfigPath string) (*exec.Cmd, int, error) {
	port, err := freePort()
	if err != nil {
		return nil, 0, fmt.Errorf("find free port: %w", err)
	}

	binPath, err := findBinary()
	if err != nil {
		return nil, 0, fmt.Errorf("find binary: %w", err)
	}

	tempConfig, err := createTempConfig(baseConfigPath, port)
	if err != nil {
		return nil, 0, fmt.Errorf("create temp config: %w", err)
	}

	cmd := exec.CommandContext(ctx, binPath, "--config", tempConfig)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("start server: %w", err)
	}

	return cmd, port, nil
}

// freePort asks the kernel for a free TCP port by briefly binding to :0.
func freePort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// WaitForHealth waits for the health endpoint to become available.
// Returns an error if the endpoint is not available within the timeout.
func WaitForHealth(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://localhost:%d/healthz", port)

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("health endpoint not available after %v", timeout)
}

// findBinary locates the videopipe binary in one of its common build
// locations relative to this test package.
func findBinary() (string, error) {
	candidates := []string{
		"../../bin/videopipe",
		"bin/videopipe",
		filepath.Join(os.Getenv("GOPATH"), "bin", "videopipe"),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("videopipe binary not found; build it with: go build -o bin/videopipe ./cmd/videopipe")
}

// createTempConfig loads baseConfigPath, overrides the preview/health
// ports, and writes the result to a temp file. Loading through
// config.Load rather than textual substitution keeps this in step with
// whatever channels/sources/relays the base config declares. HealthPort
// and PreviewPort must differ (config.ServerConfig.Validate), even though
// only PreviewPort is ever actually bound.
func createTempConfig(baseConfigPath string, port int) (string, error) {
	cfg, err := config.Load(baseConfigPath)
	if err != nil {
		return "", fmt.Errorf("load base config: %w", err)
	}
	healthPort, err := freePort()
	if err != nil {
		return "", fmt.Errorf("find free health port: %w", err)
	}
	cfg.Server.PreviewPort = port
	cfg.Server.HealthPort = healthPort

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "videopipe-test-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	if _, err := tmpFile.Write(data); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("write temp config: %w", err)
	}

	return tmpFile.Name(), nil
}
