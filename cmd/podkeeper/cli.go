package main

import (
	"errors"
	"time"

	"podkeeper/internal/provider/runpod"
)

// CLI is the podkeeper command line.
type CLI struct {
	Config string `arg:"" type:"path" help:"Path to the YAML configuration file."`

	APIKey    string `name:"api-key" help:"RunPod API key (defaults to the RUNPOD_API_KEY environment variable)."`
	Count     bool   `help:"Count total and running pods matching the configured name and exit."`
	Stop      bool   `help:"Stop all running pods matching the configured name (can be combined with --terminate)."`
	Terminate bool   `help:"Terminate all pods matching the configured name (can be combined with --stop)."`
	Debug     bool   `help:"Enable debug logging."`

	LogFormat   string        `name:"log-format" enum:"text,json" default:"text" help:"Log format (text or json)."`
	Pushgateway string        `env:"PODKEEPER_PUSHGATEWAY" help:"Prometheus Pushgateway URL to push run metrics to."`
	APIURL      string        `name:"api-url" env:"RUNPOD_API_URL" hidden:"" help:"RunPod GraphQL endpoint."`
	Timeout     time.Duration `default:"30s" help:"Timeout of a single RunPod API request."`
}

// Validate rejects --count combined with a cleanup flag.
func (c *CLI) Validate() error {
	if c.Count && (c.Stop || c.Terminate) {
		return errors.New("--count is not allowed with --stop or --terminate")
	}
	return nil
}

func (c *CLI) cleanup() bool {
	return c.Stop || c.Terminate
}

func (c *CLI) baseURL() string {
	if c.APIURL == "" {
		return runpod.DefaultBaseURL
	}
	return c.APIURL
}
