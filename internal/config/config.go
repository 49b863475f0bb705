package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable consulted when no API key flag is given.
const APIKeyEnv = "RUNPOD_API_KEY"

// Defaults for optional keys
const (
	DefaultCloudType              = "ALL"
	DefaultGPUCount               = 1
	DefaultVolumeInGB             = 0
	DefaultMinVCPUCount           = 1
	DefaultMinMemoryInGB          = 1
	DefaultVolumeMountPath        = "/runpod-volume"
	DefaultCreateRetries          = 1
	DefaultCreateRetryWaitSeconds = 10
)

// ErrMissingAPIKey is returned when neither the flag nor the environment provide a key.
var ErrMissingAPIKey = errors.New("RunPod API key not found: provide --api-key or set " + APIKeyEnv)

// PodConfig describes the single pod to keep alive. It is immutable once loaded.
type PodConfig struct {
	// Identity and image
	PodName   string   `yaml:"pod_name"`
	ImageName string   `yaml:"image_name"`
	GPUTypes  []string `yaml:"gpu_types"` // priority order, first is preferred

	// Placement
	CloudType       string  `yaml:"cloud_type"`
	SupportPublicIP bool    `yaml:"support_public_ip"`
	StartSSH        bool    `yaml:"start_ssh"`
	DataCenterID    *string `yaml:"data_center_id"`
	CountryCode     *string `yaml:"country_code"`

	// Resources
	GPUCount          int  `yaml:"gpu_count"`
	VolumeInGB        int  `yaml:"volume_in_gb"`
	ContainerDiskInGB *int `yaml:"container_disk_in_gb"`
	MinVCPUCount      int  `yaml:"min_vcpu_count"`
	MinMemoryInGB     int  `yaml:"min_memory_in_gb"`

	// Container
	DockerArgs          string            `yaml:"docker_args"`
	Ports               *string           `yaml:"ports"`
	VolumeMountPath     string            `yaml:"volume_mount_path"`
	Env                 map[string]string `yaml:"env"`
	TemplateID          *string           `yaml:"template_id"`
	NetworkVolumeID     *string           `yaml:"network_volume_id"`
	AllowedCudaVersions []string          `yaml:"allowed_cuda_versions"`
	MinDownload         *int              `yaml:"min_download"` // Mbps
	MinUpload           *int              `yaml:"min_upload"`   // Mbps

	// Creation retries, per GPU type
	CreateRetries          int `yaml:"create_gpu_retries"`
	CreateRetryWaitSeconds int `yaml:"create_retry_wait_seconds"`
}

// Default returns a PodConfig with every optional key at its default.
func Default() *PodConfig {
	return &PodConfig{
		CloudType:              DefaultCloudType,
		SupportPublicIP:        true,
		StartSSH:               true,
		GPUCount:               DefaultGPUCount,
		VolumeInGB:             DefaultVolumeInGB,
		MinVCPUCount:           DefaultMinVCPUCount,
		MinMemoryInGB:          DefaultMinMemoryInGB,
		VolumeMountPath:        DefaultVolumeMountPath,
		CreateRetries:          DefaultCreateRetries,
		CreateRetryWaitSeconds: DefaultCreateRetryWaitSeconds,
	}
}

// Load loads configuration from file
func Load(path string) (*PodConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults, expanding ${VAR} references
// from the process environment, and validates the result.
func Parse(data []byte) (*PodConfig, error) {
	return parse(data, os.LookupEnv)
}

func parse(data []byte, lookup func(string) (string, bool)) (*PodConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := interpolate(&root, lookup); err != nil {
		return nil, err
	}

	cfg := Default()
	if len(root.Content) > 0 {
		if err := root.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the keys every mode needs
func (c *PodConfig) Validate() error {
	if c.PodName == "" {
		return fmt.Errorf("pod_name is required")
	}
	if c.GPUCount < 1 {
		return fmt.Errorf("gpu_count must be at least 1, got %d", c.GPUCount)
	}
	if c.CreateRetries < 1 {
		return fmt.Errorf("create_gpu_retries must be at least 1, got %d", c.CreateRetries)
	}
	if c.CreateRetryWaitSeconds < 0 {
		return fmt.Errorf("create_retry_wait_seconds must not be negative, got %d", c.CreateRetryWaitSeconds)
	}
	if c.VolumeInGB < 0 {
		return fmt.Errorf("volume_in_gb must not be negative, got %d", c.VolumeInGB)
	}
	if c.ContainerDiskInGB != nil && *c.ContainerDiskInGB < 0 {
		return fmt.Errorf("container_disk_in_gb must not be negative, got %d", *c.ContainerDiskInGB)
	}
	if c.MinVCPUCount < 0 {
		return fmt.Errorf("min_vcpu_count must not be negative, got %d", c.MinVCPUCount)
	}
	if c.MinMemoryInGB < 0 {
		return fmt.Errorf("min_memory_in_gb must not be negative, got %d", c.MinMemoryInGB)
	}
	if c.MinDownload != nil && *c.MinDownload < 0 {
		return fmt.Errorf("min_download must not be negative, got %d", *c.MinDownload)
	}
	if c.MinUpload != nil && *c.MinUpload < 0 {
		return fmt.Errorf("min_upload must not be negative, got %d", *c.MinUpload)
	}

	return nil
}

// ValidateForCreate checks the keys needed to create a pod. Counting and
// cleanup do not need them.
func (c *PodConfig) ValidateForCreate() error {
	if c.ImageName == "" {
		return fmt.Errorf("image_name is required")
	}
	if c.ContainerDiskInGB == nil {
		return fmt.Errorf("container_disk_in_gb is required")
	}

	return nil
}

// ResolveAPIKey returns the flag value if set, else the RUNPOD_API_KEY environment variable.
func ResolveAPIKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}
	return "", ErrMissingAPIKey
}
