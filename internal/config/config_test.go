package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse([]byte(`
pod_name: trainer
image_name: runpod/pytorch:2.1.0
gpu_types: ["NVIDIA GeForce RTX 4090", "NVIDIA RTX A6000"]
container_disk_in_gb: 20
`), lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "trainer", cfg.PodName)
	assert.Equal(t, []string{"NVIDIA GeForce RTX 4090", "NVIDIA RTX A6000"}, cfg.GPUTypes)
	assert.Equal(t, "ALL", cfg.CloudType)
	assert.True(t, cfg.SupportPublicIP)
	assert.True(t, cfg.StartSSH)
	assert.Equal(t, 1, cfg.GPUCount)
	assert.Equal(t, 0, cfg.VolumeInGB)
	assert.Equal(t, 1, cfg.MinVCPUCount)
	assert.Equal(t, 1, cfg.MinMemoryInGB)
	assert.Equal(t, "", cfg.DockerArgs)
	assert.Equal(t, "/runpod-volume", cfg.VolumeMountPath)
	assert.Equal(t, 1, cfg.CreateRetries)
	assert.Equal(t, 10, cfg.CreateRetryWaitSeconds)
	require.NotNil(t, cfg.ContainerDiskInGB)
	assert.Equal(t, 20, *cfg.ContainerDiskInGB)

	assert.Nil(t, cfg.DataCenterID)
	assert.Nil(t, cfg.CountryCode)
	assert.Nil(t, cfg.Ports)
	assert.Nil(t, cfg.Env)
	assert.Nil(t, cfg.TemplateID)
	assert.Nil(t, cfg.NetworkVolumeID)
	assert.Nil(t, cfg.AllowedCudaVersions)
	assert.Nil(t, cfg.MinDownload)
	assert.Nil(t, cfg.MinUpload)
	assert.NoError(t, cfg.ValidateForCreate())
}

func TestParse_AllKeys(t *testing.T) {
	cfg, err := parse([]byte(`
pod_name: trainer
image_name: img
gpu_types: [A]
cloud_type: SECURE
support_public_ip: false
start_ssh: false
data_center_id: EU-RO-1
country_code: RO
gpu_count: 2
volume_in_gb: 50
container_disk_in_gb: 30
min_vcpu_count: 8
min_memory_in_gb: 32
docker_args: "bash -c 'sleep infinity'"
ports: "8888/http,22/tcp"
volume_mount_path: /workspace
env:
  HF_HOME: /workspace/hf
template_id: tmpl-1
network_volume_id: vol-1
allowed_cuda_versions: ["12.1", "12.2"]
min_download: 100
min_upload: 50
create_gpu_retries: 3
create_retry_wait_seconds: 0
`), lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "SECURE", cfg.CloudType)
	assert.False(t, cfg.SupportPublicIP)
	assert.False(t, cfg.StartSSH)
	assert.Equal(t, "EU-RO-1", *cfg.DataCenterID)
	assert.Equal(t, "RO", *cfg.CountryCode)
	assert.Equal(t, 2, cfg.GPUCount)
	assert.Equal(t, 50, cfg.VolumeInGB)
	assert.Equal(t, 8, cfg.MinVCPUCount)
	assert.Equal(t, 32, cfg.MinMemoryInGB)
	assert.Equal(t, "bash -c 'sleep infinity'", cfg.DockerArgs)
	assert.Equal(t, "8888/http,22/tcp", *cfg.Ports)
	assert.Equal(t, "/workspace", cfg.VolumeMountPath)
	assert.Equal(t, map[string]string{"HF_HOME": "/workspace/hf"}, cfg.Env)
	assert.Equal(t, "tmpl-1", *cfg.TemplateID)
	assert.Equal(t, "vol-1", *cfg.NetworkVolumeID)
	assert.Equal(t, []string{"12.1", "12.2"}, cfg.AllowedCudaVersions)
	assert.Equal(t, 100, *cfg.MinDownload)
	assert.Equal(t, 50, *cfg.MinUpload)
	assert.Equal(t, 3, cfg.CreateRetries)
	assert.Equal(t, 0, cfg.CreateRetryWaitSeconds)
}

func TestParse_NullOptionalIsAbsent(t *testing.T) {
	cfg, err := parse([]byte("pod_name: trainer\ntemplate_id: null\nmin_upload: ~\n"), lookupFrom(nil))
	require.NoError(t, err)
	assert.Nil(t, cfg.TemplateID)
	assert.Nil(t, cfg.MinUpload)
}

func TestParse_Interpolation(t *testing.T) {
	env := lookupFrom(map[string]string{
		"POD":     "from-env",
		"GPUS":    "4",
		"TOKEN":   "s3cret",
		"REGION":  "US-KS-2",
		"EMPTYOK": "",
	})

	cfg, err := parse([]byte(`
pod_name: ${POD}
gpu_count: !ENV ${GPUS}
data_center_id: "${REGION}"
image_name: registry.example.com/${IMAGE:-trainer}:${TAG:latest}
docker_args: "${EMPTYOK}"
env:
  TOKEN: ${TOKEN}
  STATIC: plain
`), env)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.PodName)
	assert.Equal(t, 4, cfg.GPUCount)
	assert.Equal(t, "US-KS-2", *cfg.DataCenterID)
	assert.Equal(t, "registry.example.com/trainer:latest", cfg.ImageName)
	assert.Equal(t, "", cfg.DockerArgs)
	assert.Equal(t, map[string]string{"TOKEN": "s3cret", "STATIC": "plain"}, cfg.Env)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty document", yaml: "", wantErr: "pod_name is required"},
		{name: "invalid yaml", yaml: "pod_name: [unclosed", wantErr: "failed to parse config file"},
		{name: "wrong type", yaml: "pod_name: p\ngpu_count: many", wantErr: "failed to parse config file"},
		{name: "unset variable", yaml: "pod_name: ${NOPE}", wantErr: "environment variable NOPE is not set"},
		{name: "zero gpu count", yaml: "pod_name: p\ngpu_count: 0", wantErr: "gpu_count must be at least 1"},
		{name: "zero retries", yaml: "pod_name: p\ncreate_gpu_retries: 0", wantErr: "create_gpu_retries must be at least 1"},
		{name: "negative wait", yaml: "pod_name: p\ncreate_retry_wait_seconds: -1", wantErr: "create_retry_wait_seconds must not be negative"},
		{name: "negative disk", yaml: "pod_name: p\ncontainer_disk_in_gb: -5", wantErr: "container_disk_in_gb must not be negative"},
		{name: "negative vcpu", yaml: "pod_name: p\nmin_vcpu_count: -1", wantErr: "min_vcpu_count must not be negative"},
		{name: "negative memory", yaml: "pod_name: p\nmin_memory_in_gb: -2", wantErr: "min_memory_in_gb must not be negative"},
		{name: "negative download", yaml: "pod_name: p\nmin_download: -10", wantErr: "min_download must not be negative"},
		{name: "negative upload", yaml: "pod_name: p\nmin_upload: -10", wantErr: "min_upload must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.yaml), lookupFrom(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateForCreate(t *testing.T) {
	disk := 10
	tests := []struct {
		name    string
		mutate  func(c *PodConfig)
		wantErr string
	}{
		{name: "complete", mutate: func(c *PodConfig) {}},
		{name: "missing image", mutate: func(c *PodConfig) { c.ImageName = "" }, wantErr: "image_name is required"},
		{name: "missing disk", mutate: func(c *PodConfig) { c.ContainerDiskInGB = nil }, wantErr: "container_disk_in_gb is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.PodName = "p"
			cfg.ImageName = "img"
			cfg.ContainerDiskInGB = &disk
			tt.mutate(cfg)

			err := cfg.ValidateForCreate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pod.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pod_name: from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.PodName)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "env-key")

	key, err := ResolveAPIKey("flag-key")
	require.NoError(t, err)
	assert.Equal(t, "flag-key", key)

	key, err = ResolveAPIKey("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)

	t.Setenv(APIKeyEnv, "")
	_, err = ResolveAPIKey("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
