package runpod

import "sort"

// PodStatus is the desired status reported by the API.
type PodStatus string

const (
	StatusRunning PodStatus = "RUNNING"
	StatusExited  PodStatus = "EXITED"
)

// Pod represents a RunPod instance
type Pod struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DesiredStatus PodStatus `json:"desiredStatus"`
	GPUCount      int       `json:"gpuCount"`
	ImageName     string    `json:"imageName,omitempty"`
	MachineID     string    `json:"machineId,omitempty"`
	CostPerHr     float64   `json:"costPerHr,omitempty"`
	Machine       *Machine  `json:"machine,omitempty"`
	Runtime       *Runtime  `json:"runtime,omitempty"`
}

// Running reports whether the pod's desired status is RUNNING.
func (p *Pod) Running() bool {
	return p != nil && p.DesiredStatus == StatusRunning
}

// Machine describes the host a pod is placed on
type Machine struct {
	GPUDisplayName string `json:"gpuDisplayName"`
}

// Runtime represents runtime information
type Runtime struct {
	UptimeInSeconds int    `json:"uptimeInSeconds"`
	Ports           []Port `json:"ports"`
}

// Port represents a port mapping
type Port struct {
	IP          string `json:"ip"`
	IsIPPublic  bool   `json:"isIpPublic"`
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort"`
	Type        string `json:"type"`
}

// EnvVar is a single container environment variable
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreatePodInput is the podFindAndDeployOnDemand input. Pointer and slice
// fields are optional and left out of the request when nil.
type CreatePodInput struct {
	Name              string `json:"name"`
	ImageName         string `json:"imageName"`
	GPUTypeID         string `json:"gpuTypeId"`
	GPUCount          int    `json:"gpuCount"`
	ContainerDiskInGB int    `json:"containerDiskInGb"`
	CloudType         string `json:"cloudType"`
	SupportPublicIP   bool   `json:"supportPublicIp"`
	StartSSH          bool   `json:"startSsh"`
	VolumeInGB        int    `json:"volumeInGb"`
	MinVCPUCount      int    `json:"minVcpuCount"`
	MinMemoryInGB     int    `json:"minMemoryInGb"`
	DockerArgs        string `json:"dockerArgs"`
	VolumeMountPath   string `json:"volumeMountPath"`

	DataCenterID        *string  `json:"dataCenterId,omitempty"`
	CountryCode         *string  `json:"countryCode,omitempty"`
	Ports               *string  `json:"ports,omitempty"`
	Env                 []EnvVar `json:"env,omitempty"`
	TemplateID          *string  `json:"templateId,omitempty"`
	NetworkVolumeID     *string  `json:"networkVolumeId,omitempty"`
	AllowedCudaVersions []string `json:"allowedCudaVersions,omitempty"`
	MinDownload         *int     `json:"minDownload,omitempty"`
	MinUpload           *int     `json:"minUpload,omitempty"`
}

// EnvFromMap converts an environment map to the API's key/value list, sorted
// by key. A nil map yields nil.
func EnvFromMap(env map[string]string) []EnvVar {
	if env == nil {
		return nil
	}
	vars := make([]EnvVar, 0, len(env))
	for k, v := range env {
		vars = append(vars, EnvVar{Key: k, Value: v})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars
}
