package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"podkeeper/internal/metrics"
	"podkeeper/internal/provider/runpod"
)

// Manage ensures a pod with the configured name is running and returns its ID.
//
// The first pod matching the name is used if there is one: a running pod is
// returned as is, a stopped one is resumed and re-read. If that fails the pod
// is terminated and, as when no pod exists, a new pod is created by trying
// each configured GPU type in order, up to CreateRetries times per type.
func (m *Manager) Manage(ctx context.Context) (string, error) {
	start := time.Now()
	id, err := m.manage(ctx)
	metrics.RecordReconcile(err == nil, time.Since(start).Seconds())
	return id, err
}

func (m *Manager) manage(ctx context.Context) (string, error) {
	m.log.Info("Starting singleton pod management")

	existing, err := m.findFirstPod(ctx)
	if err != nil {
		m.log.Error("Cannot manage pod state without a pod listing")
		return "", fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	if existing != nil {
		if id, ok := m.handleExistingPod(ctx, existing); ok {
			m.log.WithField("pod_id", id).Info("Existing pod is running")
			return id, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		m.log.Warn("Handling existing pod failed, creating a new one")
	} else {
		m.log.Infof("No existing pod found with name %q", m.cfg.PodName)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	return m.createNewPod(ctx)
}

// handleExistingPod returns the pod's ID if it is running, resuming it
// first if needed. A pod that cannot be resumed is terminated, unless ctx
// was cancelled: an interrupted resume leaves the pod alone.
func (m *Manager) handleExistingPod(ctx context.Context, pod *runpod.Pod) (string, bool) {
	log := m.log.WithField("pod_id", pod.ID)
	log.Infof("Handling existing pod with status %s", pod.DesiredStatus)

	if pod.Running() {
		return pod.ID, true
	}

	if !m.resumePod(ctx, pod.ID) {
		if ctx.Err() != nil {
			log.Warn("Resume interrupted, leaving pod in place")
			return "", false
		}
		log.Warn("Resume failed")
		m.terminateSilently(ctx, pod.ID)
		return "", false
	}

	if !m.validateResumedPod(ctx, pod.ID) {
		if ctx.Err() != nil {
			log.Warn("Validation interrupted, leaving pod in place")
			return "", false
		}
		log.Warn("Validation failed after resume")
		m.terminateSilently(ctx, pod.ID)
		return "", false
	}

	return pod.ID, true
}

func (m *Manager) resumePod(ctx context.Context, id string) bool {
	log := m.log.WithField("pod_id", id)
	log.Infof("Resuming pod with %d GPUs", m.cfg.GPUCount)

	resp, err := m.client.ResumePod(ctx, id, m.cfg.GPUCount)
	metrics.RecordAction(metrics.ActionResume, err == nil)
	if err != nil {
		log.WithError(err).Error("API error resuming pod")
		return false
	}
	log.WithField("response", resp).Debug("Resume command sent")

	return true
}

func (m *Manager) validateResumedPod(ctx context.Context, id string) bool {
	log := m.log.WithField("pod_id", id)

	pod, err := m.client.GetPod(ctx, id)
	if err != nil {
		log.WithError(err).Error("API error validating pod after resume")
		return false
	}
	log.WithField("pod", pod).Debug("Pod after resume")

	if !pod.Running() {
		log.Warnf("Pod did not reach RUNNING after resume (status: %s)", pod.DesiredStatus)
		return false
	}

	log.Info("Pod resumed and is RUNNING")
	return true
}

// createNewPod walks the GPU types in priority order and returns the first
// pod that is created and validated.
func (m *Manager) createNewPod(ctx context.Context) (string, error) {
	if len(m.cfg.GPUTypes) == 0 {
		m.log.Error("No GPU types specified in configuration, cannot create pod")
		return "", ErrNoGPUTypes
	}

	retries := m.cfg.CreateRetries
	wait := time.Duration(m.cfg.CreateRetryWaitSeconds) * time.Second

	for _, gpuType := range m.cfg.GPUTypes {
		log := m.log.WithField("gpu_type", gpuType)

		for attempt := 1; attempt <= retries; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			log.Infof("Creating pod (attempt %d/%d)", attempt, retries)
			id, ok := m.createAndValidatePod(ctx, gpuType)
			metrics.RecordCreateAttempt(gpuType, ok)
			if ok {
				log.WithField("pod_id", id).Info("Pod created and validated")
				return id, nil
			}

			if attempt < retries {
				log.Infof("Attempt %d failed, waiting %s before retrying", attempt, wait)
				if err := m.sleep(ctx, wait); err != nil {
					return "", err
				}
				continue
			}
			log.Warnf("All %d attempts failed", retries)
		}
	}

	m.log.WithField("gpu_types", m.cfg.GPUTypes).Error("All creation attempts failed")
	return "", ErrCreationExhausted
}

// createAndValidatePod creates one pod with gpuType and checks it carries
// the configured name and is RUNNING. A pod that fails the check is terminated.
func (m *Manager) createAndValidatePod(ctx context.Context, gpuType string) (string, bool) {
	input := m.createInput(gpuType)
	m.log.WithField("input", input).Debug("Create pod parameters")

	resp, err := m.client.CreatePod(ctx, input)
	if err != nil {
		metrics.RecordAction(metrics.ActionCreate, false)
		m.log.WithError(err).WithField("gpu_type", gpuType).Error("API error creating pod")
		return "", false
	}
	if resp == nil || resp.ID == "" {
		metrics.RecordAction(metrics.ActionCreate, false)
		m.log.WithField("response", resp).Error("Pod creation succeeded but returned no ID")
		return "", false
	}
	metrics.RecordAction(metrics.ActionCreate, true)

	id := resp.ID
	log := m.log.WithField("pod_id", id)
	log.Info("Pod creation initiated, validating")

	pod, err := m.client.GetPod(ctx, id)
	if err != nil {
		log.WithError(err).Error("Error validating new pod")
		m.terminateSilently(ctx, id)
		return "", false
	}
	log.WithField("pod", pod).Debug("Pod details for validation")

	nameMatches := pod.Name == m.cfg.PodName
	if !nameMatches || !pod.Running() {
		log.WithFields(logrus.Fields{
			"expected_name": m.cfg.PodName,
			"name":          pod.Name,
			"status":        pod.DesiredStatus,
		}).Warn("New pod failed validation")
		m.terminateSilently(ctx, id)
		return "", false
	}

	return id, true
}

// createInput builds the create request from the required fields, attaching
// each optional field only when it is configured.
func (m *Manager) createInput(gpuType string) *runpod.CreatePodInput {
	cfg := m.cfg
	in := &runpod.CreatePodInput{
		Name:            cfg.PodName,
		ImageName:       cfg.ImageName,
		GPUTypeID:       gpuType,
		GPUCount:        cfg.GPUCount,
		CloudType:       cfg.CloudType,
		SupportPublicIP: cfg.SupportPublicIP,
		StartSSH:        cfg.StartSSH,
		VolumeInGB:      cfg.VolumeInGB,
		MinVCPUCount:    cfg.MinVCPUCount,
		MinMemoryInGB:   cfg.MinMemoryInGB,
		DockerArgs:      cfg.DockerArgs,
		VolumeMountPath: cfg.VolumeMountPath,
	}
	if cfg.ContainerDiskInGB != nil {
		in.ContainerDiskInGB = *cfg.ContainerDiskInGB
	}

	if cfg.DataCenterID != nil {
		in.DataCenterID = cfg.DataCenterID
	}
	if cfg.CountryCode != nil {
		in.CountryCode = cfg.CountryCode
	}
	if cfg.Ports != nil {
		in.Ports = cfg.Ports
	}
	if cfg.Env != nil {
		in.Env = runpod.EnvFromMap(cfg.Env)
	}
	if cfg.TemplateID != nil {
		in.TemplateID = cfg.TemplateID
	}
	if cfg.NetworkVolumeID != nil {
		in.NetworkVolumeID = cfg.NetworkVolumeID
	}
	if cfg.AllowedCudaVersions != nil {
		in.AllowedCudaVersions = cfg.AllowedCudaVersions
	}
	if cfg.MinDownload != nil {
		in.MinDownload = cfg.MinDownload
	}
	if cfg.MinUpload != nil {
		in.MinUpload = cfg.MinUpload
	}

	return in
}
