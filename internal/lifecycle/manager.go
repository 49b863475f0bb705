// Package lifecycle keeps exactly one named RunPod pod running and offers
// the matching cleanup and counting operations.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"podkeeper/internal/config"
	"podkeeper/internal/metrics"
	"podkeeper/internal/provider/runpod"
)

// terminateTimeout bounds failure-cleanup termination, which runs detached
// from the caller's context.
const terminateTimeout = 30 * time.Second

var (
	// ErrListFailed is returned when the initial pod listing fails.
	ErrListFailed = errors.New("failed to list pods")
	// ErrNoGPUTypes is returned when a pod must be created but no GPU types are configured.
	ErrNoGPUTypes = errors.New("no GPU types configured")
	// ErrCreationExhausted is returned when every GPU type and attempt failed.
	ErrCreationExhausted = errors.New("all creation attempts exhausted")
)

// PodAPI is the subset of the RunPod API the manager needs.
type PodAPI interface {
	ListPods(ctx context.Context) ([]*runpod.Pod, error)
	GetPod(ctx context.Context, id string) (*runpod.Pod, error)
	CreatePod(ctx context.Context, in *runpod.CreatePodInput) (*runpod.Pod, error)
	ResumePod(ctx context.Context, id string, gpuCount int) (*runpod.Pod, error)
	StopPod(ctx context.Context, id string) (*runpod.Pod, error)
	TerminatePod(ctx context.Context, id string) error
}

// Manager reconciles, cleans up and counts pods named by its configuration.
type Manager struct {
	client PodAPI
	cfg    *config.PodConfig
	log    logrus.FieldLogger

	// sleep waits between creation attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Manager for cfg.PodName.
func New(client PodAPI, cfg *config.PodConfig, log logrus.FieldLogger) *Manager {
	return &Manager{
		client: client,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// listPods returns every pod of the account, or nil and the error when the
// call fails. An empty slice is a successful, empty listing.
func (m *Manager) listPods(ctx context.Context) ([]*runpod.Pod, error) {
	m.log.Debug("Retrieving all pods from RunPod API")
	pods, err := m.client.ListPods(ctx)
	if err != nil {
		m.log.WithError(err).Error("Failed to retrieve pods from RunPod API")
		return nil, err
	}
	m.log.WithField("pods", pods).Debugf("Retrieved %d pods", len(pods))
	return pods, nil
}

// findFirstPod returns the first pod, in API order, whose name equals the
// configured name. A nil pod with a nil error means no pod matched.
func (m *Manager) findFirstPod(ctx context.Context) (*runpod.Pod, error) {
	pods, err := m.listPods(ctx)
	if err != nil {
		return nil, err
	}

	for _, pod := range pods {
		if pod == nil {
			continue
		}
		if pod.Name == m.cfg.PodName {
			m.log.WithField("pod_id", pod.ID).Debug("Found first matching pod")
			return pod, nil
		}
	}

	return nil, nil
}

// findAllPods returns every pod whose name equals the configured name.
func (m *Manager) findAllPods(ctx context.Context) ([]*runpod.Pod, error) {
	pods, err := m.listPods(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*runpod.Pod, 0, len(pods))
	for _, pod := range pods {
		if pod != nil && pod.Name == m.cfg.PodName {
			matching = append(matching, pod)
		}
	}
	m.log.Infof("Found %d pods matching name %q", len(matching), m.cfg.PodName)

	return matching, nil
}

// terminateSilently terminates a pod, logging but never returning errors.
// It runs even when ctx is already cancelled.
func (m *Manager) terminateSilently(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminateTimeout)
	defer cancel()

	log := m.log.WithField("pod_id", id)
	log.Warn("Terminating pod")
	if err := m.client.TerminatePod(ctx, id); err != nil {
		metrics.RecordAction(metrics.ActionTerminate, false)
		log.WithError(err).Error("Failed to terminate pod")
		return
	}
	metrics.RecordAction(metrics.ActionTerminate, true)
	log.Info("Terminate command sent")
}
