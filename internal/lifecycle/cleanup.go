package lifecycle

import (
	"context"
	"fmt"

	"podkeeper/internal/metrics"
)

// CleanupOptions selects the cleanup actions. Both may be set; stop runs first.
type CleanupOptions struct {
	Stop      bool
	Terminate bool
}

// Cleanup stops the running pods and/or terminates all pods matching the
// configured name. A failing call on one pod does not prevent the others
// from being processed; only a failed listing or a cancelled ctx is
// returned as an error.
func (m *Manager) Cleanup(ctx context.Context, opts CleanupOptions) error {
	m.log.Info("Starting cleanup actions")

	matching, err := m.findAllPods(ctx)
	if err != nil {
		m.log.Error("Cannot perform cleanup actions without a pod listing")
		return fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	if len(matching) == 0 {
		m.log.Info("No pods found matching the name, nothing to clean up")
		return nil
	}

	if opts.Stop {
		stopped := 0
		for _, pod := range matching {
			if !pod.Running() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			stopped++

			log := m.log.WithField("pod_id", pod.ID)
			log.Info("Stopping pod")
			resp, err := m.client.StopPod(ctx, pod.ID)
			metrics.RecordAction(metrics.ActionStop, err == nil)
			if err != nil {
				log.WithError(err).Error("Error stopping pod")
				continue
			}
			log.WithField("response", resp).Debug("Stop API response")
			log.Info("Stop command sent")
		}
		if stopped == 0 {
			m.log.Info("No running pods found matching the name to stop")
		}
	}

	if opts.Terminate {
		m.log.Infof("Terminating %d pods matching name %q", len(matching), m.cfg.PodName)
		for _, pod := range matching {
			if err := ctx.Err(); err != nil {
				return err
			}
			log := m.log.WithField("pod_id", pod.ID)
			log.Warn("Terminating pod")
			err := m.client.TerminatePod(ctx, pod.ID)
			metrics.RecordAction(metrics.ActionTerminate, err == nil)
			if err != nil {
				log.WithError(err).Error("Error terminating pod")
				continue
			}
			log.Info("Terminate command sent")
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("Cleanup actions finished")
	return nil
}
