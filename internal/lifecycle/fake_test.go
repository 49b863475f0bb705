package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"podkeeper/internal/config"
	"podkeeper/internal/provider/runpod"
)

var errAPI = errors.New("api unavailable")

type call struct {
	Method   string
	ID       string
	GPUCount int
	Input    *runpod.CreatePodInput
	CtxErr   error
}

// fakeAPI records every call. Unset hooks succeed with empty responses.
type fakeAPI struct {
	pods    []*runpod.Pod
	listErr error

	getPod    func(id string) (*runpod.Pod, error)
	createPod func(in *runpod.CreatePodInput) (*runpod.Pod, error)
	resumeErr error
	onResume  func()
	onStop    func(id string)
	stopErr   map[string]error
	termErr   map[string]error

	calls []call
}

func (f *fakeAPI) ListPods(ctx context.Context) ([]*runpod.Pod, error) {
	f.calls = append(f.calls, call{Method: "list", CtxErr: ctx.Err()})
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pods, nil
}

func (f *fakeAPI) GetPod(ctx context.Context, id string) (*runpod.Pod, error) {
	f.calls = append(f.calls, call{Method: "get", ID: id, CtxErr: ctx.Err()})
	if f.getPod == nil {
		return nil, runpod.ErrPodNotFound
	}
	return f.getPod(id)
}

func (f *fakeAPI) CreatePod(ctx context.Context, in *runpod.CreatePodInput) (*runpod.Pod, error) {
	f.calls = append(f.calls, call{Method: "create", Input: in, CtxErr: ctx.Err()})
	if f.createPod == nil {
		return nil, errAPI
	}
	return f.createPod(in)
}

func (f *fakeAPI) ResumePod(ctx context.Context, id string, gpuCount int) (*runpod.Pod, error) {
	f.calls = append(f.calls, call{Method: "resume", ID: id, GPUCount: gpuCount, CtxErr: ctx.Err()})
	if f.onResume != nil {
		f.onResume()
	}
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	return &runpod.Pod{ID: id, DesiredStatus: runpod.StatusRunning}, nil
}

func (f *fakeAPI) StopPod(ctx context.Context, id string) (*runpod.Pod, error) {
	f.calls = append(f.calls, call{Method: "stop", ID: id, CtxErr: ctx.Err()})
	if f.onStop != nil {
		f.onStop(id)
	}
	if err := f.stopErr[id]; err != nil {
		return nil, err
	}
	return &runpod.Pod{ID: id, DesiredStatus: runpod.StatusExited}, nil
}

func (f *fakeAPI) TerminatePod(ctx context.Context, id string) error {
	f.calls = append(f.calls, call{Method: "terminate", ID: id, CtxErr: ctx.Err()})
	return f.termErr[id]
}

// trace renders the calls as "method" or "method:id".
func (f *fakeAPI) trace() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		if c.ID == "" {
			out = append(out, c.Method)
			continue
		}
		out = append(out, c.Method+":"+c.ID)
	}
	return out
}

func (f *fakeAPI) createdGPUTypes() []string {
	var types []string
	for _, c := range f.calls {
		if c.Method == "create" {
			types = append(types, c.Input.GPUTypeID)
		}
	}
	return types
}

func testConfig() *config.PodConfig {
	disk := 20
	cfg := config.Default()
	cfg.PodName = "trainer"
	cfg.ImageName = "runpod/pytorch:2.1.0"
	cfg.GPUTypes = []string{"NVIDIA GeForce RTX 4090", "NVIDIA RTX A6000"}
	cfg.ContainerDiskInGB = &disk
	return cfg
}

// newTestManager returns a manager whose waits are recorded instead of slept.
func newTestManager(t *testing.T, api *fakeAPI, cfg *config.PodConfig) (*Manager, *[]time.Duration, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	var sleeps []time.Duration
	m := New(api, cfg, logger)
	m.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return m, &sleeps, hook
}

func pod(id, name string, status runpod.PodStatus) *runpod.Pod {
	return &runpod.Pod{ID: id, Name: name, DesiredStatus: status, GPUCount: 1}
}
