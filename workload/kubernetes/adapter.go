package kubernetes

import (
	"context"
	"fmt"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/workload"
)

func init() {
	workload.RegisterFactory(workload.KindCluster, func(cfg workload.Config, backendCfg any, log *logger.Logger) (workload.Adapter, error) {
		c := &Config{}
		if backendCfg != nil {
			bc, ok := backendCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("kubernetes: expected *kubernetes.Config, got %T", backendCfg)
			}
			c = bc
		}
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return New(c, cfg, log)
	})
}

// Adapter implements workload.Adapter for Kubernetes Jobs and Pods.
type Adapter struct {
	client        kubernetes.Interface
	cfg           *Config
	defaultLabels map[string]string
	interval      time.Duration
	log           *logger.Logger
}

// New creates an adapter connected through kubeconfig or the in-cluster config.
func New(cfg *Config, wcfg workload.Config, log *logger.Logger) (*Adapter, error) {
	restCfg, err := buildRestConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes: build config: %w", err)
	}
	restCfg.QPS = cfg.QPS
	restCfg.Burst = cfg.Burst

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes: create clientset: %w", err)
	}
	return NewWithClient(clientset, cfg, wcfg, log), nil
}

// NewWithClient creates an adapter over an existing clientset.
func NewWithClient(client kubernetes.Interface, cfg *Config, wcfg workload.Config, log *logger.Logger) *Adapter {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{
		client:        client,
		cfg:           cfg,
		defaultLabels: wcfg.DefaultLabels,
		interval:      wcfg.Interval(),
		log:           log,
	}
}

var (
	_ workload.Adapter   = (*Adapter)(nil)
	_ workload.LogReader = (*Adapter)(nil)
)

// Kind returns workload.KindCluster.
func (a *Adapter) Kind() workload.BackendKind { return workload.KindCluster }

func (a *Adapter) isJob() bool { return a.cfg.WorkloadType == WorkloadTypeJob }

func (a *Adapter) resource() string {
	if a.isJob() {
		return "job"
	}
	return "pod"
}

// Describe reads the Job (and its newest pod) or the bare Pod named by ref.
func (a *Adapter) Describe(ctx context.Context, ref workload.Ref) (workload.State, error) {
	if !a.isJob() {
		pod, err := a.client.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			return workload.State{}, classify(err, workload.OpDescribe, "pod", ref)
		}
		phase, detail := podPhase(pod)
		return workload.NewState(ref, phase, detail), nil
	}

	job, err := a.client.BatchV1().Jobs(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return workload.State{}, classify(err, workload.OpDescribe, "job", ref)
	}
	pods, err := a.jobPods(ctx, ref)
	if err != nil {
		return workload.State{}, classify(err, workload.OpDescribe, "pod", ref)
	}
	phase, detail := jobPhase(job, newestPod(pods))
	return workload.NewState(ref, phase, detail), nil
}

func (a *Adapter) jobPods(ctx context.Context, ref workload.Ref) ([]corev1.Pod, error) {
	list, err := a.client.CoreV1().Pods(ref.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(labels.Set{jobNameLabel: ref.Name}).String(),
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Create submits a Job or Pod and returns the state of the created object.
func (a *Adapter) Create(ctx context.Context, ref workload.Ref, spec workload.Spec) (workload.State, error) {
	if err := spec.Validate(); err != nil {
		return workload.State{}, classify(err, workload.OpCreate, a.resource(), ref)
	}
	if a.isJob() && spec.RestartPolicy == workload.RestartAlways {
		return workload.State{}, errors.InvalidSpec(`restart_policy "always" is not valid for a job workload`).
			WithDetail("restart_policy", spec.RestartPolicy).
			WithOperation(workload.OpCreate, ref.String())
	}

	a.log.Info("creating workload", logger.Fields(
		logger.FieldNamespace, ref.Namespace,
		logger.FieldName, ref.Name,
		"image", spec.Image,
		"type", a.cfg.WorkloadType,
	))

	if !a.isJob() {
		created, err := a.client.CoreV1().Pods(ref.Namespace).Create(ctx, a.buildPod(ref, spec), metav1.CreateOptions{})
		if err != nil {
			return workload.State{}, classify(err, workload.OpCreate, "pod", ref)
		}
		phase, detail := podPhase(created)
		return workload.NewState(ref, phase, detail), nil
	}

	created, err := a.client.BatchV1().Jobs(ref.Namespace).Create(ctx, a.buildJob(ref, spec), metav1.CreateOptions{})
	if err != nil {
		return workload.State{}, classify(err, workload.OpCreate, "job", ref)
	}
	phase, detail := jobPhase(created, nil)
	return workload.NewState(ref, phase, detail), nil
}

// Terminate deletes the workload with foreground propagation so a Job's
// pods are removed before the Job itself.
func (a *Adapter) Terminate(ctx context.Context, ref workload.Ref) error {
	propagation := metav1.DeletePropagationForeground
	opts := metav1.DeleteOptions{PropagationPolicy: &propagation}

	var err error
	if a.isJob() {
		err = a.client.BatchV1().Jobs(ref.Namespace).Delete(ctx, ref.Name, opts)
	} else {
		err = a.client.CoreV1().Pods(ref.Namespace).Delete(ctx, ref.Name, opts)
	}
	if err != nil {
		return classify(err, workload.OpTerminate, a.resource(), ref)
	}
	a.log.Info("workload terminated", logger.Fields(logger.FieldNamespace, ref.Namespace, logger.FieldName, ref.Name))
	return nil
}

// WaitUntil polls Describe on the configured interval.
func (a *Adapter) WaitUntil(ctx context.Context, ref workload.Ref, pred workload.Predicate, timeout time.Duration) (workload.State, error) {
	state, err := workload.Poll(ctx, a.Describe, ref, pred, timeout, a.interval, a.log)
	if err != nil {
		return workload.State{}, classify(err, workload.OpWaitUntil, a.resource(), ref)
	}
	return state, nil
}

// HealthCheck verifies the API server answers and the probe namespace exists.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ref := workload.Ref{Kind: workload.KindCluster, Namespace: a.cfg.Namespace}
	if _, err := a.client.CoreV1().Namespaces().Get(ctx, a.cfg.Namespace, metav1.GetOptions{}); err != nil {
		return classify(err, workload.OpHealthCheck, "namespace", ref)
	}
	return nil
}

// Logs streams the output of the workload's pod. For Jobs the newest pod is used.
func (a *Adapter) Logs(ctx context.Context, ref workload.Ref, opts workload.LogOptions) (io.ReadCloser, error) {
	podName := ref.Name
	if a.isJob() {
		pods, err := a.jobPods(ctx, ref)
		if err != nil {
			return nil, classify(err, workload.OpLogs, "pod", ref)
		}
		pod := newestPod(pods)
		if pod == nil {
			return nil, errors.NotFound("pod", ref.Namespace+"/"+ref.Name).WithOperation(workload.OpLogs, ref.String())
		}
		podName = pod.Name
	}

	logOpts := &corev1.PodLogOptions{Follow: opts.Follow}
	if opts.Tail > 0 {
		tail := int64(opts.Tail)
		logOpts.TailLines = &tail
	}
	if opts.Since > 0 {
		since := int64(opts.Since.Seconds())
		logOpts.SinceSeconds = &since
	}

	stream, err := a.client.CoreV1().Pods(ref.Namespace).GetLogs(podName, logOpts).Stream(ctx)
	if err != nil {
		return nil, classify(err, workload.OpLogs, "pod", ref)
	}
	return stream, nil
}

// buildRestConfig creates a REST config from kubeconfig or in-cluster.
func buildRestConfig(cfg *Config) (*rest.Config, error) {
	if cfg.Kubeconfig != "" {
		return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: cfg.Kubeconfig},
			&clientcmd.ConfigOverrides{CurrentContext: cfg.Context},
		).ClientConfig()
	}
	return rest.InClusterConfig()
}
