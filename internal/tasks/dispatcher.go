// Package tasks enqueues push-message deliveries into Cloud Tasks.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/dgellow/line-relay/internal/config"
	"github.com/dgellow/line-relay/internal/log"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Queue is the part of the Cloud Tasks client the dispatcher needs
type Queue interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error)
}

var _ Queue = (*cloudtasks.Client)(nil)

// QueuePath returns the fully qualified queue name
func QueuePath(project, location, queue string) string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", project, location, queue)
}

// NewClient creates a Cloud Tasks client. With emulatorHost set, it talks
// plaintext gRPC to that address and skips authentication.
func NewClient(ctx context.Context, emulatorHost string) (*cloudtasks.Client, error) {
	var opts []option.ClientOption
	if emulatorHost != "" {
		conn, err := grpc.NewClient(emulatorHost, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to dial Cloud Tasks emulator: %w", err)
		}
		opts = append(opts, option.WithGRPCConn(conn))
		log.LogInfoWithFields("tasks", "Using Cloud Tasks emulator", map[string]any{
			"host": emulatorHost,
		})
	}

	client, err := cloudtasks.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Tasks client: %w", err)
	}
	return client, nil
}

// Dispatcher builds and submits the one HTTP task the service knows about
type Dispatcher struct {
	queue     Queue
	parent    string
	targetURL string
	payload   string
	delay     time.Duration
	now       func() time.Time
}

// NewDispatcher creates a dispatcher for cfg, submitting through queue
func NewDispatcher(queue Queue, cfg config.TaskDispatcherConfig) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		parent:    QueuePath(cfg.Project, cfg.Location, cfg.Queue),
		targetURL: cfg.TargetURL,
		payload:   cfg.Payload,
		delay:     cfg.Delay,
		now:       time.Now,
	}
}

// Ready reports whether Enqueue can be attempted at all
func (d *Dispatcher) Ready() error {
	if d == nil || d.queue == nil {
		return errors.New("task queue client is not initialized")
	}
	if d.targetURL == "" {
		return errors.New("task target URL is not configured")
	}
	if d.delay < 0 {
		return fmt.Errorf("task delay cannot be negative: %s", d.delay)
	}
	return nil
}

// BuildRequest assembles the create request: POST targetURL with the
// payload as body, scheduled delay from now. The body is raw bytes here;
// the API's JSON transcoding is what base64-encodes it on the wire.
func (d *Dispatcher) BuildRequest() *cloudtaskspb.CreateTaskRequest {
	httpRequest := &cloudtaskspb.HttpRequest{
		HttpMethod: cloudtaskspb.HttpMethod_POST,
		Url:        d.targetURL,
	}
	if d.payload != "" {
		httpRequest.Body = []byte(d.payload)
	}

	return &cloudtaskspb.CreateTaskRequest{
		Parent: d.parent,
		Task: &cloudtaskspb.Task{
			MessageType:  &cloudtaskspb.Task_HttpRequest{HttpRequest: httpRequest},
			ScheduleTime: timestamppb.New(d.now().Add(d.delay)),
		},
	}
}

// Enqueue submits one task and returns what the queue created
func (d *Dispatcher) Enqueue(ctx context.Context) (*cloudtaskspb.Task, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}

	req := d.BuildRequest()
	log.LogInfoWithFields("tasks", "Sending task", map[string]any{
		"parent":       req.GetParent(),
		"url":          d.targetURL,
		"scheduleTime": req.GetTask().GetScheduleTime().AsTime().Format(time.RFC3339),
		"bodyBytes":    len(d.payload),
	})

	task, err := d.queue.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.GetName() == "" {
		log.LogWarnWithFields("tasks", "Created task name is empty", nil)
	} else {
		log.LogInfoWithFields("tasks", "Created task", map[string]any{
			"name": task.GetName(),
		})
	}
	return task, nil
}
