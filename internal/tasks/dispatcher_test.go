package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/dgellow/line-relay/internal/config"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
)

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error) {
	args := m.Called(ctx, req)
	task, _ := args.Get(0).(*cloudtaskspb.Task)
	return task, args.Error(1)
}

func testConfig() config.TaskDispatcherConfig {
	return config.TaskDispatcherConfig{
		Project:   "line-bot-353103",
		Location:  "asia-northeast2",
		Queue:     "my-queue",
		TargetURL: "https://line-bot.example.run.app/sendLineMessage",
		Payload:   "Hello, World!",
	}
}

func fixedNow(d *Dispatcher, now time.Time) {
	d.now = func() time.Time { return now }
}

func TestQueuePath(t *testing.T) {
	assert.Equal(t,
		"projects/line-bot-353103/locations/asia-northeast2/queues/my-queue",
		QueuePath("line-bot-353103", "asia-northeast2", "my-queue"))
}

func TestBuildRequest(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("immediate", func(t *testing.T) {
		d := NewDispatcher(&mockQueue{}, testConfig())
		fixedNow(d, now)

		req := d.BuildRequest()
		assert.Equal(t, "projects/line-bot-353103/locations/asia-northeast2/queues/my-queue", req.GetParent())

		httpReq := req.GetTask().GetHttpRequest()
		require.NotNil(t, httpReq)
		assert.Equal(t, cloudtaskspb.HttpMethod_POST, httpReq.GetHttpMethod())
		assert.Equal(t, "https://line-bot.example.run.app/sendLineMessage", httpReq.GetUrl())
		assert.Equal(t, []byte("Hello, World!"), httpReq.GetBody())
		assert.True(t, req.GetTask().GetScheduleTime().AsTime().Equal(now))
	})

	t.Run("delayed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Delay = 90 * time.Second
		d := NewDispatcher(&mockQueue{}, cfg)
		fixedNow(d, now)

		scheduled := d.BuildRequest().GetTask().GetScheduleTime().AsTime()
		assert.True(t, scheduled.Equal(now.Add(90*time.Second)))
	})

	t.Run("body is base64 on the JSON wire", func(t *testing.T) {
		d := NewDispatcher(&mockQueue{}, testConfig())
		data, err := protojson.Marshal(d.BuildRequest().GetTask().GetHttpRequest())
		require.NoError(t, err)

		var wire map[string]any
		require.NoError(t, json.Unmarshal(data, &wire))
		assert.Equal(t, "SGVsbG8sIFdvcmxkIQ==", wire["body"])
		assert.Equal(t, "POST", wire["httpMethod"])
	})

	t.Run("empty payload has no body", func(t *testing.T) {
		cfg := testConfig()
		cfg.Payload = ""
		d := NewDispatcher(&mockQueue{}, cfg)
		assert.Empty(t, d.BuildRequest().GetTask().GetHttpRequest().GetBody())
	})
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		queue := &mockQueue{}
		queue.On("CreateTask", ctx, mock.MatchedBy(func(req *cloudtaskspb.CreateTaskRequest) bool {
			return req.GetTask().GetHttpRequest().GetUrl() == "https://line-bot.example.run.app/sendLineMessage"
		})).Return(&cloudtaskspb.Task{Name: "projects/p/locations/l/queues/q/tasks/123"}, nil).Once()

		task, err := NewDispatcher(queue, testConfig()).Enqueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "projects/p/locations/l/queues/q/tasks/123", task.GetName())
		queue.AssertExpectations(t)
	})

	t.Run("empty name is not an error", func(t *testing.T) {
		queue := &mockQueue{}
		queue.On("CreateTask", ctx, mock.Anything).Return(&cloudtaskspb.Task{}, nil).Once()

		task, err := NewDispatcher(queue, testConfig()).Enqueue(ctx)
		require.NoError(t, err)
		assert.Empty(t, task.GetName())
	})

	t.Run("queue failure", func(t *testing.T) {
		queue := &mockQueue{}
		queue.On("CreateTask", ctx, mock.Anything).Return(nil, errors.New("permission denied")).Once()

		_, err := NewDispatcher(queue, testConfig()).Enqueue(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create task: permission denied")
	})

	t.Run("not ready", func(t *testing.T) {
		d := NewDispatcher(nil, testConfig())
		_, err := d.Enqueue(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not initialized")
	})
}
