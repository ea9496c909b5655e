package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/longrunning"
	"github.com/BaSui01/agentteam/types"
)

// TaskHandler 长时任务接口
type TaskHandler struct {
	tracker *longrunning.Tracker
	ctx     context.Context
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewTaskHandler 创建任务处理器。后台执行的任务使用 ctx，
// 服务关闭时取消 ctx 并调用 Wait 等待执行循环退出。
func NewTaskHandler(ctx context.Context, tracker *longrunning.Tracker, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		tracker: tracker,
		ctx:     ctx,
		logger:  logger.With(zap.String("component", "task_handler")),
	}
}

// Register 注册路由
func (h *TaskHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/tasks", h.HandleCreate)
	mux.HandleFunc("GET /v1/tasks", h.HandleList)
	mux.HandleFunc("GET /v1/tasks/stats", h.HandleStats)
	mux.HandleFunc("GET /v1/tasks/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /v1/tasks/{id}", h.HandleDelete)
	mux.HandleFunc("POST /v1/tasks/{id}/start", h.HandleStart)
	mux.HandleFunc("POST /v1/tasks/{id}/pause", h.HandlePause)
	mux.HandleFunc("POST /v1/tasks/{id}/resume", h.HandleResume)
	mux.HandleFunc("POST /v1/tasks/{id}/complete", h.HandleComplete)
}

// Wait 等待后台执行循环全部退出
func (h *TaskHandler) Wait() {
	h.wg.Wait()
}

func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg longrunning.TaskConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	task, err := h.tracker.CreateTask(cfg)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, task)
}

func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.tracker.ListTasks())
}

func (h *TaskHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.tracker.GetTaskStatistics())
}

func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, ok := h.tracker.GetTask(id)
	if !ok {
		WriteError(w, types.NotFound("task", id), h.logger)
		return
	}
	WriteSuccess(w, task)
}

func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.tracker.DeleteTask(id) {
		WriteError(w, types.NotFound("task", id), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStart 处理 POST /v1/tasks/{id}/start
func (h *TaskHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.tracker.StartTask)
}

// HandleResume 处理 POST /v1/tasks/{id}/resume
func (h *TaskHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.tracker.ResumeTask)
}

// HandlePause 处理 POST /v1/tasks/{id}/pause
func (h *TaskHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.tracker.PauseTask(id) {
		task, ok := h.tracker.GetTask(id)
		if !ok {
			WriteError(w, types.NotFound("task", id), h.logger)
			return
		}
		WriteError(w, types.InvalidTransition(fmt.Sprintf("task %s is %s, only running tasks can pause", id, task.Status)), h.logger)
		return
	}
	task, _ := h.tracker.GetTask(id)
	WriteSuccess(w, task)
}

// HandleComplete 处理 POST /v1/tasks/{id}/complete
func (h *TaskHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tracker.CompleteTask(id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	task, _ := h.tracker.GetTask(id)
	WriteSuccess(w, task)
}

type runFunc func(ctx context.Context, id string, onUpdate longrunning.UpdateHandler) error

// run 启动或恢复任务。Accept 为 text/event-stream 时随请求同步执行并推送进度；
// 否则在后台执行，等到第一条进度（即状态迁移成功）后返回 202。
func (h *TaskHandler) run(w http.ResponseWriter, r *http.Request, fn runFunc) {
	id := r.PathValue("id")

	if wantsEventStream(r) {
		if _, ok := h.tracker.GetTask(id); !ok {
			WriteError(w, types.NotFound("task", id), h.logger)
			return
		}
		sse, err := newSSEWriter(w)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		if err := fn(r.Context(), id, func(u longrunning.Update) {
			_ = sse.Send(string(u.Type), u)
		}); err != nil && (types.IsCode(err, types.ErrNotFound) || types.IsCode(err, types.ErrInvalidTransition)) {
			// 执行期错误已通过 task_failed 推送
			sse.SendError(err)
		}
		sse.Done()
		return
	}

	started := make(chan struct{})
	done := make(chan error, 1)
	var once sync.Once
	log := h.logger.With(zap.String("task_id", id))
	onUpdate := func(u longrunning.Update) {
		once.Do(func() { close(started) })
		log.Debug("task update", zap.String("type", string(u.Type)), zap.Float64("progress", u.Progress))
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := fn(h.ctx, id, onUpdate)
		if err != nil {
			log.Warn("task run ended with error", zap.Error(err))
		}
		done <- err
	}()

	select {
	case <-started:
	case err := <-done:
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
	}
	task, _ := h.tracker.GetTask(id)
	WriteStatus(w, http.StatusAccepted, task)
}
