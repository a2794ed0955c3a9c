package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"

	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// Sink 审计日志的持久化目标。
type Sink interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}

// Writer 是审计日志的异步写入器：固定 worker 池 + 有界队列。
//
// Record 从不阻塞调用方；队列已满或已关闭时直接丢弃并计数，
// 写库失败只记录日志，不会影响主流程。
type Writer struct {
	logger  *slog.Logger
	sink    Sink
	workers int
	entries chan *model.AuditEntry
	now     func() time.Time

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed atomic.Bool

	stats writerStats
}

type writerStats struct {
	enqueued atomic.Int64
	written  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
	panics   atomic.Int64
}

// Stats 写入器统计快照。
type Stats struct {
	Enqueued int64
	Written  int64
	Failed   int64
	Dropped  int64
	Panics   int64
}

// NewWriter 创建审计写入器，workers 与 capacity 至少为 1。
func NewWriter(logger *slog.Logger, sink Sink, workers int, capacity int) *Writer {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Writer{
		logger:  logger,
		sink:    sink,
		workers: workers,
		entries: make(chan *model.AuditEntry, capacity),
		now:     time.Now,
	}
}

// Start 启动 worker 池，直到 ctx 被取消或调用 Shutdown。
func (w *Writer) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker(ctx, i)
	}
}

func (w *Writer) worker(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("audit worker stopped", slog.Int("worker_id", id))
			return
		case entry, ok := <-w.entries:
			if !ok {
				return
			}
			metrics.AuditQueueDepth.Set(float64(len(w.entries)))
			w.write(entry, id)
		}
	}
}

func (w *Writer) write(entry *model.AuditEntry, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			w.stats.panics.Add(1)
			w.logger.Error("audit write panic recovered",
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := w.sink.Append(ctx, entry); err != nil {
		w.stats.failed.Add(1)
		metrics.AuditDroppedTotal.WithLabelValues("write_failed").Inc()
		w.logger.Warn("audit write failed",
			slog.String("action", entry.Action),
			slog.String("target_id", entry.TargetID),
			slog.String("error", err.Error()))
		return
	}
	w.stats.written.Add(1)
	metrics.AuditWrittenTotal.Inc()
}

// Record 入队一条审计记录，返回是否被接受。缺省的 ID 与时间会自动补齐。
func (w *Writer) Record(entry model.AuditEntry) bool {
	if w == nil {
		return false
	}
	if entry.ID == "" {
		entry.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = w.now().UTC()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed.Load() {
		w.stats.dropped.Add(1)
		metrics.AuditDroppedTotal.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case w.entries <- &entry:
		w.stats.enqueued.Add(1)
		metrics.AuditQueueDepth.Set(float64(len(w.entries)))
		return true
	default:
		w.stats.dropped.Add(1)
		metrics.AuditDroppedTotal.WithLabelValues("queue_full").Inc()
		w.logger.Warn("audit queue full, drop entry",
			slog.String("action", entry.Action),
			slog.Int("capacity", cap(w.entries)))
		return false
	}
}

// Shutdown 停止接收新记录，并等待队列中的记录写完或超时。
func (w *Writer) Shutdown(timeout time.Duration) error {
	w.mu.Lock()
	if !w.closed.CompareAndSwap(false, true) {
		w.mu.Unlock()
		return fmt.Errorf("audit writer already closed")
	}
	close(w.entries)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("audit writer drained", slog.Int64("written", w.stats.written.Load()))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit shutdown timeout after %s", timeout)
	}
}

// Stats 返回统计快照。
func (w *Writer) Stats() Stats {
	return Stats{
		Enqueued: w.stats.enqueued.Load(),
		Written:  w.stats.written.Load(),
		Failed:   w.stats.failed.Load(),
		Dropped:  w.stats.dropped.Load(),
		Panics:   w.stats.panics.Load(),
	}
}
