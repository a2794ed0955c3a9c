package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal 按路由与状态码统计的请求数。
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_http_requests_total",
		Help: "Total HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskhub_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// AuthChallengesIssuedTotal 已签发的登录挑战数量。
	AuthChallengesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_auth_challenges_issued_total",
		Help: "Total wallet challenges issued.",
	})

	// AuthVerifyTotal 按结果统计的签名验证次数。
	AuthVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_auth_verify_total",
		Help: "Wallet verification attempts by result.",
	}, []string{"result"})

	// RateLimitRejectedTotal 被限流拒绝的请求。
	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_ratelimit_rejected_total",
		Help: "Requests rejected by the token bucket limiter.",
	}, []string{"scope"})

	// TaskCompletionsTotal 完成闸门的通过与拒绝次数。
	TaskCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_task_completions_total",
		Help: "Task completion attempts by result.",
	}, []string{"result"})

	// AuditWrittenTotal 成功写入的审计日志。
	AuditWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_audit_written_total",
		Help: "Audit entries persisted.",
	})

	// AuditDroppedTotal 因队列满、已关闭或写库失败而丢弃的审计日志。
	AuditDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_audit_dropped_total",
		Help: "Audit entries dropped.",
	}, []string{"reason"})

	// AuditQueueDepth 审计队列当前积压。
	AuditQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_audit_queue_depth",
		Help: "Pending audit entries in the in-process queue.",
	})
)
