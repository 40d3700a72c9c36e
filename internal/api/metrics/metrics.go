// Package metrics defines and registers the custom Prometheus metrics for the
// pet clinic auth service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered on the default Prometheus registry at package init
// via promauto, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "petclinic_auth"

// ── Authentication metrics ───────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - outcome: "success", "invalid_credentials", "unverified", "disabled" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// TokenValidationsTotal counts session token checks made by the gate.
// Label:
//   - result: "valid", "missing", "malformed", "bad_signature", "expired", "revoked" or "error"
var TokenValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validations_total",
		Help:      "Total number of session token validations, by result.",
	},
	[]string{"result"},
)

// AuthorizationDenialsTotal counts requests rejected by the authorization gate.
var AuthorizationDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of requests rejected by the authorization gate, by route.",
	},
	[]string{"route"},
)

// PasswordResetsTotal counts password reset operations.
// Labels:
//   - operation: "initiate", "consume" or "purge"
//   - outcome: "ok", "not_found", "expired", "rejected" or "error"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// RateLimitedTotal counts requests refused by the rate limiter.
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests refused by the rate limiter, by route.",
	},
	[]string{"route"},
)

// ── Mail metrics ─────────────────────────────────────────────────────────────

// MailJobsTotal counts outbound mail jobs.
// Label:
//   - outcome: "sent", "failed" or "dropped"
var MailJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_jobs_total",
		Help:      "Total number of outbound mail jobs, by outcome.",
	},
	[]string{"outcome"},
)

// MailQueueDepth tracks the current number of mails waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of mails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailSendDuration measures how long delivering one mail takes, retries included.
var MailSendDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_send_duration_seconds",
		Help:      "Duration of a mail delivery from dequeue to SMTP acceptance.",
		Buckets:   prometheus.DefBuckets,
	},
)
