package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for events the audit dispatcher dropped.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Sessions issued."},
	{ID: goSession.MetricSessionIssueFailure, Name: "gosession_session_issue_failure_total", Help: "Session issue attempts that failed."},
	{ID: goSession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Access tokens accepted."},
	{ID: goSession.MetricVerifyFailure, Name: "gosession_verify_failure_total", Help: "Access tokens rejected."},
	{ID: goSession.MetricVerifyRevoked, Name: "gosession_verify_revoked_total", Help: "Access tokens rejected as revoked."},
	{ID: goSession.MetricRotateSuccess, Name: "gosession_rotate_success_total", Help: "Refresh rotations that succeeded."},
	{ID: goSession.MetricRotateFailure, Name: "gosession_rotate_failure_total", Help: "Refresh rotations that failed."},
	{ID: goSession.MetricReplayDetected, Name: "gosession_refresh_replay_detected_total", Help: "Refresh tokens presented without a live record."},
	{ID: goSession.MetricSessionRevoked, Name: "gosession_session_revoked_total", Help: "Sessions revoked."},
	{ID: goSession.MetricRevokeFailure, Name: "gosession_revoke_failure_total", Help: "Session revocations that failed."},
	{ID: goSession.MetricSubjectRevoked, Name: "gosession_subject_revoked_total", Help: "Revoke-all operations."},
	{ID: goSession.MetricRefreshRecordsPurged, Name: "gosession_refresh_records_purged_total", Help: "Refresh records removed by revoke-all."},
	{ID: goSession.MetricTokenIssued, Name: "gosession_token_issued_total", Help: "Activation and reset tokens issued."},
	{ID: goSession.MetricTokenRedeemed, Name: "gosession_token_redeemed_total", Help: "Activation and reset tokens redeemed."},
	{ID: goSession.MetricTokenReplayRejected, Name: "gosession_token_replay_rejected_total", Help: "Repeated redemptions of a single-use token."},
	{ID: goSession.MetricStoreUnavailable, Name: "gosession_store_unavailable_total", Help: "Operations that failed closed on a store error."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "VerifyAccess latency."},
}

// HistogramBoundSuffix names each bucket, including +Inf, for exporters without native histograms.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
