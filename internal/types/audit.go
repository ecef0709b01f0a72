package types

// AuditEventType names a state transition recorded in the audit log. Entries
// are append-only and exist purely for traceability.
type AuditEventType string

const (
	AuditEventSubscriptionCreated   AuditEventType = "subscription.created"
	AuditEventPlanChanged           AuditEventType = "subscription.plan_changed"
	AuditEventCancellationScheduled AuditEventType = "subscription.cancellation_scheduled"
	AuditEventSubscriptionCanceled  AuditEventType = "subscription.canceled"
	AuditEventSubscriptionRenewed   AuditEventType = "subscription.renewed"
	AuditEventTrialEnded            AuditEventType = "subscription.trial_ended"
	AuditEventPaymentSucceeded      AuditEventType = "payment.succeeded"
	AuditEventPaymentFailed         AuditEventType = "payment.failed"
)

func (t AuditEventType) String() string {
	return string(t)
}
