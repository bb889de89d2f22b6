package config

// QueueKeyStruct names the Redis lists that carry domain-event envelopes.
// Each queue owns two companions derived by suffix: "<queue>:retry" (sorted
// set of envelopes scheduled for redelivery) and "<queue>:dead" (dead-letter
// list for envelopes that exhausted their attempts).
type QueueKeyStruct struct {
	GradeRecalc   string
	Interventions string
	Notifications string
	Audit         string
}

var QueueKey = &QueueKeyStruct{
	GradeRecalc:   "queue:grade_recalc",
	Interventions: "queue:interventions",
	Notifications: "queue:notifications",
	Audit:         "queue:audit",
}

// RetryKey returns the sorted-set key scheduling retries for a queue.
func (k *QueueKeyStruct) RetryKey(queue string) string {
	return queue + ":retry"
}

// DeadKey returns the dead-letter list key for a queue.
func (k *QueueKeyStruct) DeadKey(queue string) string {
	return queue + ":dead"
}
