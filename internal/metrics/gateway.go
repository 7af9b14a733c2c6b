package metrics

// Metrics recorded by the webhook gateway and its background pipeline.
var (
	WebhooksAccepted  = Default.Counter("webhooks_total", "Webhook POSTs received", `result="accepted"`)
	WebhooksIgnored   = Default.Counter("webhooks_total", "Webhook POSTs received", `result="no_message"`)
	WebhooksDuplicate = Default.Counter("webhooks_total", "Webhook POSTs received", `result="duplicate"`)
	WebhooksRejected  = Default.Counter("webhooks_total", "Webhook POSTs received", `result="rejected"`)

	PipelineRuns      = Default.Counter("pipeline_runs_total", "Background pipeline executions", "")
	AgentFailures     = Default.Counter("agent_failures_total", "Agent turns that produced no reply", "")
	ListParseFailures = Default.Counter("list_parse_failures_total", "Malformed list replies replaced by the apology text", "")

	DispatchText     = Default.Counter("dispatch_total", "Outbound replies sent", `kind="text"`)
	DispatchButtons  = Default.Counter("dispatch_total", "Outbound replies sent", `kind="buttons"`)
	DispatchList     = Default.Counter("dispatch_total", "Outbound replies sent", `kind="list"`)
	DispatchFailures = Default.Counter("dispatch_failures_total", "Outbound sends that failed", "")

	QueueDepth  = Default.Gauge("queue_depth", "Background jobs waiting for a worker", "")
	ActiveJobs  = Default.Gauge("active_jobs", "Background jobs currently running", "")
	DroppedJobs = Default.Counter("dropped_jobs_total", "Background jobs dropped because the queue was full", "")

	AgentLatency = Default.Histogram("agent_latency_seconds", "Agent turn latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120})
	SendLatency = Default.Histogram("send_latency_seconds", "Outbound send latency in seconds", "",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 15})
)
