package ledger

// Phase is the claimability state of a job. Exactly the open phases block
// younger jobs in the same lane; Closed jobs are terminal and never block.
type Phase string

const (
	// PhasePending means the job has no active lease and may be claimed.
	PhasePending Phase = "pending"
	// PhaseLeased means a claimant currently holds the job's lease.
	PhaseLeased Phase = "leased"
	// PhaseAwaitingReport means delivery failed and the failure report has
	// not yet been resolved by the origin device. Delivery ledger only.
	PhaseAwaitingReport Phase = "awaiting_report"
	// PhaseWaitingDevice means the origin requested a retry and the job
	// waits for its destination device to re-announce.
	PhaseWaitingDevice Phase = "waiting_device"
	// PhaseClosed is terminal: completed, or declined with no retry.
	PhaseClosed Phase = "closed"
)

// RetryState is the explicit three-valued retry flag carried by every job.
type RetryState string

const (
	// RetryNone: retrying is not applicable right now.
	RetryNone RetryState = "none"
	// RetryArmed: the job failed, a retry was requested, and its device has
	// re-announced; the next claim may take it.
	RetryArmed RetryState = "armed"
	// RetryExhausted: the job was claimed after a retry, or was terminally
	// declined. Only a device re-announcement can arm it again.
	RetryExhausted RetryState = "exhausted"
)

// Job is one ledger row: a transmission in the delivery ledger, a failure
// report in the failure ledger. The two ledgers share this schema; the
// failure-report fields are zero for transmissions.
type Job struct {
	GUID        string `json:"guid"`
	Sort        string `json:"sort"` // hex id.Key; key suffix, creation order
	QueueGUID   string `json:"queue_guid"`
	SourceGUID  string `json:"source_device_guid"`
	DestGUID    string `json:"destination_device_guid"` // where delivery goes
	Requester   string `json:"requester_client_guid"`
	Payload     string `json:"payload"` // opaque, never parsed
	CreatedAtMs int64  `json:"created_at_ms"`

	Phase Phase      `json:"phase"`
	Retry RetryState `json:"retry"`

	// ActiveDequeueGUID is the current lease, empty when none.
	ActiveDequeueGUID string `json:"active_dequeue_guid,omitempty"`

	// Failure-report jobs only.
	OriginDequeueGUID string `json:"origin_dequeue_guid,omitempty"` // lease of the failed delivery
	OriginJobGUID     string `json:"origin_job_guid,omitempty"`     // the failed transmission
	ErrorPayload      string `json:"error_payload,omitempty"`
	// LastAttemptErred records that the most recent lease ended in a report
	// error, which keeps the report claimable but marks it for re-arming
	// when the origin device reconnects.
	LastAttemptErred bool `json:"last_attempt_erred,omitempty"`
}

// Open reports whether the job still blocks its lanes.
func (j *Job) Open() bool { return j.Phase != PhaseClosed }

// Claimable reports whether a claim may take the job right now.
func (j *Job) Claimable() bool { return j.Phase == PhasePending }

// Dequeue is a single lease on a job. At most one active dequeue exists per
// job; a dequeue ends when a completion, a failure report, or a report
// error references it.
type Dequeue struct {
	GUID               string `json:"guid"`
	JobGUID            string `json:"job_guid"`
	ClaimantClient     string `json:"claimant_client_guid"`
	DestClientSnapshot string `json:"destination_client_snapshot"`
	CreatedAtMs        int64  `json:"created_at_ms"`
}

// Completion marks a dequeue terminal-successful. RetryRequested carries the
// origin device's decision for failure-report completions and is nil for
// transmission completions.
type Completion struct {
	GUID           string `json:"guid"`
	DequeueGUID    string `json:"dequeue_guid"`
	ReporterClient string `json:"reporter_client_guid"`
	RetryRequested *bool  `json:"retry_requested,omitempty"`
	CreatedAtMs    int64  `json:"created_at_ms"`
}

// AttemptError records that delivering a failure report itself failed. It
// ends the lease but is not terminal for the report, which stays the oldest
// pending item in its lane.
type AttemptError struct {
	GUID         string `json:"guid"`
	DequeueGUID  string `json:"dequeue_guid"`
	ErrorPayload string `json:"error_payload"`
	CreatedAtMs  int64  `json:"created_at_ms"`
}

// Lease is the claim engine's answer to a successful claim: the lease row
// plus everything the worker needs to deliver.
type Lease struct {
	Dequeue Dequeue `json:"dequeue"`
	Job     Job     `json:"job"`
}
