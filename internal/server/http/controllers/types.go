package controllers

// Request bodies for the relay surface. GUIDs are caller-assigned opaque
// strings; the relay never parses them.

type announceDeviceReq struct {
	DeviceGUID  string `json:"device_guid"`
	PurposeGUID string `json:"purpose_guid"`
	ListenPort  int    `json:"listen_port"`
}

type registerQueueReq struct {
	QueueGUID string `json:"queue_guid"`
}

type enqueueReq struct {
	QueueGUID       string `json:"queue_guid"`
	SourceGUID      string `json:"source_device_guid"`
	DestinationGUID string `json:"destination_device_guid"`
	Payload         string `json:"payload"`
}

type claimReq struct {
	WorkerGUID string `json:"worker_guid"`
	QueueGUID  string `json:"queue_guid,omitempty"`
}

type completeReq struct {
	DequeueGUID string `json:"dequeue_guid"`
}

type failReq struct {
	DequeueGUID  string `json:"dequeue_guid"`
	ErrorPayload string `json:"error_payload"`
}

type completeReportReq struct {
	DequeueGUID    string `json:"dequeue_guid"`
	RetryRequested bool   `json:"retry_requested"`
}

type registerWorkerReq struct {
	WorkerGUID string `json:"worker_guid"`
}

type workerGUIDReq struct {
	WorkerGUID string `json:"worker_guid"`
}
