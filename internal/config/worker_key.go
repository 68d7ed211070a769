package config

type WorkerKeyStruct struct {
	PersistProctorEventsQueue string
	PersistReportsQueue       string
}

var WorkerKey = &WorkerKeyStruct{
	PersistProctorEventsQueue: "persist_proctor_events_queue",
	PersistReportsQueue:       "persist_reports_queue",
}
