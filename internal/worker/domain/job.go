package domain

// Job statuses the worker deals with. The API side owns the full lifecycle;
// the worker only ever sees processing jobs and moves them to a terminal
// status.
const (
	JobStatusProcessing = "processing"
	JobStatusReady      = "ready"
	JobStatusFailed     = "failed"
)

// Job is the worker's view of a photo editing job.
type Job struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`
	Status string `db:"status"`
}

// Photo is a single uploaded photo belonging to a job.
type Photo struct {
	ID          string  `db:"id"`
	JobID       string  `db:"job_id"`
	RoomType    string  `db:"room_type"`
	Sequence    int     `db:"sequence"`
	OriginalKey string  `db:"original_key"`
	EditedKey   *string `db:"edited_key"`
}

// EditTrigger is a queued instruction to edit a job's photos, paired with
// the RabbitMQ delivery tag for ACK/NACK.
type EditTrigger struct {
	JobID          string
	IdempotencyKey string
	Trigger        string
	DeliveryTag    uint64
}
