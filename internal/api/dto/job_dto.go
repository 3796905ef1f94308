package dto

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type JobDetailResponse struct {
	JobDTO
	FailureReason string     `json:"failure_reason,omitempty"`
	Photos        []PhotoDTO `json:"photos"`
}

type PhotoDTO struct {
	ID          string `json:"id"`
	RoomType    string `json:"room_type"`
	Sequence    int    `json:"sequence"`
	OriginalKey string `json:"original_key"`
	EditedKey   string `json:"edited_key,omitempty"`
	OriginalURL string `json:"original_url,omitempty"`
	EditedURL   string `json:"edited_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type SubmitJobResponse struct {
	OK      bool   `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}
