package models

import "time"

type ProcessRequest struct {
	LayerName string `json:"layer_name"`
}

type ProcessResponse struct {
	Message   string `json:"message"`
	LayerName string `json:"layer_name"`
	FilePath  string `json:"file_path"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

type Job struct {
	Id           string     `json:"id"`
	Workspace    string     `json:"workspace"`
	Layer        string     `json:"layer"`
	LayerType    string     `json:"layer_type"`
	Status       string     `json:"status"`
	FilePath     string     `json:"file_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// StatusMessage is the payload published to the image-processing-status topic.
type StatusMessage struct {
	Workspace     string `json:"workspace"`
	StoreName     string `json:"store_name"`
	LayerType     string `json:"layer_type"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	OriginalLayer string `json:"original_layer"`
	FilePath      string `json:"file_path,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
