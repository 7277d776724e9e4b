// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentProcessingTask represents the data structure for a document processing job.
type DocumentProcessingTask struct {
	DocumentID  string `json:"document_id"`
	ProjectID   string `json:"project_id"`
	UserID      uint   `json:"user_id"`
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	FileType    string `json:"file_type"`
	FreshUpload bool   `json:"fresh_upload"`
}
