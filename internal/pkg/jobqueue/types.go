package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeAssignRole grants the verified role to a member. Enqueued by the
	// web service when it runs without bot credentials; consumed by the
	// membership watcher.
	JobTypeAssignRole JobType = "assign_role"

	// JobTypeNotify posts the verification summary to the ops log channel.
	JobTypeNotify JobType = "notify"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkAsProcessing transitions the job into the processing state
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted transitions the job into the completed state
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed records the error and transitions the job into the failed state
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying bumps the retry count and transitions into the retrying state
func (j *Job) MarkAsRetrying() {
	j.RetryCount++
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job has retries left
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// AssignRoleJobPayload contains the payload for role assignment jobs
type AssignRoleJobPayload struct {
	DiscordID string `json:"discord_id"`
	Username  string `json:"username"`
}

// ToMap converts the payload to a map for storage
func (p AssignRoleJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"discord_id": p.DiscordID,
		"username":   p.Username,
	}
}

// AssignRoleJobPayloadFromMap creates a payload from a map
func AssignRoleJobPayloadFromMap(data map[string]interface{}) (*AssignRoleJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AssignRoleJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// NotifyJobPayload contains the payload for ops notification jobs
type NotifyJobPayload struct {
	DiscordID   string `json:"discord_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AvatarHash  string `json:"avatar_hash"`
	PremiumType int    `json:"premium_type"`
	RoleGranted bool   `json:"role_granted"`
	Backend     string `json:"backend"`
}

// ToMap converts the payload to a map for storage
func (p NotifyJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"discord_id":   p.DiscordID,
		"username":     p.Username,
		"email":        p.Email,
		"avatar_hash":  p.AvatarHash,
		"premium_type": p.PremiumType,
		"role_granted": p.RoleGranted,
		"backend":      p.Backend,
	}
}

// NotifyJobPayloadFromMap creates a payload from a map
func NotifyJobPayloadFromMap(data map[string]interface{}) (*NotifyJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotifyJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
