package model

// Profile is the subset of a user profile the messaging service reads.
type Profile struct {
	ID        string `json:"id" db:"id"`
	FullName  string `json:"full_name" db:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty" db:"avatar_url"`
	IsPrivate bool   `json:"is_private" db:"is_private"`
	AcceptDM  bool   `json:"accept_dm" db:"accept_dm"`
}

// ApplicationStatus is the review state of a job application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application links a student to an employer through a job posting.
type Application struct {
	ID         string            `json:"id" db:"id"`
	Status     ApplicationStatus `json:"status" db:"status"`
	StudentID  string            `json:"student_id" db:"student_id"`
	EmployerID string            `json:"employer_id" db:"employer_id"`
}
