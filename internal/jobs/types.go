package jobs

type JobType string

const (
	// sends the reset link with the issued token
	JobSendPasswordReset JobType = "send_password_reset"

	// sends the post-registration welcome note
	JobSendWelcome JobType = "send_welcome"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case JobSendPasswordReset, JobSendWelcome:
		return true
	default:
		return false
	}
}
