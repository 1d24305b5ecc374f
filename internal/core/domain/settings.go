package domain

// Settings is the user-editable endpoint configuration.
type Settings struct {
	WebhookURL      string `json:"webhookUrl" yaml:"webhookUrl"`
	AdminWebhookURL string `json:"adminWebhookUrl,omitempty" yaml:"adminWebhookUrl,omitempty"`
}

// AdminEndpoint falls back to the submission webhook when no dedicated admin
// endpoint is configured.
func (s Settings) AdminEndpoint() string {
	if s.AdminWebhookURL != "" {
		return s.AdminWebhookURL
	}
	return s.WebhookURL
}

type AuthMode string

const (
	AuthModeNone  AuthMode = ""
	AuthModeUser  AuthMode = "USER"
	AuthModeAdmin AuthMode = "ADMIN"
)

type ProfileRole string

const (
	RoleUser  ProfileRole = "user"
	RoleAdmin ProfileRole = "admin"
)

type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
)

type Profile struct {
	ID     string        `json:"id"`
	Role   ProfileRole   `json:"role"`
	Status AccountStatus `json:"status"`
}
