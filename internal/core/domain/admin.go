package domain

import "time"

type ServerStatus string

const (
	ServerOnline      ServerStatus = "online"
	ServerMaintenance ServerStatus = "maintenance"
	ServerOffline     ServerStatus = "offline"
)

type DashboardStats struct {
	TotalSummaries int          `json:"totalSummaries"`
	ActiveUsers    int          `json:"activeUsers"`
	ServerStatus   ServerStatus `json:"serverStatus"`
	AverageTime    string       `json:"averageTime"`
}

type AdminUser struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Role     ProfileRole   `json:"role"`
	Status   AccountStatus `json:"status"`
	JoinedAt string        `json:"joinedAt"`
}

type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
	LogWarning LogStatus = "warning"
)

type SystemLog struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Status    LogStatus `json:"status"`
}

// ActivityEntry is one row of the local activity log.
type ActivityEntry struct {
	ID        string
	UserID    string
	RecordID  string
	Action    string
	Details   string
	Status    LogStatus
	CreatedAt time.Time
}

func (e ActivityEntry) SystemLog() SystemLog {
	return SystemLog{
		ID:        e.ID,
		Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		Action:    e.Action,
		Details:   e.Details,
		Status:    e.Status,
	}
}
