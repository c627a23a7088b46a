// Package domain defines the persistence models for paired users, the tasks
// they exchange, and the application-wide statistics row. These types are
// mapped with GORM and form the core data layer of the bot.
package domain

import "time"

// User is a chat participant identified by its Telegram id. A user is paired
// with at most one partner, and the relation is always symmetric: when
// A.PartnerID points at B, B.PartnerID points at A.
//
// Fields:
//   - ID: internal surrogate key referenced by tasks and partner links.
//   - TelegramID: stable external chat identifier (unique).
//   - Username / FullName: optional handle and display name ("" when unknown).
//   - PartnerID: the paired user, nil when unpaired.
//   - InviteCode / InviteExpiresAt: pending invite; both set or both nil.
//   - Tasks*: per-user counters, reset to zero only when a pair is dissolved.
//   - LastActiveAt / TotalMessages: activity tracking, updated on every update.
//   - JoinedAt: set once on creation.
//   - OneSignalSent / OneSignalReceived: best-effort web push counters.
type User struct {
	ID         uint   `json:"id"          gorm:"primaryKey"`
	TelegramID int64  `json:"telegram_id" gorm:"not null;uniqueIndex"`
	Username   string `json:"username"    gorm:"type:varchar(64);not null;default:''"`
	FullName   string `json:"full_name"   gorm:"type:varchar(255);not null;default:''"`

	PartnerID *uint `json:"partner_id,omitempty" gorm:"index"`

	InviteCode      *string    `json:"-" gorm:"type:varchar(16);uniqueIndex"`
	InviteExpiresAt *time.Time `json:"-" gorm:"column:invite_expires"`

	TasksCreated   int `json:"tasks_created"   gorm:"column:tasks_created_count;not null;default:0"`
	TasksCompleted int `json:"tasks_completed" gorm:"column:tasks_completed_count;not null;default:0"`
	TasksReceived  int `json:"tasks_received"  gorm:"column:tasks_received_count;not null;default:0"`
	TasksDeleted   int `json:"tasks_deleted"   gorm:"column:tasks_deleted_count;not null;default:0"`

	LastActiveAt  *time.Time `json:"last_active_at,omitempty" gorm:"index"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	TotalMessages int64      `json:"total_messages" gorm:"not null;default:0"`

	OneSignalSent     int `json:"onesignal_sent"     gorm:"column:onesignal_sent;not null;default:0"`
	OneSignalReceived int `json:"onesignal_received" gorm:"column:onesignal_received;not null;default:0"`

	// Partner is the self-referencing link. Removing a user detaches its partner.
	Partner *User `json:"-" gorm:"foreignKey:PartnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// HasPartner reports whether the user is currently paired.
func (u *User) HasPartner() bool { return u != nil && u.PartnerID != nil }

// DisplayName returns the best human-readable label for the user: the full
// name, then the @handle, then fallback.
func (u *User) DisplayName(fallback string) string {
	switch {
	case u == nil:
		return fallback
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return "@" + u.Username
	default:
		return fallback
	}
}

// Task is a short assignment sent from one partner to the other.
//
// Fields:
//   - AssignedByID: creator of the task.
//   - AssignedToID: the creator's partner at creation time (never equal to AssignedByID).
//   - Completed / CompletedAt: set together exactly once.
//
// Tasks are cascade-deleted together with either participant.
type Task struct {
	ID           uint       `json:"id"           gorm:"primaryKey"`
	Title        string     `json:"title"        gorm:"type:varchar(255);not null"`
	Description  string     `json:"description"  gorm:"type:text;not null;default:''"`
	AssignedByID uint       `json:"assigned_by"  gorm:"not null;index:idx_tasks_by_state,priority:1"`
	AssignedToID uint       `json:"assigned_to"  gorm:"not null;index:idx_tasks_to_state,priority:1"`
	CreatedAt    time.Time  `json:"created_at"   gorm:"index"`
	Completed    bool       `json:"completed"    gorm:"not null;default:false;index:idx_tasks_by_state,priority:2;index:idx_tasks_to_state,priority:2"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	AssignedBy *User `json:"-" gorm:"foreignKey:AssignedByID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	AssignedTo *User `json:"-" gorm:"foreignKey:AssignedToID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }

// AppStatsID is the primary key of the single AppStats row.
const AppStatsID uint = 1

// AppStats is the application-wide aggregate. Exactly one row exists; it is
// fully overwritten on each recomputation, never incremented.
type AppStats struct {
	ID                          uint      `json:"-"                             gorm:"primaryKey"`
	TotalUsers                  int64     `json:"total_users"                   gorm:"not null;default:0"`
	ActiveUsers                 int64     `json:"active_users"                  gorm:"not null;default:0"`
	TotalTasks                  int64     `json:"total_tasks"                   gorm:"not null;default:0"`
	CompletedTasks              int64     `json:"completed_tasks"               gorm:"not null;default:0"`
	OneSignalNotificationsTotal int64     `json:"onesignal_notifications_total" gorm:"column:onesignal_notifications_total;not null;default:0"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

// TableName returns the database table name for AppStats.
func (AppStats) TableName() string { return "app_stats" }
