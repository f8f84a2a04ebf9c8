//nolint:lll // struct tags can't be split
package partybus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// GlobalPositionID is the parent ID of requirements that apply to
	// every position
	GlobalPositionID      = "0"
	signupMessageRecordID = "trainer_signup_message"
)

func newID() string {
	return uuid.NewString()
}

// Position is a trainable role, e.g. "Bartender"
type Position struct {
	ModelStringID
	ModelUnixTime
	Name string `gorm:"not null" json:"name"`

	// TrainerRoleID is the discord role granted to trainers of this
	// position. Empty when unset.
	TrainerRoleID string `json:"trainer_role_id"`
	TraineeRoleID string `json:"trainee_role_id"`

	Requirements []Requirement `gorm:"-" json:"requirements"`
}

type Requirement struct {
	ModelStringID
	ModelUnixTime
	PositionID  string `gorm:"index;not null" json:"position_id"`
	Description string `gorm:"not null" json:"description"`
}

func (r Requirement) IsGlobal() bool {
	return r.PositionID == GlobalPositionID
}

// TUser is a discord user participating in training, as a trainer,
// a trainee, or both
type TUser struct {
	UserID string `gorm:"primaryKey" json:"user_id"`
	ModelUnixTime
	Name  string `json:"name"`
	Notes string `json:"notes"`

	Config         TUserConfig     `gorm:"-" json:"config"`
	Availability   []Availability  `gorm:"-" json:"availability"`
	Qualifications []Qualification `gorm:"-" json:"qualifications"`
}

func (TUser) TableName() string {
	return "tusers"
}

// DisplayName returns the user's name, or a mention if none is set
func (u TUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return mention(u.UserID)
}

// Qualification returns the user's qualification for positionID
func (u TUser) Qualification(positionID string) (Qualification, bool) {
	for _, q := range u.Qualifications {
		if q.PositionID == positionID {
			return q, true
		}
	}
	return Qualification{}, false
}

type TUserConfig struct {
	UserID   string `gorm:"primaryKey" json:"user_id"`
	ImageURL string `json:"image_url"`
	JobPings bool   `gorm:"not null" json:"job_pings"`
}

func (TUserConfig) TableName() string {
	return "tuser_config"
}

// Availability is the hours a trainee is available on a weekday,
// stored in the canonical timezone
type Availability struct {
	ModelUintID
	UserID    string  `gorm:"uniqueIndex:idx_availability_user_weekday;not null" json:"user_id"`
	Weekday   Weekday `gorm:"uniqueIndex:idx_availability_user_weekday;not null" json:"weekday"`
	StartSlot Hour    `gorm:"not null" json:"start_slot"`
	EndSlot   Hour    `gorm:"not null" json:"end_slot"`
}

func (Availability) TableName() string {
	return "availability"
}

// Qualification records that a user may train a position
type Qualification struct {
	ModelStringID
	ModelUnixTime
	UserID     string        `gorm:"uniqueIndex:idx_qualification_user_position;not null" json:"user_id"`
	PositionID string        `gorm:"uniqueIndex:idx_qualification_user_position;not null" json:"position_id"`
	Level      TrainingLevel `gorm:"not null" json:"level"`
}

// Training is a trainee's request to be trained in a position.
// TrainerID is nil until a trainer is matched.
type Training struct {
	ModelStringID
	ModelUnixTime
	TraineeID  string  `gorm:"column:trainee_user_id;uniqueIndex:idx_training_trainee_position;not null" json:"trainee_user_id"`
	PositionID string  `gorm:"uniqueIndex:idx_training_trainee_position;not null" json:"position_id"`
	TrainerID  *string `gorm:"column:trainer_user_id;index" json:"trainer_user_id"`

	// Overrides maps requirement IDs to the trainee's progress.
	// A missing entry means the requirement hasn't been started.
	Overrides map[string]RequirementLevel `gorm:"-" json:"overrides"`
}

func (t Training) Matched() bool {
	return t.TrainerID != nil && *t.TrainerID != ""
}

func (t Training) Trainer() string {
	if t.TrainerID == nil {
		return ""
	}
	return *t.TrainerID
}

// RequirementOverride is a trainee's progress on one requirement
// of one training
type RequirementOverride struct {
	TrainingID    string           `gorm:"primaryKey" json:"training_id"`
	RequirementID string           `gorm:"primaryKey" json:"requirement_id"`
	UserID        string           `gorm:"index;not null" json:"user_id"`
	Level         RequirementLevel `gorm:"not null" json:"level"`
}

// SignupMessageRecord is the location of the trainer signup message
type SignupMessageRecord struct {
	ID        string `gorm:"primaryKey" json:"id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (SignupMessageRecord) TableName() string {
	return "messages"
}

// Job is a short-term gig posting. Date, StartTime and EndTime are in
// Timezone, the canonical timezone at the time the job was posted.
type Job struct {
	ModelStringID
	ModelUnixTime
	PositionID  string           `gorm:"index;not null" json:"position_id"`
	Venue       string           `gorm:"not null" json:"venue"`
	Description string           `json:"description"`
	Date        datatypes.Date   `json:"date"`
	StartTime   datatypes.Time   `json:"start_time"`
	EndTime     datatypes.Time   `json:"end_time"`
	Timezone    string           `json:"timezone"`
	PayRate     int              `json:"pay_rate"`
	PayType     CompensationType `json:"pay_type"`
	RequesterID string           `gorm:"index;not null" json:"requester_id"`
	ApplicantID *string          `gorm:"index" json:"applicant_id"`
	ChannelID   string           `json:"channel_id"`
	MessageID   string           `json:"message_id"`
}

// Window returns the start and end of the job. A job ending at or
// before its start time ends on the following day.
func (j Job) Window() (start, end time.Time) {
	tz, ok := TimezoneByName(j.Timezone)
	loc := time.UTC
	if ok {
		loc = zoneLocation(tz)
	}
	d := time.Time(j.Date)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	start = day.Add(time.Duration(j.StartTime))
	end = day.Add(time.Duration(j.EndTime))
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

func (j Job) Taken() bool {
	return j.ApplicantID != nil && *j.ApplicantID != ""
}
