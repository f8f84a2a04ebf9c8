package partybus

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const embedColorError = 0xE74C3C

var (
	ErrPositionExists         = errors.New("position exists")
	ErrPositionNotFound       = errors.New("position not found")
	ErrRequirementNotFound    = errors.New("requirement not found")
	ErrTrainerExists          = errors.New("trainer exists")
	ErrTrainerNotFound        = errors.New("trainer not found")
	ErrTraineeExists          = errors.New("trainee exists")
	ErrTraineeNotFound        = errors.New("trainee not found")
	ErrTraineeMissing         = errors.New("trainee missing")
	ErrRoleNotFound           = errors.New("role not found")
	ErrInvalidRoleID          = errors.New("invalid role id")
	ErrInvalidNumber          = errors.New("invalid number")
	ErrUnqualified            = errors.New("unqualified")
	ErrChannelNotSet          = errors.New("channel not set")
	ErrQualificationExists    = errors.New("qualification exists")
	ErrQualificationNotFound  = errors.New("qualification not found")
	ErrTrainingExists         = errors.New("training exists")
	ErrTrainingNotFound       = errors.New("training not found")
	ErrTrainingAlreadyMatched = errors.New("training already matched")
	ErrInvalidDate            = errors.New("invalid date")
	ErrJobNotFound            = errors.New("job not found")
	ErrJobTaken               = errors.New("job already taken")
	ErrOwnJob                 = errors.New("own job")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidImageURL        = errors.New("invalid image url")
)

// DisplayError is a domain error that can be shown to a discord user.
// errors.Is matches it against its Kind sentinel.
type DisplayError struct {
	Kind     error
	Title    string
	Message  string
	Solution string
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DisplayError) Unwrap() error {
	return e.Kind
}

// Embed renders the error with "What Happened?" and "How to Fix?" fields
func (e *DisplayError) Embed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     e.Title,
		Color:     embedColorError,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "What Happened?", Value: e.Message, Inline: true},
			{Name: "How to Fix?", Value: e.Solution, Inline: true},
		},
	}
}

// errorEmbed returns the embed for err if it's a *DisplayError, or a
// generic one otherwise.
func errorEmbed(err error) *discordgo.MessageEmbed {
	var de *DisplayError
	if errors.As(err, &de) {
		return de.Embed()
	}
	return (&DisplayError{
		Kind:     err,
		Title:    "Something Went Wrong",
		Message:  DefaultDiscordErrorMessage,
		Solution: "Try again in a moment. If this keeps happening, contact management.",
	}).Embed()
}

func newPositionExistsError(name string) *DisplayError {
	return &DisplayError{
		Kind:     ErrPositionExists,
		Title:    "Position Exists",
		Message:  fmt.Sprintf("The position `%s` already exists.", name),
		Solution: "Try a different name for the position.",
	}
}

func newPositionNotFoundError(name string) *DisplayError {
	return &DisplayError{
		Kind:     ErrPositionNotFound,
		Title:    "Position Not Found",
		Message:  fmt.Sprintf("The position `%s` was not found.", name),
		Solution: "Try a different name for the position.",
	}
}

func newRequirementNotFoundError(id string) *DisplayError {
	return &DisplayError{
		Kind:     ErrRequirementNotFound,
		Title:    "Requirement Not Found",
		Message:  fmt.Sprintf("A requirement with the ID `%s` was not found.", id),
		Solution: "Re-open the position status and try again.",
	}
}

func newTrainerExistsError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTrainerExists,
		Title:    "Trainer Exists",
		Message:  fmt.Sprintf("The trainer %s already exists.", mention(userID)),
		Solution: "Try a different user.",
	}
}

func newTrainerNotFoundError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTrainerNotFound,
		Title:    "Trainer Not Found",
		Message:  fmt.Sprintf("The user %s has not been registered as a trainer.", mention(userID)),
		Solution: "Try a different user.",
	}
}

func newTraineeExistsError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTraineeExists,
		Title:    "Trainee Exists",
		Message:  fmt.Sprintf("The user %s already exists as a trainee.", mention(userID)),
		Solution: "Try a different user.",
	}
}

func newTraineeNotFoundError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTraineeNotFound,
		Title:    "Trainee Not Found",
		Message:  fmt.Sprintf("The user %s has not been registered as a trainee.", mention(userID)),
		Solution: "Try a different user.",
	}
}

func newTraineeMissingError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTraineeMissing,
		Title:    "Trainee Missing",
		Message:  fmt.Sprintf("The user with ID#: %s is not registered as a trainee.", userID),
		Solution: "Consult management to force a post update on this message.",
	}
}

func newRoleNotFoundError(role string) *DisplayError {
	return &DisplayError{
		Kind:     ErrRoleNotFound,
		Title:    "Role Not Found",
		Message:  fmt.Sprintf("A server role with the signature `%s` was not found.", role),
		Solution: "Are you sure you mentioned an existing role?",
	}
}

func newInvalidRoleIDError(role string) *DisplayError {
	return &DisplayError{
		Kind:     ErrInvalidRoleID,
		Title:    "Invalid Role ID",
		Message:  fmt.Sprintf("A role with the ID `%s` was not located.", role),
		Solution: "Are you sure you entered the ID of an existing role?",
	}
}

func newInvalidNumberError(value string) *DisplayError {
	return &DisplayError{
		Kind:     ErrInvalidNumber,
		Title:    "Invalid Number",
		Message:  fmt.Sprintf("The value `%s` is not a valid number.", value),
		Solution: "Are you sure you entered a number?",
	}
}

func newUnqualifiedError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrUnqualified,
		Title:    "Unqualified :(",
		Message:  fmt.Sprintf("The user %s is not qualified to train this position.", mention(userID)),
		Solution: "Consult management to earn qualifications to train, or select another trainee.",
	}
}

func newChannelNotSetError(what string) *DisplayError {
	return &DisplayError{
		Kind:     ErrChannelNotSet,
		Title:    "Channel Not Set",
		Message:  fmt.Sprintf("The %s channel has not been set.", what),
		Solution: "Ask management to set the channel, then try again.",
	}
}

func newQualificationExistsError(position string) *DisplayError {
	return &DisplayError{
		Kind:     ErrQualificationExists,
		Title:    "Qualification Exists",
		Message:  fmt.Sprintf("This trainer is already qualified for `%s`.", position),
		Solution: "Use **Modify Qualification** to change the level instead.",
	}
}

func newQualificationNotFoundError(id string) *DisplayError {
	return &DisplayError{
		Kind:     ErrQualificationNotFound,
		Title:    "Qualification Not Found",
		Message:  fmt.Sprintf("A qualification with the ID `%s` was not found.", id),
		Solution: "Re-open the user status and try again.",
	}
}

func newTrainingNotFoundError(id string) *DisplayError {
	return &DisplayError{
		Kind:     ErrTrainingNotFound,
		Title:    "Training Not Found",
		Message:  fmt.Sprintf("A training with the ID `%s` was not found.", id),
		Solution: "It may have been removed. Re-open the menu and try again.",
	}
}

func newTrainingAlreadyMatchedError(traineeID string, position string) *DisplayError {
	return &DisplayError{
		Kind:  ErrTrainingAlreadyMatched,
		Title: "Already Matched",
		Message: fmt.Sprintf(
			"%s's `%s` training was picked up by another trainer.",
			mention(traineeID),
			position,
		),
		Solution: "Select another trainee from the sign up message.",
	}
}

func newInvalidDateError(month Month, day Day) *DisplayError {
	return &DisplayError{
		Kind:     ErrInvalidDate,
		Title:    "Invalid Date",
		Message:  fmt.Sprintf("%s %s is not a valid date.", month.Label(), day.Label()),
		Solution: "Select a different day.",
	}
}

func newJobTakenError() *DisplayError {
	return &DisplayError{
		Kind:     ErrJobTaken,
		Title:    "Job Taken",
		Message:  "Someone else has already accepted this job.",
		Solution: "Keep an eye out for the next posting!",
	}
}

func newJobNotFoundError(id string) *DisplayError {
	return &DisplayError{
		Kind:     ErrJobNotFound,
		Title:    "Job Not Found",
		Message:  fmt.Sprintf("A job with the ID `%s` was not found.", id),
		Solution: "The posting may have been removed.",
	}
}

func newUserNotFoundError(userID string) *DisplayError {
	return &DisplayError{
		Kind:     ErrUserNotFound,
		Title:    "User Not Found",
		Message:  fmt.Sprintf("The user %s has no training profile.", mention(userID)),
		Solution: "Have them run `/training profile` first.",
	}
}

func newInvalidImageURLError(url string) *DisplayError {
	return &DisplayError{
		Kind:     ErrInvalidImageURL,
		Title:    "Invalid Image URL",
		Message:  fmt.Sprintf("`%s` is not a valid image link.", url),
		Solution: "Enter a link starting with `http://` or `https://`.",
	}
}

func newOwnJobError() *DisplayError {
	return &DisplayError{
		Kind:     ErrOwnJob,
		Title:    "That's Your Job",
		Message:  "You can't accept a job you posted.",
		Solution: "Wait for someone else to pick it up.",
	}
}
