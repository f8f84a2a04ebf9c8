package partybus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestStore(t testing.TB) *Store {
	t.Helper()
	bot, _ := newTestPartyBus(t)
	return bot.store
}

func mustAddPosition(t testing.TB, s *Store, name string) Position {
	t.Helper()
	pos, err := s.AddPosition(context.Background(), name)
	require.NoError(t, err)
	return pos
}

func mustEnsureTUser(t testing.TB, s *Store, userID string, name string) TUser {
	t.Helper()
	u, _, err := s.EnsureTUser(context.Background(), userID, name)
	require.NoError(t, err)
	return u
}

func TestStore_AddPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos, err := s.AddPosition(ctx, "  bartender's helper ")
	require.NoError(t, err)
	assert.Equal(t, "Bartender's Helper", pos.Name)
	assert.NotEmpty(t, pos.ID)

	_, err = s.AddPosition(ctx, "BARTENDER'S HELPER")
	assert.ErrorIs(t, err, ErrPositionExists)

	_, err = s.AddPosition(ctx, "   ")
	assert.Error(t, err)

	found, ok := s.PositionByName("bartender's HELPER")
	require.True(t, ok)
	assert.Equal(t, pos.ID, found.ID)
}

func TestStore_PositionsSorted(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"security", "Bartender", "dancer"} {
		mustAddPosition(t, s, name)
	}
	var names []string
	for _, p := range s.Positions() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Bartender", "Dancer", "Security"}, names)
}

func TestStore_RenamePosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bartender := mustAddPosition(t, s, "bartender")
	mustAddPosition(t, s, "dancer")

	renamed, err := s.RenamePosition(ctx, bartender.ID, "head bartender")
	require.NoError(t, err)
	assert.Equal(t, "Head Bartender", renamed.Name)

	_, err = s.RenamePosition(ctx, bartender.ID, "Dancer")
	assert.ErrorIs(t, err, ErrPositionExists)

	// renaming to its own name, in a different case, is allowed
	_, err = s.RenamePosition(ctx, bartender.ID, "HEAD BARTENDER")
	assert.NoError(t, err)

	_, err = s.RenamePosition(ctx, "missing", "Anything")
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestStore_SetPositionRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")

	trainer := "111"
	trainee := "222"
	updated, err := s.SetPositionRoles(ctx, pos.ID, &trainer, &trainee)
	require.NoError(t, err)
	assert.Equal(t, "111", updated.TrainerRoleID)
	assert.Equal(t, "222", updated.TraineeRoleID)

	// nil leaves the role unchanged
	cleared := ""
	updated, err = s.SetPositionRoles(ctx, pos.ID, &cleared, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.TrainerRoleID)
	assert.Equal(t, "222", updated.TraineeRoleID)

	_, err = s.SetPositionRoles(ctx, "missing", &trainer, nil)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestStore_Requirements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")

	own, err := s.AddRequirement(ctx, pos.ID, "Pour a pint")
	require.NoError(t, err)
	global, err := s.AddRequirement(ctx, GlobalPositionID, "Read the handbook")
	require.NoError(t, err)
	assert.True(t, global.IsGlobal())
	assert.False(t, own.IsGlobal())

	_, err = s.AddRequirement(ctx, pos.ID, "  ")
	assert.Error(t, err)
	_, err = s.AddRequirement(ctx, "missing", "Anything")
	assert.ErrorIs(t, err, ErrPositionNotFound)

	reqs := s.RequirementsFor(pos.ID)
	require.Len(t, reqs, 2)
	assert.Equal(t, own.ID, reqs[0].ID)
	assert.Equal(t, global.ID, reqs[1].ID)

	require.NoError(t, s.RemoveRequirement(ctx, GlobalPositionID, global.ID))
	assert.Empty(t, s.GlobalRequirements())
	assert.ErrorIs(t, s.RemoveRequirement(ctx, pos.ID, global.ID), ErrRequirementNotFound)
	assert.ErrorIs(t, s.RemoveRequirement(ctx, "missing", own.ID), ErrPositionNotFound)
}

func TestStore_RemoveRequirement_RemovesOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	req, err := s.AddRequirement(ctx, pos.ID, "Pour a pint")
	require.NoError(t, err)
	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	trainings, err := s.AddTrainings(ctx, testTraineeID, []string{pos.ID})
	require.NoError(t, err)
	require.Len(t, trainings, 1)

	require.NoError(t, s.SetRequirementOverride(ctx, trainings[0].ID, req.ID, RequirementLevelComplete))
	require.NoError(t, s.RemoveRequirement(ctx, pos.ID, req.ID))

	tr, ok := s.Training(trainings[0].ID)
	require.True(t, ok)
	assert.Empty(t, tr.Overrides)

	var count int64
	require.NoError(t, s.db.DB().Model(&RequirementOverride{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStore_EnsureTUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, created, err := s.EnsureTUser(ctx, testTraineeID, " Trainee ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Trainee", u.Name)
	assert.True(t, u.Config.JobPings)

	u, created, err = s.EnsureTUser(ctx, testTraineeID, "Someone Else")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Trainee", u.Name)
}

func TestStore_UserSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsureTUser(t, s, testTraineeID, "Trainee")

	u, err := s.SetTUserName(ctx, testTraineeID, "New Name")
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)

	u, err = s.SetTUserNotes(ctx, testTraineeID, "weekends only")
	require.NoError(t, err)
	assert.Equal(t, "weekends only", u.Notes)

	enabled, err := s.ToggleJobPings(ctx, testTraineeID)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, s.SetImageURL(ctx, testTraineeID, "https://example.com/me.png"))
	u, _ = s.TUser(testTraineeID)
	assert.Equal(t, "https://example.com/me.png", u.Config.ImageURL)

	_, err = s.SetTUserName(ctx, testOtherID, "Nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = s.ToggleJobPings(ctx, testOtherID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_TUsersSorted(t *testing.T) {
	s := newTestStore(t)
	mustEnsureTUser(t, s, testTrainerID, "zed")
	mustEnsureTUser(t, s, testTraineeID, "Amy")
	var names []string
	for _, u := range s.TUsers() {
		names = append(names, u.DisplayName())
	}
	assert.Equal(t, []string{"Amy", "zed"}, names)
}

func TestStore_SetAvailability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsureTUser(t, s, testTraineeID, "Trainee")

	require.NoError(t, s.SetAvailability(ctx, testTraineeID, []Weekday{Friday, Monday}, Hour(19), Hour(23)))
	u, _ := s.TUser(testTraineeID)
	require.Len(t, u.Availability, 2)
	assert.Equal(t, Monday, u.Availability[0].Weekday)
	assert.Equal(t, Friday, u.Availability[1].Weekday)

	// setting a day again replaces its hours
	require.NoError(t, s.SetAvailability(ctx, testTraineeID, []Weekday{Monday}, Hour(10), Hour(12)))
	u, _ = s.TUser(testTraineeID)
	require.Len(t, u.Availability, 2)
	assert.Equal(t, Hour(10), u.Availability[0].StartSlot)
	assert.Equal(t, Hour(12), u.Availability[0].EndSlot)

	require.NoError(t, s.SetAvailability(ctx, testTraineeID, []Weekday{Friday}, HourUnavailable, HourUnavailable))
	u, _ = s.TUser(testTraineeID)
	require.Len(t, u.Availability, 1)
	assert.Equal(t, Monday, u.Availability[0].Weekday)

	var rows []Availability
	require.NoError(t, s.db.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, Hour(10), rows[0].StartSlot)

	err := s.SetAvailability(ctx, testOtherID, []Weekday{Monday}, Hour(1), Hour(2))
	assert.ErrorIs(t, err, ErrTraineeNotFound)
}

func TestStore_Qualifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	mustEnsureTUser(t, s, testTrainerID, "Trainer")

	q, err := s.AddQualification(ctx, testTrainerID, pos.ID, TrainingLevelActive)
	require.NoError(t, err)

	_, err = s.AddQualification(ctx, testTrainerID, pos.ID, TrainingLevelActive)
	assert.ErrorIs(t, err, ErrQualificationExists)
	_, err = s.AddQualification(ctx, testOtherID, pos.ID, TrainingLevelActive)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = s.AddQualification(ctx, testTrainerID, "missing", TrainingLevelActive)
	assert.ErrorIs(t, err, ErrPositionNotFound)

	assert.Equal(t, []string{pos.ID}, s.QualifiedPositionIDs(testTrainerID))
	trainers := s.QualifiedTrainers(pos.ID)
	require.Len(t, trainers, 1)
	assert.Equal(t, testTrainerID, trainers[0].UserID)

	require.NoError(t, s.ModifyQualification(ctx, testTrainerID, q.ID, TrainingLevelOnHold))
	u, _ := s.TUser(testTrainerID)
	got, ok := u.Qualification(pos.ID)
	require.True(t, ok)
	assert.Equal(t, TrainingLevelOnHold, got.Level)

	assert.ErrorIs(t, s.ModifyQualification(ctx, testTrainerID, "missing", TrainingLevelActive), ErrQualificationNotFound)
	assert.ErrorIs(t, s.ModifyQualification(ctx, testOtherID, q.ID, TrainingLevelActive), ErrTrainerNotFound)

	require.NoError(t, s.RemoveQualification(ctx, testTrainerID, q.ID))
	assert.Empty(t, s.QualifiedPositionIDs(testTrainerID))
	assert.ErrorIs(t, s.RemoveQualification(ctx, testTrainerID, q.ID), ErrQualificationNotFound)
}

func TestStore_AddTrainings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bartender := mustAddPosition(t, s, "bartender")
	dancer := mustAddPosition(t, s, "dancer")
	mustEnsureTUser(t, s, testTraineeID, "Trainee")

	created, err := s.AddTrainings(ctx, testTraineeID, []string{bartender.ID})
	require.NoError(t, err)
	require.Len(t, created, 1)

	// positions already held are skipped
	created, err = s.AddTrainings(ctx, testTraineeID, []string{bartender.ID, dancer.ID, dancer.ID})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, dancer.ID, created[0].PositionID)

	created, err = s.AddTrainings(ctx, testTraineeID, []string{bartender.ID})
	require.NoError(t, err)
	assert.Nil(t, created)

	_, err = s.AddTrainings(ctx, testOtherID, []string{bartender.ID})
	assert.ErrorIs(t, err, ErrTraineeNotFound)
	_, err = s.AddTrainings(ctx, testTraineeID, []string{"missing"})
	assert.ErrorIs(t, err, ErrPositionNotFound)

	trainings := s.TrainingsFor(testTraineeID)
	require.Len(t, trainings, 2)
	assert.Equal(t, bartender.ID, trainings[0].PositionID)
	assert.Equal(t, dancer.ID, trainings[1].PositionID)
	assert.Len(t, s.UnmatchedTrainings(), 2)
}

func TestStore_AssignTrainer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	created, err := s.AddTrainings(ctx, testTraineeID, []string{pos.ID})
	require.NoError(t, err)
	trainingID := created[0].ID

	tr, err := s.AssignTrainer(ctx, trainingID, testTrainerID, true)
	require.NoError(t, err)
	assert.True(t, tr.Matched())
	assert.Equal(t, testTrainerID, tr.Trainer())
	assert.Empty(t, s.UnmatchedTrainings())

	_, err = s.AssignTrainer(ctx, trainingID, testOtherID, true)
	assert.ErrorIs(t, err, ErrTrainingAlreadyMatched)

	// an admin reassignment doesn't require the training to be unmatched
	tr, err = s.AssignTrainer(ctx, trainingID, testOtherID, false)
	require.NoError(t, err)
	assert.Equal(t, testOtherID, tr.Trainer())

	tr, err = s.ClearTrainer(ctx, trainingID)
	require.NoError(t, err)
	assert.False(t, tr.Matched())

	var stored Training
	require.NoError(t, s.db.DB().First(&stored, "id = ?", trainingID).Error)
	assert.Nil(t, stored.TrainerID)

	_, err = s.AssignTrainer(ctx, "missing", testTrainerID, true)
	assert.ErrorIs(t, err, ErrTrainingNotFound)
}

func TestStore_AssignTrainer_MatchedInDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	created, err := s.AddTrainings(ctx, testTraineeID, []string{pos.ID})
	require.NoError(t, err)
	trainingID := created[0].ID

	// another instance matched the training after this one loaded it
	require.NoError(
		t,
		s.db.DB().Model(&Training{}).
			Where("id = ?", trainingID).
			Update(columnTrainerUserID, testOtherID).Error,
	)

	_, err = s.AssignTrainer(ctx, trainingID, testTrainerID, true)
	assert.ErrorIs(t, err, ErrTrainingAlreadyMatched)

	tr, _ := s.Training(trainingID)
	assert.False(t, tr.Matched())
}

func TestStore_SetRequirementOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bartender := mustAddPosition(t, s, "bartender")
	dancer := mustAddPosition(t, s, "dancer")
	own, err := s.AddRequirement(ctx, bartender.ID, "Pour a pint")
	require.NoError(t, err)
	global, err := s.AddRequirement(ctx, GlobalPositionID, "Read the handbook")
	require.NoError(t, err)
	other, err := s.AddRequirement(ctx, dancer.ID, "Learn the routine")
	require.NoError(t, err)

	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	created, err := s.AddTrainings(ctx, testTraineeID, []string{bartender.ID})
	require.NoError(t, err)
	trainingID := created[0].ID

	require.NoError(t, s.SetRequirementOverride(ctx, trainingID, own.ID, RequirementLevelInProgress))
	require.NoError(t, s.SetRequirementOverride(ctx, trainingID, own.ID, RequirementLevelComplete))
	require.NoError(t, s.SetRequirementOverride(ctx, trainingID, global.ID, RequirementLevelWaived))

	err = s.SetRequirementOverride(ctx, trainingID, other.ID, RequirementLevelComplete)
	assert.ErrorIs(t, err, ErrRequirementNotFound)
	err = s.SetRequirementOverride(ctx, "missing", own.ID, RequirementLevelComplete)
	assert.ErrorIs(t, err, ErrTrainingNotFound)

	tr, _ := s.Training(trainingID)
	assert.Equal(
		t,
		map[string]RequirementLevel{own.ID: RequirementLevelComplete, global.ID: RequirementLevelWaived},
		tr.Overrides,
	)

	var rows []RequirementOverride
	require.NoError(t, s.db.DB().Find(&rows).Error)
	assert.Len(t, rows, 2)
}

func TestStore_RemoveTraining(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	req, err := s.AddRequirement(ctx, pos.ID, "Pour a pint")
	require.NoError(t, err)
	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	created, err := s.AddTrainings(ctx, testTraineeID, []string{pos.ID})
	require.NoError(t, err)
	require.NoError(t, s.SetRequirementOverride(ctx, created[0].ID, req.ID, RequirementLevelComplete))

	require.NoError(t, s.RemoveTraining(ctx, created[0].ID))
	_, ok := s.Training(created[0].ID)
	assert.False(t, ok)
	assert.ErrorIs(t, s.RemoveTraining(ctx, created[0].ID), ErrTrainingNotFound)

	var count int64
	require.NoError(t, s.db.DB().Model(&RequirementOverride{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStore_SignupLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.Equal(t, SignupMessageRecord{ID: signupMessageRecordID}, s.SignupLocation())

	require.NoError(t, s.SetSignupLocation(ctx, testChannelID, "123"))
	require.NoError(t, s.SetSignupLocation(ctx, testChannelID, "456"))
	assert.Equal(t, "456", s.SignupLocation().MessageID)

	var rows []SignupMessageRecord
	require.NoError(t, s.db.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "456", rows[0].MessageID)
}

func testJob(positionID string, requesterID string, day time.Time) Job {
	return Job{
		PositionID:  positionID,
		Venue:       "The Velvet Room",
		Description: "Cover a shift",
		Date:        datatypes.Date(day),
		StartTime:   datatypes.NewTime(20, 0, 0, 0),
		EndTime:     datatypes.NewTime(2, 0, 0, 0),
		Timezone:    "EST",
		PayRate:     250000,
		PayType:     CompensationFlat,
		RequesterID: requesterID,
	}
}

func TestStore_Jobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")

	later, err := s.CreateJob(ctx, testJob(pos.ID, testAdminID, time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	sooner, err := s.CreateJob(ctx, testJob(pos.ID, testAdminID, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.NotEqual(t, later.ID, sooner.ID)

	_, err = s.CreateJob(ctx, testJob("missing", testAdminID, time.Now()))
	assert.ErrorIs(t, err, ErrPositionNotFound)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, sooner.ID, jobs[0].ID)

	// a job posted before it's saved keeps its ID and message
	draft := testJob(pos.ID, testAdminID, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	draft.ID = newID()
	draft.ChannelID = testJobChanID
	draft.MessageID = "999"
	_, err = s.CreateJob(ctx, draft)
	require.NoError(t, err)
	j, ok := s.Job(draft.ID)
	require.True(t, ok)
	assert.Equal(t, "999", j.MessageID)
	assert.Equal(t, testJobChanID, j.ChannelID)

	accepted, err := s.AcceptJob(ctx, sooner.ID, testTrainerID)
	require.NoError(t, err)
	assert.True(t, accepted.Taken())

	_, err = s.AcceptJob(ctx, sooner.ID, testOtherID)
	assert.ErrorIs(t, err, ErrJobTaken)
	_, err = s.AcceptJob(ctx, "missing", testOtherID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStore_AcceptJob_TakenInDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := mustAddPosition(t, s, "bartender")
	job, err := s.CreateJob(ctx, testJob(pos.ID, testAdminID, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(
		t,
		s.db.DB().Model(&Job{}).Where("id = ?", job.ID).Update(columnApplicantID, testOtherID).Error,
	)
	_, err = s.AcceptJob(ctx, job.ID, testTrainerID)
	assert.ErrorIs(t, err, ErrJobTaken)
}

func TestStore_Load(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	s := bot.store
	ctx := context.Background()

	pos := mustAddPosition(t, s, "bartender")
	req, err := s.AddRequirement(ctx, pos.ID, "Pour a pint")
	require.NoError(t, err)
	_, err = s.AddRequirement(ctx, GlobalPositionID, "Read the handbook")
	require.NoError(t, err)
	mustEnsureTUser(t, s, testTraineeID, "Trainee")
	mustEnsureTUser(t, s, testTrainerID, "Trainer")
	_, err = s.ToggleJobPings(ctx, testTrainerID)
	require.NoError(t, err)
	_, err = s.AddQualification(ctx, testTrainerID, pos.ID, TrainingLevelActive)
	require.NoError(t, err)
	require.NoError(t, s.SetAvailability(ctx, testTraineeID, []Weekday{Saturday}, Hour(20), Hour(24)))
	created, err := s.AddTrainings(ctx, testTraineeID, []string{pos.ID})
	require.NoError(t, err)
	_, err = s.AssignTrainer(ctx, created[0].ID, testTrainerID, true)
	require.NoError(t, err)
	require.NoError(t, s.SetRequirementOverride(ctx, created[0].ID, req.ID, RequirementLevelInProgress))
	_, err = s.CreateJob(ctx, testJob(pos.ID, testAdminID, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NoError(t, s.SetSignupLocation(ctx, testChannelID, "42"))

	loaded := NewStore(bot.writeDB, nil)
	require.NoError(t, loaded.Load(ctx))

	positions := loaded.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, pos.ID, positions[0].ID)
	require.Len(t, positions[0].Requirements, 1)
	assert.Equal(t, req.ID, positions[0].Requirements[0].ID)
	require.Len(t, loaded.GlobalRequirements(), 1)
	assert.Equal(t, "Read the handbook", loaded.GlobalRequirements()[0].Description)

	assert.Len(t, loaded.TUsers(), 2)
	trainer, ok := loaded.TUser(testTrainerID)
	require.True(t, ok)
	assert.False(t, trainer.Config.JobPings)
	_, ok = trainer.Qualification(pos.ID)
	assert.True(t, ok)

	trainee, ok := loaded.TUser(testTraineeID)
	require.True(t, ok)
	assert.True(t, trainee.Config.JobPings)
	require.Len(t, trainee.Availability, 1)
	assert.Equal(t, Saturday, trainee.Availability[0].Weekday)
	assert.Equal(t, Hour(24), trainee.Availability[0].EndSlot)

	tr, ok := loaded.Training(created[0].ID)
	require.True(t, ok)
	assert.Equal(t, testTrainerID, tr.Trainer())
	assert.Equal(t, map[string]RequirementLevel{req.ID: RequirementLevelInProgress}, tr.Overrides)

	assert.Len(t, loaded.Jobs(), 1)
	assert.Equal(t, s.SignupLocation(), loaded.SignupLocation())
}
