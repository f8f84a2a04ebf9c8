package partybus

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	columnName          = "name"
	columnNotes         = "notes"
	columnTrainerRoleID = "trainer_role_id"
	columnTraineeRoleID = "trainee_role_id"
	columnJobPings      = "job_pings"
	columnImageURL      = "image_url"
	columnLevel         = "level"
	columnTrainerUserID = "trainer_user_id"
	columnApplicantID   = "applicant_id"
)

// Store holds every position, user, training and job in memory.
// It's the system of record while the bot runs: all mutations go
// through Store methods, which hold the write lock while writing
// through to the database. Readers receive copies.
type Store struct {
	mu     sync.RWMutex
	db     DBI
	logger *slog.Logger

	positions  map[string]*Position
	globalReqs []Requirement
	users      map[string]*TUser
	trainings  map[string]*Training
	jobs       map[string]*Job
	signup     SignupMessageRecord
}

func NewStore(db DBI, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger.With(loggerNameKey, "store"),
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.positions = map[string]*Position{}
	s.globalReqs = nil
	s.users = map[string]*TUser{}
	s.trainings = map[string]*Training{}
	s.jobs = map[string]*Job{}
	s.signup = SignupMessageRecord{ID: signupMessageRecordID}
}

// Load replaces the store's contents with everything in the database.
// Tables are read concurrently, then assembled under the write lock.
func (s *Store) Load(ctx context.Context) error {
	var (
		positions []Position
		reqs      []Requirement
		users     []TUser
		configs   []TUserConfig
		avail     []Availability
		quals     []Qualification
		trainings []Training
		overrides []RequirementOverride
		jobs      []Job
		messages  []SignupMessageRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	find := func(dest any, order string) func() error {
		return func() error {
			db := s.db.DB().WithContext(gctx)
			if order != "" {
				db = db.Order(order)
			}
			return db.Find(dest).Error
		}
	}
	g.Go(find(&positions, ""))
	g.Go(find(&reqs, "created_at, id"))
	g.Go(find(&users, ""))
	g.Go(find(&configs, ""))
	g.Go(find(&avail, "weekday"))
	g.Go(find(&quals, "created_at, id"))
	g.Go(find(&trainings, "created_at, id"))
	g.Go(find(&overrides, ""))
	g.Go(find(&jobs, ""))
	g.Go(find(&messages, ""))
	if err := g.Wait(); err != nil {
		return fmt.Errorf("error loading store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()

	for i := range positions {
		p := positions[i]
		s.positions[p.ID] = &p
	}
	for _, r := range reqs {
		if r.IsGlobal() {
			s.globalReqs = append(s.globalReqs, r)
			continue
		}
		if p, ok := s.positions[r.PositionID]; ok {
			p.Requirements = append(p.Requirements, r)
		} else {
			s.logger.WarnContext(ctx, "orphaned requirement", "requirement", r.ID, "position_id", r.PositionID)
		}
	}
	for i := range users {
		u := users[i]
		u.Config = TUserConfig{UserID: u.UserID, JobPings: true}
		s.users[u.UserID] = &u
	}
	for _, c := range configs {
		if u, ok := s.users[c.UserID]; ok {
			u.Config = c
		}
	}
	for _, a := range avail {
		if u, ok := s.users[a.UserID]; ok {
			u.Availability = append(u.Availability, a)
		}
	}
	for _, q := range quals {
		if u, ok := s.users[q.UserID]; ok {
			u.Qualifications = append(u.Qualifications, q)
		}
	}
	for i := range trainings {
		t := trainings[i]
		t.Overrides = map[string]RequirementLevel{}
		s.trainings[t.ID] = &t
	}
	for _, o := range overrides {
		if t, ok := s.trainings[o.TrainingID]; ok {
			t.Overrides[o.RequirementID] = o.Level
		}
	}
	for i := range jobs {
		j := jobs[i]
		s.jobs[j.ID] = &j
	}
	for _, m := range messages {
		if m.ID == signupMessageRecordID {
			s.signup = m
		}
	}

	s.logger.InfoContext(
		ctx,
		"loaded store",
		"positions", len(s.positions),
		"users", len(s.users),
		"trainings", len(s.trainings),
		"jobs", len(s.jobs),
	)
	return nil
}

func clonePosition(p *Position) Position {
	c := *p
	c.Requirements = slices.Clone(p.Requirements)
	return c
}

func cloneTUser(u *TUser) TUser {
	c := *u
	c.Availability = slices.Clone(u.Availability)
	c.Qualifications = slices.Clone(u.Qualifications)
	return c
}

func cloneTraining(t *Training) Training {
	c := *t
	if t.TrainerID != nil {
		id := *t.TrainerID
		c.TrainerID = &id
	}
	c.Overrides = maps.Clone(t.Overrides)
	if c.Overrides == nil {
		c.Overrides = map[string]RequirementLevel{}
	}
	return c
}

func cloneJob(j *Job) Job {
	c := *j
	if j.ApplicantID != nil {
		id := *j.ApplicantID
		c.ApplicantID = &id
	}
	return c
}

// AddPosition titleizes name and creates a position for it
func (s *Store) AddPosition(ctx context.Context, name string) (Position, error) {
	name = titleize(strings.TrimSpace(name))
	if name == "" {
		return Position{}, errors.New("position name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positionByNameLocked(name); exists {
		return Position{}, newPositionExistsError(name)
	}

	p := &Position{ModelStringID: ModelStringID{ID: newID()}, Name: name}
	if _, err := s.db.Create(ctx, p); err != nil {
		return Position{}, fmt.Errorf("error creating position: %w", err)
	}
	s.positions[p.ID] = p
	s.logger.InfoContext(ctx, "added position", "position", p.Name, "id", p.ID)
	return clonePosition(p), nil
}

func (s *Store) Position(id string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return Position{}, false
	}
	return clonePosition(p), true
}

// PositionByName finds a position by name, ignoring case
func (s *Store) PositionByName(name string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positionByNameLocked(name)
	if !ok {
		return Position{}, false
	}
	return clonePosition(p), true
}

func (s *Store) positionByNameLocked(name string) (*Position, bool) {
	name = strings.TrimSpace(name)
	for _, p := range s.positions {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// Positions returns every position, sorted by name
func (s *Store) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		rv = append(rv, clonePosition(p))
	}
	slices.SortFunc(rv, comparePositions)
	return rv
}

func comparePositions(a, b Position) int {
	return cmp.Or(
		cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
		cmp.Compare(a.ID, b.ID),
	)
}

// positionName returns the position's name, or its ID if it's unknown
func (s *Store) positionName(id string) string {
	if p, ok := s.Position(id); ok {
		return p.Name
	}
	return id
}

// RenamePosition titleizes name and renames the position
func (s *Store) RenamePosition(ctx context.Context, id string, name string) (Position, error) {
	name = titleize(strings.TrimSpace(name))
	if name == "" {
		return Position{}, errors.New("position name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return Position{}, newPositionNotFoundError(id)
	}
	if other, exists := s.positionByNameLocked(name); exists && other.ID != id {
		return Position{}, newPositionExistsError(name)
	}
	if _, err := s.db.Update(ctx, &Position{ModelStringID: ModelStringID{ID: id}}, columnName, name); err != nil {
		return Position{}, fmt.Errorf("error renaming position: %w", err)
	}
	p.Name = name
	return clonePosition(p), nil
}

// SetPositionRoles sets the trainer and trainee role IDs for a
// position. A nil argument leaves that role unchanged, and an empty
// string clears it.
func (s *Store) SetPositionRoles(
	ctx context.Context,
	id string,
	trainerRoleID *string,
	traineeRoleID *string,
) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return Position{}, newPositionNotFoundError(id)
	}
	updates := map[string]any{}
	if trainerRoleID != nil {
		updates[columnTrainerRoleID] = *trainerRoleID
	}
	if traineeRoleID != nil {
		updates[columnTraineeRoleID] = *traineeRoleID
	}
	if len(updates) == 0 {
		return clonePosition(p), nil
	}
	if _, err := s.db.Updates(ctx, &Position{ModelStringID: ModelStringID{ID: id}}, updates); err != nil {
		return Position{}, fmt.Errorf("error updating position roles: %w", err)
	}
	if trainerRoleID != nil {
		p.TrainerRoleID = *trainerRoleID
	}
	if traineeRoleID != nil {
		p.TraineeRoleID = *traineeRoleID
	}
	return clonePosition(p), nil
}

// AddRequirement adds a requirement to a position. Use GlobalPositionID
// to add a requirement that applies to every position.
func (s *Store) AddRequirement(
	ctx context.Context,
	positionID string,
	description string,
) (Requirement, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Requirement{}, errors.New("requirement description is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var p *Position
	if positionID != GlobalPositionID {
		var ok bool
		if p, ok = s.positions[positionID]; !ok {
			return Requirement{}, newPositionNotFoundError(positionID)
		}
	}

	r := Requirement{
		ModelStringID: ModelStringID{ID: newID()},
		PositionID:    positionID,
		Description:   description,
	}
	if _, err := s.db.Create(ctx, &r); err != nil {
		return Requirement{}, fmt.Errorf("error creating requirement: %w", err)
	}
	if p == nil {
		s.globalReqs = append(s.globalReqs, r)
	} else {
		p.Requirements = append(p.Requirements, r)
	}
	return r, nil
}

// RemoveRequirement deletes a requirement and any progress recorded
// against it
func (s *Store) RemoveRequirement(ctx context.Context, positionID string, requirementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs *[]Requirement
	if positionID == GlobalPositionID {
		reqs = &s.globalReqs
	} else {
		p, ok := s.positions[positionID]
		if !ok {
			return newPositionNotFoundError(positionID)
		}
		reqs = &p.Requirements
	}
	idx := slices.IndexFunc(*reqs, func(r Requirement) bool { return r.ID == requirementID })
	if idx < 0 {
		return newRequirementNotFoundError(requirementID)
	}

	err := s.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			if err := tx.Where("requirement_id = ?", requirementID).Delete(&RequirementOverride{}).Error; err != nil {
				return err
			}
			return tx.Delete(&Requirement{}, "id = ?", requirementID).Error
		},
	)
	if err != nil {
		return fmt.Errorf("error removing requirement: %w", err)
	}
	*reqs = slices.Delete(*reqs, idx, idx+1)
	for _, t := range s.trainings {
		delete(t.Overrides, requirementID)
	}
	return nil
}

func (s *Store) GlobalRequirements() []Requirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.globalReqs)
}

// RequirementsFor returns the position's own requirements followed by
// the global ones
func (s *Store) RequirementsFor(positionID string) []Requirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rv []Requirement
	if p, ok := s.positions[positionID]; ok {
		rv = append(rv, p.Requirements...)
	}
	return append(rv, s.globalReqs...)
}

func (s *Store) TUser(userID string) (TUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return TUser{}, false
	}
	return cloneTUser(u), true
}

// TUsers returns every user, sorted by display name
func (s *Store) TUsers() []TUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv := make([]TUser, 0, len(s.users))
	for _, u := range s.users {
		rv = append(rv, cloneTUser(u))
	}
	slices.SortFunc(
		rv, func(a, b TUser) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())),
				cmp.Compare(a.UserID, b.UserID),
			)
		},
	)
	return rv
}

// EnsureTUser returns the user, creating it (with job pings enabled)
// if it doesn't exist. created reports whether it was created.
func (s *Store) EnsureTUser(ctx context.Context, userID string, name string) (
	user TUser,
	created bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		return cloneTUser(u), false, nil
	}

	u := &TUser{
		UserID: userID,
		Name:   strings.TrimSpace(name),
		Config: TUserConfig{UserID: userID, JobPings: true},
	}
	err = s.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			if e := tx.Create(u).Error; e != nil {
				return e
			}
			return tx.Create(&u.Config).Error
		},
	)
	if err != nil {
		return TUser{}, false, fmt.Errorf("error creating user: %w", err)
	}
	s.users[userID] = u
	s.logger.InfoContext(ctx, "created user", "user_id", userID, "name", u.Name)
	return cloneTUser(u), true, nil
}

func (s *Store) updateTUser(
	ctx context.Context,
	userID string,
	column string,
	value string,
	apply func(u *TUser),
) (TUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return TUser{}, newUserNotFoundError(userID)
	}
	if _, err := s.db.Update(ctx, &TUser{UserID: userID}, column, value); err != nil {
		return TUser{}, fmt.Errorf("error updating user %s: %w", column, err)
	}
	apply(u)
	return cloneTUser(u), nil
}

func (s *Store) SetTUserName(ctx context.Context, userID string, name string) (TUser, error) {
	name = strings.TrimSpace(name)
	return s.updateTUser(ctx, userID, columnName, name, func(u *TUser) { u.Name = name })
}

func (s *Store) SetTUserNotes(ctx context.Context, userID string, notes string) (TUser, error) {
	notes = strings.TrimSpace(notes)
	return s.updateTUser(ctx, userID, columnNotes, notes, func(u *TUser) { u.Notes = notes })
}

// ToggleJobPings flips the user's job ping setting, returning the
// new value
func (s *Store) ToggleJobPings(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, newUserNotFoundError(userID)
	}
	enabled := !u.Config.JobPings
	if _, err := s.db.Update(ctx, &TUserConfig{UserID: userID}, columnJobPings, enabled); err != nil {
		return u.Config.JobPings, fmt.Errorf("error updating job pings: %w", err)
	}
	u.Config.JobPings = enabled
	return enabled, nil
}

func (s *Store) SetImageURL(ctx context.Context, userID string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return newUserNotFoundError(userID)
	}
	url = strings.TrimSpace(url)
	if _, err := s.db.Update(ctx, &TUserConfig{UserID: userID}, columnImageURL, url); err != nil {
		return fmt.Errorf("error updating image url: %w", err)
	}
	u.Config.ImageURL = url
	return nil
}

// SetAvailability sets the same hours for each of the given weekdays.
// Hours are stored as given, so callers convert to the canonical
// timezone first. A start of HourUnavailable clears those days.
func (s *Store) SetAvailability(
	ctx context.Context,
	userID string,
	days []Weekday,
	start Hour,
	end Hour,
) error {
	if len(days) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return newTraineeNotFoundError(userID)
	}

	if start == HourUnavailable {
		if _, err := s.db.Delete(ctx, &Availability{}, "user_id = ? AND weekday IN ?", userID, days); err != nil {
			return fmt.Errorf("error clearing availability: %w", err)
		}
		u.Availability = slices.DeleteFunc(
			u.Availability, func(a Availability) bool { return slices.Contains(days, a.Weekday) },
		)
		return nil
	}

	rows := make([]Availability, 0, len(days))
	for _, d := range days {
		rows = append(rows, Availability{UserID: userID, Weekday: d, StartSlot: start, EndSlot: end})
	}
	if _, err := s.db.Upsert(
		ctx,
		&rows,
		[]string{"user_id", "weekday"},
		[]string{"start_slot", "end_slot"},
	); err != nil {
		return fmt.Errorf("error saving availability: %w", err)
	}

	for _, row := range rows {
		idx := slices.IndexFunc(u.Availability, func(a Availability) bool { return a.Weekday == row.Weekday })
		if idx >= 0 {
			u.Availability[idx].StartSlot = row.StartSlot
			u.Availability[idx].EndSlot = row.EndSlot
			continue
		}
		u.Availability = append(u.Availability, row)
	}
	slices.SortFunc(u.Availability, func(a, b Availability) int { return cmp.Compare(a.Weekday, b.Weekday) })
	return nil
}

// AddQualification qualifies a user to train a position. Only one
// qualification may exist per user and position.
func (s *Store) AddQualification(
	ctx context.Context,
	userID string,
	positionID string,
	level TrainingLevel,
) (Qualification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Qualification{}, newUserNotFoundError(userID)
	}
	p, ok := s.positions[positionID]
	if !ok {
		return Qualification{}, newPositionNotFoundError(positionID)
	}
	if _, exists := u.Qualification(positionID); exists {
		return Qualification{}, newQualificationExistsError(p.Name)
	}
	if !level.Valid() {
		return Qualification{}, fmt.Errorf("invalid training level: %d", level)
	}

	q := Qualification{
		ModelStringID: ModelStringID{ID: newID()},
		UserID:        userID,
		PositionID:    positionID,
		Level:         level,
	}
	if _, err := s.db.Create(ctx, &q); err != nil {
		return Qualification{}, fmt.Errorf("error creating qualification: %w", err)
	}
	u.Qualifications = append(u.Qualifications, q)
	return q, nil
}

func (s *Store) ModifyQualification(
	ctx context.Context,
	userID string,
	qualificationID string,
	level TrainingLevel,
) error {
	if !level.Valid() {
		return fmt.Errorf("invalid training level: %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return newTrainerNotFoundError(userID)
	}
	idx := slices.IndexFunc(u.Qualifications, func(q Qualification) bool { return q.ID == qualificationID })
	if idx < 0 {
		return newQualificationNotFoundError(qualificationID)
	}
	if _, err := s.db.Update(
		ctx,
		&Qualification{ModelStringID: ModelStringID{ID: qualificationID}},
		columnLevel,
		level,
	); err != nil {
		return fmt.Errorf("error updating qualification: %w", err)
	}
	u.Qualifications[idx].Level = level
	return nil
}

func (s *Store) RemoveQualification(ctx context.Context, userID string, qualificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return newTrainerNotFoundError(userID)
	}
	idx := slices.IndexFunc(u.Qualifications, func(q Qualification) bool { return q.ID == qualificationID })
	if idx < 0 {
		return newQualificationNotFoundError(qualificationID)
	}
	if _, err := s.db.Delete(ctx, &Qualification{}, "id = ?", qualificationID); err != nil {
		return fmt.Errorf("error removing qualification: %w", err)
	}
	u.Qualifications = slices.Delete(u.Qualifications, idx, idx+1)
	return nil
}

// QualifiedPositionIDs returns the IDs of positions the user may train
func (s *Store) QualifiedPositionIDs(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	rv := make([]string, 0, len(u.Qualifications))
	for _, q := range u.Qualifications {
		rv = append(rv, q.PositionID)
	}
	return rv
}

// QualifiedTrainers returns users holding a qualification for the
// position, sorted by display name
func (s *Store) QualifiedTrainers(positionID string) []TUser {
	var rv []TUser
	for _, u := range s.TUsers() {
		if _, ok := u.Qualification(positionID); ok {
			rv = append(rv, u)
		}
	}
	return rv
}

// AddTrainings requests training in each position for a user.
// Positions the user already has a training for are skipped, and
// only the new trainings are returned.
func (s *Store) AddTrainings(ctx context.Context, userID string, positionIDs []string) ([]Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, newTraineeNotFoundError(userID)
	}

	held := map[string]bool{}
	for _, t := range s.trainings {
		if t.TraineeID == userID {
			held[t.PositionID] = true
		}
	}

	var created []Training
	for _, pid := range positionIDs {
		if _, ok := s.positions[pid]; !ok {
			return nil, newPositionNotFoundError(pid)
		}
		if held[pid] {
			continue
		}
		held[pid] = true
		created = append(
			created, Training{
				ModelStringID: ModelStringID{ID: newID()},
				TraineeID:     userID,
				PositionID:    pid,
				Overrides:     map[string]RequirementLevel{},
			},
		)
	}
	if len(created) == 0 {
		return nil, nil
	}
	if _, err := s.db.Create(ctx, &created); err != nil {
		return nil, fmt.Errorf("error creating trainings: %w", err)
	}
	for i := range created {
		t := created[i]
		s.trainings[t.ID] = &t
	}
	return created, nil
}

// RemoveTraining deletes a training and its requirement progress
func (s *Store) RemoveTraining(ctx context.Context, trainingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trainings[trainingID]; !ok {
		return newTrainingNotFoundError(trainingID)
	}
	err := s.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			if err := tx.Where("training_id = ?", trainingID).Delete(&RequirementOverride{}).Error; err != nil {
				return err
			}
			return tx.Delete(&Training{}, "id = ?", trainingID).Error
		},
	)
	if err != nil {
		return fmt.Errorf("error removing training: %w", err)
	}
	delete(s.trainings, trainingID)
	return nil
}

func (s *Store) Training(id string) (Training, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trainings[id]
	if !ok {
		return Training{}, false
	}
	return cloneTraining(t), true
}

// Trainings returns trainings matching filter (or all trainings if
// filter is nil), sorted by position name, then trainee.
func (s *Store) Trainings(filter func(Training) bool) []Training {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv := make([]Training, 0, len(s.trainings))
	for _, t := range s.trainings {
		c := cloneTraining(t)
		if filter == nil || filter(c) {
			rv = append(rv, c)
		}
	}
	slices.SortFunc(rv, s.compareTrainingsLocked)
	return rv
}

func (s *Store) compareTrainingsLocked(a, b Training) int {
	nameOf := func(t Training) string {
		if p, ok := s.positions[t.PositionID]; ok {
			return strings.ToLower(p.Name)
		}
		return t.PositionID
	}
	traineeOf := func(t Training) string {
		if u, ok := s.users[t.TraineeID]; ok {
			return strings.ToLower(u.DisplayName())
		}
		return t.TraineeID
	}
	return cmp.Or(
		cmp.Compare(nameOf(a), nameOf(b)),
		cmp.Compare(traineeOf(a), traineeOf(b)),
		cmp.Compare(a.ID, b.ID),
	)
}

func (s *Store) TrainingsFor(traineeID string) []Training {
	return s.Trainings(func(t Training) bool { return t.TraineeID == traineeID })
}

func (s *Store) UnmatchedTrainings() []Training {
	return s.Trainings(func(t Training) bool { return !t.Matched() })
}

// AssignTrainer sets the trainer for a training. When requireUnmatched
// is set, the update only succeeds if no trainer is assigned, checked
// both in memory and in the database, so two trainers claiming the
// same training can't both win.
func (s *Store) AssignTrainer(
	ctx context.Context,
	trainingID string,
	trainerID string,
	requireUnmatched bool,
) (Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trainings[trainingID]
	if !ok {
		return Training{}, newTrainingNotFoundError(trainingID)
	}
	alreadyMatched := func() error {
		name := t.PositionID
		if p, found := s.positions[t.PositionID]; found {
			name = p.Name
		}
		return newTrainingAlreadyMatchedError(t.TraineeID, name)
	}
	if requireUnmatched && t.Matched() {
		return Training{}, alreadyMatched()
	}

	values := map[string]any{columnTrainerUserID: trainerID}
	var rows int64
	var err error
	if requireUnmatched {
		rows, err = s.db.UpdatesWhere(
			ctx,
			&Training{},
			values,
			"id = ? AND (trainer_user_id IS NULL OR trainer_user_id = '')",
			trainingID,
		)
	} else {
		rows, err = s.db.UpdatesWhere(ctx, &Training{}, values, "id = ?", trainingID)
	}
	if err != nil {
		return Training{}, fmt.Errorf("error assigning trainer: %w", err)
	}
	if requireUnmatched && rows == 0 {
		return Training{}, alreadyMatched()
	}

	id := trainerID
	t.TrainerID = &id
	s.logger.InfoContext(
		ctx,
		"assigned trainer",
		"training", t.ID,
		"trainee", t.TraineeID,
		"trainer", trainerID,
	)
	return cloneTraining(t), nil
}

// ClearTrainer returns a training to the unmatched set
func (s *Store) ClearTrainer(ctx context.Context, trainingID string) (Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trainings[trainingID]
	if !ok {
		return Training{}, newTrainingNotFoundError(trainingID)
	}
	if _, err := s.db.UpdatesWhere(
		ctx,
		&Training{},
		map[string]any{columnTrainerUserID: nil},
		"id = ?",
		trainingID,
	); err != nil {
		return Training{}, fmt.Errorf("error clearing trainer: %w", err)
	}
	t.TrainerID = nil
	return cloneTraining(t), nil
}

// SetRequirementOverride records a trainee's progress on a requirement.
// Repeated calls for the same training and requirement overwrite the
// previous level.
func (s *Store) SetRequirementOverride(
	ctx context.Context,
	trainingID string,
	requirementID string,
	level RequirementLevel,
) error {
	if !level.Valid() {
		return fmt.Errorf("invalid requirement level: %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trainings[trainingID]
	if !ok {
		return newTrainingNotFoundError(trainingID)
	}
	if !s.requirementAppliesLocked(t.PositionID, requirementID) {
		return newRequirementNotFoundError(requirementID)
	}

	o := RequirementOverride{
		TrainingID:    trainingID,
		RequirementID: requirementID,
		UserID:        t.TraineeID,
		Level:         level,
	}
	if _, err := s.db.Upsert(
		ctx,
		&o,
		[]string{"training_id", "requirement_id"},
		[]string{"level", "user_id"},
	); err != nil {
		return fmt.Errorf("error saving requirement override: %w", err)
	}
	if t.Overrides == nil {
		t.Overrides = map[string]RequirementLevel{}
	}
	t.Overrides[requirementID] = level
	return nil
}

func (s *Store) requirementAppliesLocked(positionID string, requirementID string) bool {
	match := func(r Requirement) bool { return r.ID == requirementID }
	if slices.ContainsFunc(s.globalReqs, match) {
		return true
	}
	p, ok := s.positions[positionID]
	return ok && slices.ContainsFunc(p.Requirements, match)
}

func (s *Store) SignupLocation() SignupMessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signup
}

// SetSignupLocation records where the signup message lives. Empty
// values mark the channel or message as unset.
func (s *Store) SetSignupLocation(ctx context.Context, channelID string, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := SignupMessageRecord{ID: signupMessageRecordID, ChannelID: channelID, MessageID: messageID}
	if _, err := s.db.Save(ctx, &rec); err != nil {
		return fmt.Errorf("error saving signup message: %w", err)
	}
	s.signup = rec
	return nil
}

// CreateJob saves a completed job posting. A job without an ID is
// given one.
func (s *Store) CreateJob(ctx context.Context, job Job) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[job.PositionID]; !ok {
		return Job{}, newPositionNotFoundError(job.PositionID)
	}
	if job.ID == "" {
		job.ID = newID()
	}
	j := cloneJob(&job)
	if _, err := s.db.Create(ctx, &j); err != nil {
		return Job{}, fmt.Errorf("error creating job: %w", err)
	}
	s.jobs[j.ID] = &j
	return cloneJob(&j), nil
}

// AcceptJob makes userID the job's applicant, if nobody else has
// accepted it yet
func (s *Store) AcceptJob(ctx context.Context, jobID string, userID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return Job{}, newJobNotFoundError(jobID)
	}
	if j.Taken() {
		return Job{}, newJobTakenError()
	}
	rows, err := s.db.UpdatesWhere(
		ctx,
		&Job{},
		map[string]any{columnApplicantID: userID},
		"id = ? AND applicant_id IS NULL",
		jobID,
	)
	if err != nil {
		return Job{}, fmt.Errorf("error accepting job: %w", err)
	}
	if rows == 0 {
		return Job{}, newJobTakenError()
	}
	id := userID
	j.ApplicantID = &id
	return cloneJob(j), nil
}

func (s *Store) Job(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return cloneJob(j), true
}

// Jobs returns every job, soonest first
func (s *Store) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		rv = append(rv, cloneJob(j))
	}
	slices.SortFunc(
		rv, func(a, b Job) int {
			as, _ := a.Window()
			bs, _ := b.Window()
			return cmp.Or(as.Compare(bs), cmp.Compare(a.ID, b.ID))
		},
	)
	return rv
}
