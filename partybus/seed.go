package partybus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is a set of positions and requirements to load into an empty,
// or partially populated, database.
//
//	global_requirements:
//	  - Read the handbook
//	positions:
//	  - name: Bartender
//	    trainer_role_id: "1234"
//	    requirements:
//	      - Pour a pint
type Seed struct {
	GlobalRequirements []string       `yaml:"global_requirements"`
	Positions          []SeedPosition `yaml:"positions"`
}

type SeedPosition struct {
	Name          string   `yaml:"name"`
	TrainerRoleID string   `yaml:"trainer_role_id"`
	TraineeRoleID string   `yaml:"trainee_role_id"`
	Requirements  []string `yaml:"requirements"`
}

// SeedResult counts what ApplySeed created and skipped
type SeedResult struct {
	PositionsCreated    int
	PositionsSkipped    int
	RequirementsCreated int
	RequirementsSkipped int
}

// LoadSeed decodes and checks a YAML seed file
func LoadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return seed, fmt.Errorf("error decoding seed: %w", err)
	}

	var errs []error
	for i, pos := range seed.Positions {
		if strings.TrimSpace(pos.Name) == "" {
			errs = append(errs, fmt.Errorf("positions[%d]: name is required", i))
		}
		for _, role := range []string{pos.TrainerRoleID, pos.TraineeRoleID} {
			if role == "" {
				continue
			}
			if _, err := strconv.ParseUint(role, 10, 64); err != nil {
				errs = append(errs, fmt.Errorf("positions[%d]: invalid role id %q", i, role))
			}
		}
	}
	return seed, errors.Join(errs...)
}

// ApplySeed creates the seed's positions and requirements. Positions
// that already exist by name are skipped along with their roles, but
// missing requirements are still added to them. Requirements are
// matched by description, ignoring case.
func ApplySeed(ctx context.Context, store *Store, seed Seed) (SeedResult, error) {
	var result SeedResult

	created, skipped, err := seedRequirements(ctx, store, GlobalPositionID, store.GlobalRequirements(), seed.GlobalRequirements)
	result.RequirementsCreated += created
	result.RequirementsSkipped += skipped
	if err != nil {
		return result, err
	}

	for _, sp := range seed.Positions {
		pos, exists := store.PositionByName(sp.Name)
		if exists {
			result.PositionsSkipped++
		} else {
			pos, err = store.AddPosition(ctx, sp.Name)
			if err != nil {
				return result, err
			}
			result.PositionsCreated++

			var trainerRole, traineeRole *string
			if sp.TrainerRoleID != "" {
				trainerRole = &sp.TrainerRoleID
			}
			if sp.TraineeRoleID != "" {
				traineeRole = &sp.TraineeRoleID
			}
			if pos, err = store.SetPositionRoles(ctx, pos.ID, trainerRole, traineeRole); err != nil {
				return result, err
			}
		}

		created, skipped, err = seedRequirements(ctx, store, pos.ID, pos.Requirements, sp.Requirements)
		result.RequirementsCreated += created
		result.RequirementsSkipped += skipped
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func seedRequirements(
	ctx context.Context,
	store *Store,
	positionID string,
	existing []Requirement,
	descriptions []string,
) (created int, skipped int, err error) {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[strings.ToLower(r.Description)] = true
	}
	for _, desc := range descriptions {
		desc = strings.TrimSpace(desc)
		key := strings.ToLower(desc)
		if desc == "" || seen[key] {
			skipped++
			continue
		}
		if _, err = store.AddRequirement(ctx, positionID, desc); err != nil {
			return created, skipped, err
		}
		seen[key] = true
		created++
	}
	return created, skipped, nil
}
