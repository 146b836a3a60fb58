package jobsculpt

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RemoveDevice deletes the user's devices named deviceName
func (s *Auther) RemoveDevice(ctx context.Context, userID, deviceName string) ([]*Device, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		return nil, goerrors.New("Device name is required", goerrors.CategoryValidation)
	}

	if err := s.repo.Users().RemoveDevice(ctx, id, deviceName); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventDeviceRemoved, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"device": deviceName,
	})

	return s.repo.Users().ListDevices(ctx, id)
}

// ChangeRole switches the user between job seeker and employer
func (s *Auther) ChangeRole(ctx context.Context, userID, role string) (*User, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	parsed, ok := ParseRole(role)
	if !ok || strings.TrimSpace(role) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if err := s.repo.Users().SetRole(ctx, id, parsed); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRoleChanged, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"role": string(parsed),
	})

	return s.repo.Users().GetProfile(ctx, id)
}

// AddSkill adds a skill to the user's profile. The list holds at most
// MaxUserSkills entries, unique by name.
func (s *Auther) AddSkill(ctx context.Context, userID, name, proficiency string) ([]*UserSkill, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, goerrors.New("Skill is required", goerrors.CategoryValidation)
	}

	if _, err := s.repo.Users().AddSkill(ctx, id, name, proficiency); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSkillAdded, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"skill": strings.TrimSpace(name),
	})

	return s.repo.Users().ListSkills(ctx, id)
}

func (s *Auther) RemoveSkill(ctx context.Context, userID, name string) ([]*UserSkill, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Users().RemoveSkill(ctx, id, name); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSkillRemoved, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"skill": strings.TrimSpace(name),
	})

	return s.repo.Users().ListSkills(ctx, id)
}

// AddHiringSkill adds a skill the employer is hiring for
func (s *Auther) AddHiringSkill(ctx context.Context, userID, name string) ([]*HiringSkill, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, goerrors.New("Skill is required", goerrors.CategoryValidation)
	}

	if _, err := s.repo.Users().AddHiringSkill(ctx, id, name); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSkillAdded, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"skill":  strings.TrimSpace(name),
		"hiring": true,
	})

	return s.repo.Users().ListHiringSkills(ctx, id)
}

func (s *Auther) RemoveHiringSkill(ctx context.Context, userID, name string) ([]*HiringSkill, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Users().RemoveHiringSkill(ctx, id, name); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSkillRemoved, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"skill":  strings.TrimSpace(name),
		"hiring": true,
	})

	return s.repo.Users().ListHiringSkills(ctx, id)
}
