package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"warden/apperr"
	"warden/events"
	"warden/models"
)

// JailService implements the jail state machine. For each (guild, user) the
// states are free, jailing, jailed and unjailing; the database commit of the
// JailRecord is the commit point, and Discord-side role mutations before it
// are compensated on partial failure.
type JailService interface {
	Jail(ctx context.Context, guildID, targetID, moderatorID int64, reason string) (*JailResult, error)
	Unjail(ctx context.Context, guildID, targetID, moderatorID int64) (*UnjailResult, error)
	GetConfig(ctx context.Context, guildID int64) (*models.JailConfig, error)
	// ConfigureJail persists the jail infrastructure created by the setup
	// routine. Re-running setup requires the prior configuration to be
	// disabled first.
	ConfigureJail(ctx context.Context, guildID, channelID, roleID int64) error
	DisableJail(ctx context.Context, guildID int64) error
	ActiveRecords(ctx context.Context, guildID int64) ([]*models.JailRecord, error)
}

// JailResult reports a completed jailing
type JailResult struct {
	Record        *models.JailRecord
	RemovedRoles  []int64
	JailChannelID int64
}

// UnjailResult reports a completed release. Unrestored lists roles the bot
// could not give back; the record is closed regardless.
type UnjailResult struct {
	Record     *models.JailRecord
	Restored   []int64
	Unrestored []int64
}

type jailService struct {
	uowFactory UnitOfWorkFactory
	roles      RoleManager
	bus        *events.Bus
	now        func() time.Time
}

// NewJailService creates a new jail service
func NewJailService(uowFactory UnitOfWorkFactory, roles RoleManager, bus *events.Bus) JailService {
	return &jailService{
		uowFactory: uowFactory,
		roles:      roles,
		bus:        bus,
		now:        time.Now,
	}
}

// Jail snapshots the target's roles, swaps them for the jail role and commits
// an active JailRecord carrying the snapshot.
func (s *jailService) Jail(ctx context.Context, guildID, targetID, moderatorID int64, reason string) (*JailResult, error) {
	// Guard phase: configuration and existing-record checks
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	config, err := uow.LogConfigRepository().GetJailConfig(ctx)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if config == nil || !config.Enabled {
		uow.Rollback()
		return nil, apperr.New(apperr.KindNotFound, "jail is not set up in this server; run the setup first")
	}
	existing, err := uow.JailRepository().GetActive(ctx, targetID)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if existing != nil {
		uow.Rollback()
		return nil, apperr.New(apperr.KindConflict, "that member is already jailed")
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	// Snapshot current roles, excluding the guild default role and the jail
	// role itself
	roleIDs, err := s.roles.MemberRoles(ctx, guildID, targetID)
	if err != nil {
		return nil, err
	}
	snapshot := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id == guildID || id == config.RoleID {
			continue
		}
		snapshot = append(snapshot, id)
	}

	// Strip the snapshotted roles, tracking what actually came off so a
	// failure can be compensated
	var removed []int64
	for _, id := range snapshot {
		if err := s.roles.RemoveRole(ctx, guildID, targetID, id); err != nil {
			s.compensate(ctx, guildID, targetID, removed, 0)
			return nil, apperr.Wrap(apperr.KindOf(err), err, "failed to remove role %d while jailing", id)
		}
		removed = append(removed, id)
	}

	if err := s.roles.AddRole(ctx, guildID, targetID, config.RoleID); err != nil {
		s.compensate(ctx, guildID, targetID, removed, 0)
		return nil, apperr.Wrap(apperr.KindOf(err), err, "failed to assign the jail role")
	}

	// Commit point
	record := &models.JailRecord{
		GuildID:     guildID,
		UserID:      targetID,
		ModeratorID: moderatorID,
		Reason:      reason,
		RoleIDs:     snapshot,
		JailedAt:    s.now(),
	}
	uow = s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		s.compensate(ctx, guildID, targetID, removed, config.RoleID)
		return nil, err
	}
	if err := uow.JailRepository().Create(ctx, record); err != nil {
		uow.Rollback()
		s.compensate(ctx, guildID, targetID, removed, config.RoleID)
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		s.compensate(ctx, guildID, targetID, removed, config.RoleID)
		return nil, err
	}

	s.emitModeration(ctx, guildID, moderatorID, targetID, "jail", reason)
	return &JailResult{
		Record:        record,
		RemovedRoles:  removed,
		JailChannelID: config.ChannelID,
	}, nil
}

// compensate re-adds roles removed during a failed jailing and strips the
// jail role when it was already assigned. Failures here leave the member in
// a state only an operator can fix, so they log at the highest level short
// of exiting.
func (s *jailService) compensate(ctx context.Context, guildID, targetID int64, removed []int64, jailRoleID int64) {
	for _, id := range removed {
		if err := s.roles.AddRole(ctx, guildID, targetID, id); err != nil {
			log.WithFields(log.Fields{
				"guildID":  guildID,
				"targetID": targetID,
				"roleID":   id,
				"error":    err,
			}).Error("CRITICAL: could not restore role after failed jailing")
		}
	}
	if jailRoleID != 0 {
		if err := s.roles.RemoveRole(ctx, guildID, targetID, jailRoleID); err != nil {
			log.WithFields(log.Fields{
				"guildID":  guildID,
				"targetID": targetID,
				"roleID":   jailRoleID,
				"error":    err,
			}).Error("CRITICAL: could not remove jail role after failed jailing")
		}
	}
}

// Unjail removes the jail role, restores the snapshot and closes the record.
// Individual role-restore failures are logged and reported, never fatal: the
// record is closed either way.
func (s *jailService) Unjail(ctx context.Context, guildID, targetID, moderatorID int64) (*UnjailResult, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	config, err := uow.LogConfigRepository().GetJailConfig(ctx)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	record, err := uow.JailRepository().GetActive(ctx, targetID)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if record == nil {
		uow.Rollback()
		return nil, apperr.New(apperr.KindNotFound, "that member is not jailed")
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if config != nil && config.RoleID != 0 {
		if err := s.roles.RemoveRole(ctx, guildID, targetID, config.RoleID); err != nil {
			log.WithFields(log.Fields{
				"guildID":  guildID,
				"targetID": targetID,
				"error":    err,
			}).Warn("Could not remove jail role during release")
		}
	}

	result := &UnjailResult{Record: record}
	for _, id := range record.RoleIDs {
		if err := s.roles.AddRole(ctx, guildID, targetID, id); err != nil {
			log.WithFields(log.Fields{
				"guildID":  guildID,
				"targetID": targetID,
				"roleID":   id,
				"error":    err,
			}).Warn("Could not restore role during release")
			result.Unrestored = append(result.Unrestored, id)
			continue
		}
		result.Restored = append(result.Restored, id)
	}

	releasedAt := s.now()
	uow = s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	if err := uow.JailRepository().Close(ctx, record.ID, releasedAt); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	record.Active = false
	record.ReleasedAt = &releasedAt

	s.emitModeration(ctx, guildID, moderatorID, targetID, "unjail", "")
	return result, nil
}

func (s *jailService) GetConfig(ctx context.Context, guildID int64) (*models.JailConfig, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	config, err := uow.LogConfigRepository().GetJailConfig(ctx)
	if err != nil {
		return nil, err
	}
	return config, uow.Commit()
}

func (s *jailService) ConfigureJail(ctx context.Context, guildID, channelID, roleID int64) error {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	existing, err := uow.LogConfigRepository().GetJailConfig(ctx)
	if err != nil {
		return err
	}
	if existing != nil && existing.Enabled {
		return apperr.New(apperr.KindConflict, "jail is already set up; disable it before running setup again")
	}

	config := &models.JailConfig{
		GuildID:   guildID,
		ChannelID: channelID,
		RoleID:    roleID,
		Enabled:   true,
	}
	if err := uow.LogConfigRepository().UpsertJailConfig(ctx, config); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *jailService) DisableJail(ctx context.Context, guildID int64) error {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	config, err := uow.LogConfigRepository().GetJailConfig(ctx)
	if err != nil {
		return err
	}
	if config == nil || !config.Enabled {
		return apperr.New(apperr.KindNotFound, "jail is not set up")
	}
	config.Enabled = false
	if err := uow.LogConfigRepository().UpsertJailConfig(ctx, config); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *jailService) ActiveRecords(ctx context.Context, guildID int64) ([]*models.JailRecord, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	records, err := uow.JailRepository().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return records, uow.Commit()
}

func (s *jailService) emitModeration(ctx context.Context, guildID, moderatorID, targetID int64, action, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ctx, events.ModerationActionEvent{
		GuildID:     guildID,
		ModeratorID: moderatorID,
		TargetID:    targetID,
		Action:      action,
		Reason:      reason,
		Timestamp:   s.now(),
	})
}
