package service

import (
	"context"

	"warden/apperr"
	"warden/models"
)

// GuildService upserts observed guilds, users and memberships and manages
// the per-guild audit log configuration.
type GuildService interface {
	SyncGuild(ctx context.Context, guild *models.Guild) error
	SyncUser(ctx context.Context, user *models.User) error
	SyncMember(ctx context.Context, member *models.GuildMember) error

	GetLogConfig(ctx context.Context, guildID int64) (*models.LogConfig, error)
	SetLogChannel(ctx context.Context, guildID, channelID int64) (*models.LogConfig, error)
	SetLogEnabled(ctx context.Context, guildID int64, enabled bool) (*models.LogConfig, error)
	SetLogCategory(ctx context.Context, guildID int64, category models.LogCategory, enabled bool) (*models.LogConfig, error)
}

type guildService struct {
	uowFactory UnitOfWorkFactory
}

// NewGuildService creates a new guild service
func NewGuildService(uowFactory UnitOfWorkFactory) GuildService {
	return &guildService{uowFactory: uowFactory}
}

func (s *guildService) SyncGuild(ctx context.Context, guild *models.Guild) error {
	uow := s.uowFactory.Create(guild.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.GuildRepository().Upsert(ctx, guild); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *guildService) SyncUser(ctx context.Context, user *models.User) error {
	uow := s.uowFactory.Create(0)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().Upsert(ctx, user); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *guildService) SyncMember(ctx context.Context, member *models.GuildMember) error {
	uow := s.uowFactory.Create(member.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.GuildRepository().UpsertMember(ctx, member); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *guildService) GetLogConfig(ctx context.Context, guildID int64) (*models.LogConfig, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	config, err := uow.LogConfigRepository().GetLogConfig(ctx)
	if err != nil {
		return nil, err
	}
	return config, uow.Commit()
}

// mutateLogConfig loads or lazily creates the config, applies the mutation
// and writes it back in one session
func (s *guildService) mutateLogConfig(ctx context.Context, guildID int64, mutate func(*models.LogConfig) error) (*models.LogConfig, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	config, err := uow.LogConfigRepository().GetLogConfig(ctx)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &models.LogConfig{
			GuildID:    guildID,
			Categories: map[models.LogCategory]bool{},
		}
	}
	if config.Categories == nil {
		config.Categories = map[models.LogCategory]bool{}
	}
	if err := mutate(config); err != nil {
		return nil, err
	}
	if err := uow.LogConfigRepository().UpsertLogConfig(ctx, config); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return config, nil
}

func (s *guildService) SetLogChannel(ctx context.Context, guildID, channelID int64) (*models.LogConfig, error) {
	return s.mutateLogConfig(ctx, guildID, func(config *models.LogConfig) error {
		config.ChannelID = channelID
		config.Enabled = true
		return nil
	})
}

func (s *guildService) SetLogEnabled(ctx context.Context, guildID int64, enabled bool) (*models.LogConfig, error) {
	return s.mutateLogConfig(ctx, guildID, func(config *models.LogConfig) error {
		if enabled && config.ChannelID == 0 {
			return apperr.New(apperr.KindBadArgument, "set a log channel before enabling logging")
		}
		config.Enabled = enabled
		return nil
	})
}

func (s *guildService) SetLogCategory(ctx context.Context, guildID int64, category models.LogCategory, enabled bool) (*models.LogConfig, error) {
	valid := false
	for _, known := range models.AllLogCategories {
		if known == category {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperr.New(apperr.KindBadArgument, "unknown log category %q", category)
	}
	return s.mutateLogConfig(ctx, guildID, func(config *models.LogConfig) error {
		config.Categories[category] = enabled
		return nil
	})
}
