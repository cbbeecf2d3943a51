package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mirrorhq/guild-service/internal/domain"
	"github.com/mirrorhq/guild-service/internal/model"
	"github.com/mirrorhq/guild-service/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const statsWindow = 7 * 24 * time.Hour

// Collaborator contracts, declared on the consumer side. The tracker and
// player modules call back into the membership read path through their own
// narrow interfaces; cmd/server closes the loop.

// UserDirectory answers whether a user exists before a membership is created.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// GuildDirectory answers whether a guild exists before its roster is synced.
type GuildDirectory interface {
	Exists(ctx context.Context, guildID string) (bool, error)
}

// AccountLister lists a user's linked tracker accounts.
type AccountLister interface {
	ListAccountsForUser(ctx context.Context, userID string) ([]model.TrackerAccount, error)
}

// PlayerEnsurer idempotently creates the derived player entity.
type PlayerEnsurer interface {
	EnsureExists(ctx context.Context, userID, guildID string) (*model.Player, error)
}

// MemberService owns the membership lifecycle, the bulk sync engine and the
// read side. Every multi-write operation runs inside one GORM transaction;
// the idempotency receipt is written inside the same transaction as the work
// it guards.
type MemberService struct {
	members  repo.MemberStore
	events   repo.IdempotencyStore
	activity repo.ActivityStore
	stats    *repo.StatsCache
	users    UserDirectory
	guilds   GuildDirectory
	accounts AccountLister
	players  PlayerEnsurer
	log      *zap.SugaredLogger
}

func NewMemberService(
	members repo.MemberStore,
	events repo.IdempotencyStore,
	activity repo.ActivityStore,
	stats *repo.StatsCache,
	users UserDirectory,
	guilds GuildDirectory,
	accounts AccountLister,
	players PlayerEnsurer,
	log *zap.SugaredLogger,
) *MemberService {
	return &MemberService{
		members:  members,
		events:   events,
		activity: activity,
		stats:    stats,
		users:    users,
		guilds:   guilds,
		accounts: accounts,
		players:  players,
		log:      log,
	}
}

// CreateMemberInput is the single-member create payload. EventKey is the
// optional idempotency key of the external event that triggered the call.
type CreateMemberInput struct {
	UserID   string
	GuildID  string
	Username string
	Nickname *string
	Roles    []string
	EventKey string
}

// OptionalString distinguishes an absent patch field from an explicit null.
// Set is true when the field appeared in the request at all; a nil Value then
// clears the column.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// UpdateMemberInput is a patch; unset fields are left untouched. Nickname
// uses the set/null distinction so an override can be cleared back to none.
type UpdateMemberInput struct {
	Username *string
	Nickname OptionalString
	Roles    *[]string
}

// SyncMemberInput is one entry of the authoritative external roster snapshot.
type SyncMemberInput struct {
	UserID   string
	Username string
	Nickname *string
	Roles    []string
	JoinedAt *time.Time
}

// MemberPage is a paginated roster slice with the clamped page inputs echoed
// back and the guild-wide total.
type MemberPage struct {
	Members []model.Member `json:"members"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// Create validates the user and guild against the directories, writes the
// membership and its audit row in one transaction, then runs the best-effort
// tracker/player side effects. Side-effect failures are logged and swallowed;
// they never undo the create.
func (s *MemberService) Create(ctx context.Context, in CreateMemberInput) (*model.Member, error) {
	ok, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		s.log.Errorw("user directory lookup failed", "user_id", in.UserID, "err", err)
		return nil, err
	}
	if !ok {
		return nil, domain.NewNotFound("user", in.UserID)
	}
	ok, err = s.guilds.Exists(ctx, in.GuildID)
	if err != nil {
		s.log.Errorw("guild directory lookup failed", "guild_id", in.GuildID, "err", err)
		return nil, err
	}
	if !ok {
		return nil, domain.NewNotFound("guild", in.GuildID)
	}

	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	m := &model.Member{
		UserID:    in.UserID,
		GuildID:   in.GuildID,
		Username:  in.Username,
		Nickname:  in.Nickname,
		Roles:     roles,
		JoinedAt:  now,
		UpdatedAt: now,
	}

	err = s.members.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if in.EventKey != "" {
			inserted, err := s.events.MarkProcessed(ctx, tx, &model.ProcessedEvent{
				EventKey:   in.EventKey,
				EntityType: "member",
				EntityID:   in.UserID,
			})
			if err != nil {
				return err
			}
			if !inserted {
				return domain.ErrAlreadyProcessed
			}
		}
		if err := s.members.Upsert(ctx, tx, m); err != nil {
			return err
		}
		return s.activity.Append(ctx, tx, s.memberActivity("member_added", m, nil))
	})
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		s.log.Infow("duplicate create event ignored", "event_key", in.EventKey,
			"user_id", in.UserID, "guild_id", in.GuildID)
		return s.findExisting(ctx, in.UserID, in.GuildID)
	}
	if err != nil {
		return nil, s.translateWriteErr(ctx, err, in.UserID, in.GuildID)
	}

	s.invalidateStats(ctx, in.GuildID)
	s.afterCreate(ctx, m.UserID, m.GuildID)
	return m, nil
}

// afterCreate runs the post-commit side lookups: if the user has a linked
// account that is active and not deleted, make sure the derived player entity
// exists. Both calls are best-effort by contract.
func (s *MemberService) afterCreate(ctx context.Context, userID, guildID string) {
	accounts, err := s.accounts.ListAccountsForUser(ctx, userID)
	if err != nil {
		s.log.Warnw("tracker account lookup failed", "user_id", userID, "err", err)
		return
	}
	for _, a := range accounts {
		if !a.IsActive || a.IsDeleted {
			continue
		}
		if _, err := s.players.EnsureExists(ctx, userID, guildID); err != nil {
			s.log.Warnw("player ensure failed", "user_id", userID, "guild_id", guildID, "err", err)
		}
		return
	}
}

// FindOne returns the membership or a not-found error.
func (s *MemberService) FindOne(ctx context.Context, userID, guildID string) (*model.Member, error) {
	m, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		s.log.Errorw("member lookup failed", "user_id", userID, "guild_id", guildID, "err", err)
		return nil, err
	}
	if m == nil {
		return nil, domain.NewNotFound("member", userID)
	}
	return m, nil
}

// FindAll lists a guild's roster, newest join first, with clamped pagination.
func (s *MemberService) FindAll(ctx context.Context, guildID string, page, limit int) (*MemberPage, error) {
	members, total, err := s.members.FindByGuild(ctx, guildID, page, limit)
	if err != nil {
		s.log.Errorw("member listing failed", "guild_id", guildID, "err", err)
		return nil, err
	}
	return &MemberPage{
		Members: members,
		Total:   total,
		Page:    repo.ClampPage(page),
		Limit:   repo.ClampLimit(limit, repo.DefaultListLimit),
	}, nil
}

// Update patches username/nickname/roles and bumps UpdatedAt, recording the
// field-level diff in the activity trail.
func (s *MemberService) Update(ctx context.Context, userID, guildID string, in UpdateMemberInput) (*model.Member, error) {
	existing, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewNotFound("member", userID)
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	changes := map[string]interface{}{}
	if in.Username != nil && *in.Username != existing.Username {
		updates["username"] = *in.Username
		changes["username"] = diff(existing.Username, *in.Username)
	}
	if in.Nickname.Set {
		updates["nickname"] = in.Nickname.Value
		changes["nickname"] = diff(existing.Nickname, in.Nickname.Value)
	}
	if in.Roles != nil {
		raw, err := json.Marshal(*in.Roles)
		if err != nil {
			return nil, err
		}
		updates["roles"] = string(raw)
		changes["roles"] = diff(existing.Roles, *in.Roles)
	}

	err = s.members.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.members.UpdateByKey(ctx, tx, userID, guildID, updates); err != nil {
			return err
		}
		return s.activity.Append(ctx, tx, s.memberActivity("member_updated", existing, changes))
	})
	if err != nil {
		s.log.Errorw("member update failed", "user_id", userID, "guild_id", guildID, "err", err)
		return nil, err
	}

	s.invalidateStats(ctx, guildID)
	return s.findExisting(ctx, userID, guildID)
}

// Remove physically deletes the membership; there is no soft-delete state.
func (s *MemberService) Remove(ctx context.Context, userID, guildID string) error {
	existing, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.NewNotFound("member", userID)
	}

	err = s.members.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.members.DeleteByKey(ctx, tx, userID, guildID); err != nil {
			return err
		}
		return s.activity.Append(ctx, tx, s.memberActivity("member_removed", existing, nil))
	})
	if err != nil {
		s.log.Errorw("member remove failed", "user_id", userID, "guild_id", guildID, "err", err)
		return err
	}

	s.invalidateStats(ctx, guildID)
	return nil
}

// SyncGuildMembers replaces the guild's entire roster with the supplied
// snapshot: delete everything, bulk-insert the new list and record the event
// receipt in one transaction. A crash mid-sync rolls back to the prior
// roster; there is no partial-sync state. Returns the number of members in
// the applied snapshot.
func (s *MemberService) SyncGuildMembers(ctx context.Context, guildID string, members []SyncMemberInput, eventKey string) (int, error) {
	ok, err := s.guilds.Exists(ctx, guildID)
	if err != nil {
		s.log.Errorw("guild directory lookup failed", "guild_id", guildID, "err", err)
		return 0, err
	}
	if !ok {
		return 0, domain.NewNotFound("guild", guildID)
	}

	// fast path for replays; the in-transaction mark below is the guarantee
	if eventKey != "" {
		processed, err := s.events.IsProcessed(ctx, eventKey)
		if err != nil {
			return 0, err
		}
		if processed {
			s.log.Infow("sync event already processed", "guild_id", guildID, "event_key", eventKey)
			return len(members), nil
		}
	}

	now := time.Now()
	rows := make([]model.Member, 0, len(members))
	for _, in := range members {
		roles := in.Roles
		if roles == nil {
			roles = []string{}
		}
		joined := now
		if in.JoinedAt != nil {
			joined = *in.JoinedAt
		}
		rows = append(rows, model.Member{
			UserID:    in.UserID,
			GuildID:   guildID,
			Username:  in.Username,
			Nickname:  in.Nickname,
			Roles:     roles,
			JoinedAt:  joined,
			UpdatedAt: now,
		})
	}

	err = s.members.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if eventKey != "" {
			meta, _ := json.Marshal(map[string]interface{}{"member_count": len(rows)})
			inserted, err := s.events.MarkProcessed(ctx, tx, &model.ProcessedEvent{
				EventKey:   eventKey,
				EntityType: "guild",
				EntityID:   guildID,
				Metadata:   string(meta),
			})
			if err != nil {
				return err
			}
			if !inserted {
				return domain.ErrAlreadyProcessed
			}
		}
		removed, err := s.members.DeleteAllForGuild(ctx, tx, guildID)
		if err != nil {
			return err
		}
		if err := s.members.CreateMany(ctx, tx, rows); err != nil {
			return err
		}
		changes, _ := json.Marshal(map[string]interface{}{
			"removed": removed,
			"created": len(rows),
		})
		return s.activity.Append(ctx, tx, &model.ActivityLog{
			EntityType: "guild",
			EntityID:   guildID,
			EventType:  "sync",
			Action:     "guild_members_synced",
			GuildID:    guildID,
			Changes:    string(changes),
		})
	})
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		s.log.Infow("concurrent sync event lost the race, skipped", "guild_id", guildID, "event_key", eventKey)
		return len(members), nil
	}
	if err != nil {
		s.log.Errorw("guild sync failed", "guild_id", guildID, "event_key", eventKey, "err", err)
		return 0, err
	}

	s.invalidateStats(ctx, guildID)
	return len(rows), nil
}

// SearchMembers matches the query against display names within one guild.
func (s *MemberService) SearchMembers(ctx context.Context, guildID, query string, page, limit int) (*MemberPage, error) {
	members, total, err := s.members.SearchByUsername(ctx, guildID, query, page, limit)
	if err != nil {
		s.log.Errorw("member search failed", "guild_id", guildID, "err", err)
		return nil, err
	}
	return &MemberPage{
		Members: members,
		Total:   total,
		Page:    repo.ClampPage(page),
		Limit:   repo.ClampLimit(limit, repo.DefaultSearchLimit),
	}, nil
}

// GetMemberStats computes the three per-guild counts in parallel. One cutoff
// is computed per call and shared by both windowed counts so they never skew
// against each other. Results are cached in Redis for a minute.
func (s *MemberService) GetMemberStats(ctx context.Context, guildID string) (*model.MemberStats, error) {
	if cached, err := s.stats.Get(ctx, guildID); err == nil {
		return cached, nil
	}

	cutoff := time.Now().Add(-statsWindow)
	var stats model.MemberStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.members.CountForGuild(gctx, guildID)
		stats.TotalMembers = n
		return err
	})
	g.Go(func() error {
		n, err := s.members.CountUpdatedSince(gctx, guildID, cutoff)
		stats.ActiveMembers = n
		return err
	})
	g.Go(func() error {
		n, err := s.members.CountJoinedSince(gctx, guildID, cutoff)
		stats.NewThisWeek = n
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Errorw("member stats failed", "guild_id", guildID, "err", err)
		return nil, err
	}

	if err := s.stats.Set(ctx, guildID, &stats); err != nil {
		s.log.Warnw("stats cache write failed", "guild_id", guildID, "err", err)
	}
	return &stats, nil
}

func (s *MemberService) findExisting(ctx context.Context, userID, guildID string) (*model.Member, error) {
	m, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.NewNotFound("member", userID)
	}
	return m, nil
}

// translateWriteErr maps a foreign-key violation from the store onto the
// not-found taxonomy. The directory checks run before the write, so a
// violation means the referenced row vanished mid-request; a fresh lookup
// names which one.
func (s *MemberService) translateWriteErr(ctx context.Context, err error, userID, guildID string) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		if ok, derr := s.guilds.Exists(ctx, guildID); derr == nil && !ok {
			return domain.NewNotFound("guild", guildID)
		}
		return domain.NewNotFound("user", userID)
	}
	s.log.Errorw("member write failed", "user_id", userID, "guild_id", guildID, "err", err)
	return err
}

func (s *MemberService) invalidateStats(ctx context.Context, guildID string) {
	if err := s.stats.Invalidate(ctx, guildID); err != nil {
		s.log.Warnw("stats cache invalidation failed", "guild_id", guildID, "err", err)
	}
}

func (s *MemberService) memberActivity(action string, m *model.Member, changes map[string]interface{}) *model.ActivityLog {
	entry := &model.ActivityLog{
		EntityType: "member",
		EntityID:   m.UserID,
		EventType:  "lifecycle",
		Action:     action,
		UserID:     m.UserID,
		GuildID:    m.GuildID,
	}
	if len(changes) > 0 {
		raw, err := json.Marshal(changes)
		if err == nil {
			entry.Changes = string(raw)
		}
	}
	return entry
}

func diff(before, after interface{}) map[string]interface{} {
	return map[string]interface{}{"old": before, "new": after}
}
