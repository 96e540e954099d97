package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultChannelName = "general"

	guildSelect = `
		SELECT g.id, g.name, g.description, g.owner_id,
		       (SELECT COUNT(*) FROM guild_members gm WHERE gm.guild_id = g.id),
		       g.created_at, g.updated_at
		FROM guilds g`

	channelColumns = "id, guild_id, name, created_at"

	inviteColumns = "id, code, guild_id, inviter_id, uses, max_uses, expires_at, created_at"
)

func scanGuild(row rowScanner) (Guild, error) {
	var g Guild
	err := row.Scan(
		&g.Id,
		&g.Name,
		&g.Description,
		&g.OwnerId,
		&g.MemberCount,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

func scanChannel(row rowScanner) (Channel, error) {
	var ch Channel
	err := row.Scan(&ch.Id, &ch.GuildId, &ch.Name, &ch.CreatedAt)
	return ch, err
}

func scanInvite(row rowScanner) (Invite, error) {
	var (
		inv       Invite
		expiresAt sql.NullTime
	)

	err := row.Scan(
		&inv.Id,
		&inv.Code,
		&inv.GuildId,
		&inv.InviterId,
		&inv.Uses,
		&inv.MaxUses,
		&expiresAt,
		&inv.CreatedAt,
	)
	if expiresAt.Valid {
		inv.ExpiresAt = expiresAt.Time
	}
	return inv, err
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (db *PgHarmonyRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	return tx.Commit()
}

// CreateGuild inserts the guild, makes the owner its first member and opens
// a default text channel.
func (db *PgHarmonyRepository) CreateGuild(ctx context.Context, params CreateGuildParams) (Guild, error) {
	var guildId int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if err := tx.QueryRowContext(ctx,
			"INSERT INTO guilds (name, description, owner_id, created_at, updated_at) "+
				"VALUES ($1, $2, $3, $4, $4) RETURNING id",
			params.Name,
			params.Description,
			params.OwnerId,
			now,
		).Scan(&guildId); err != nil {
			return fmt.Errorf("insert guild: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO guild_members (guild_id, account_id, joined_at) VALUES ($1, $2, $3)",
			guildId,
			params.OwnerId,
			now,
		); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO channels (guild_id, name, created_at) VALUES ($1, $2, $3)",
			guildId,
			defaultChannelName,
			now,
		); err != nil {
			return fmt.Errorf("insert default channel: %w", err)
		}

		return nil
	})
	if err != nil {
		return Guild{}, err
	}

	return db.GetGuild(ctx, guildId)
}

func (db *PgHarmonyRepository) GetGuild(ctx context.Context, guildId int) (Guild, error) {
	row := db.conn.QueryRowContext(ctx, guildSelect+" WHERE g.id = $1", guildId)

	g, err := scanGuild(row)
	return g, notFound(err)
}

func (db *PgHarmonyRepository) GetUserGuilds(ctx context.Context, userId int) ([]Guild, error) {
	rows, err := db.conn.QueryContext(ctx,
		guildSelect+" JOIN guild_members m ON m.guild_id = g.id WHERE m.account_id = $1 ORDER BY g.id",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("query guilds: %w", err)
	}
	defer rows.Close()

	guilds := make([]Guild, 0)
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		guilds = append(guilds, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return guilds, nil
}

func (db *PgHarmonyRepository) UpdateGuild(ctx context.Context, params UpdateGuildParams) (Guild, error) {
	var description sql.NullString
	if params.Description != nil {
		description = sql.NullString{String: *params.Description, Valid: true}
	}

	res, err := db.conn.ExecContext(ctx,
		"UPDATE guilds SET name = COALESCE(NULLIF($2, ''), name), "+
			"description = COALESCE($3, description), updated_at = $4 WHERE id = $1",
		params.Id,
		params.Name,
		description,
		time.Now().UTC(),
	)
	if err != nil {
		return Guild{}, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Guild{}, ErrNotFound
	}

	return db.GetGuild(ctx, params.Id)
}

// DeleteGuild removes the guild; channels, members, messages and invites
// go with it through ON DELETE CASCADE.
func (db *PgHarmonyRepository) DeleteGuild(ctx context.Context, guildId int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM guilds WHERE id = $1", guildId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgHarmonyRepository) AddGuildMember(ctx context.Context, guildId, userId int) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO guild_members (guild_id, account_id, joined_at) VALUES ($1, $2, $3)",
		guildId,
		userId,
		time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}

	return err
}

func (db *PgHarmonyRepository) RemoveGuildMember(ctx context.Context, guildId, userId int) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM guild_members WHERE guild_id = $1 AND account_id = $2",
		guildId,
		userId,
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgHarmonyRepository) CreateChannel(ctx context.Context, guildId int, name string) (Channel, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO channels (guild_id, name, created_at) VALUES ($1, $2, $3) RETURNING "+channelColumns,
		guildId,
		name,
		time.Now().UTC(),
	)

	return scanChannel(row)
}

func (db *PgHarmonyRepository) GetGuildChannels(ctx context.Context, guildId int) ([]Channel, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE guild_id = $1 ORDER BY id",
		guildId,
	)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		channels = append(channels, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return channels, nil
}

func (db *PgHarmonyRepository) UpdateChannel(ctx context.Context, params UpdateChannelParams) (Channel, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE channels SET name = $2 WHERE id = $1 RETURNING "+channelColumns,
		params.Id,
		params.Name,
	)

	ch, err := scanChannel(row)
	return ch, notFound(err)
}

func (db *PgHarmonyRepository) DeleteChannel(ctx context.Context, channelId int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM channels WHERE id = $1", channelId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgHarmonyRepository) CreateInvite(ctx context.Context, params CreateInviteParams) (Invite, error) {
	var expiresAt sql.NullTime
	if !params.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: params.ExpiresAt.UTC(), Valid: true}
	}

	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO invites (code, guild_id, inviter_id, max_uses, expires_at, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+inviteColumns,
		params.Code,
		params.GuildId,
		params.InviterId,
		params.MaxUses,
		expiresAt,
		time.Now().UTC(),
	)

	inv, err := scanInvite(row)
	if isUniqueViolation(err) {
		return Invite{}, ErrDuplicate
	}

	return inv, err
}

func (db *PgHarmonyRepository) GetInvite(ctx context.Context, code string) (Invite, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE code = $1 LIMIT 1",
		code,
	)

	inv, err := scanInvite(row)
	return inv, notFound(err)
}

// UseInvite adds userId to the invite's guild and counts the use. The use
// counter is re-checked under the row lock so concurrent accepts cannot
// exceed MaxUses.
func (db *PgHarmonyRepository) UseInvite(ctx context.Context, inviteId, userId int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var guildId int
		err := tx.QueryRowContext(ctx,
			"UPDATE invites SET uses = uses + 1 WHERE id = $1 AND (max_uses = 0 OR uses < max_uses) "+
				"AND (expires_at IS NULL OR expires_at > $2) RETURNING guild_id",
			inviteId,
			time.Now().UTC(),
		).Scan(&guildId)
		if err != nil {
			return notFound(err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO guild_members (guild_id, account_id, joined_at) VALUES ($1, $2, $3)",
			guildId,
			userId,
			time.Now().UTC(),
		)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}

		return err
	})
}

func (db *PgHarmonyRepository) DeleteInvite(ctx context.Context, inviteId int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM invites WHERE id = $1", inviteId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}
