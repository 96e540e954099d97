package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	ErrDuplicate = errors.New("record already exists")
	ErrNotFound  = errors.New("record not found")
)

const (
	uniqueViolation = "23505"

	accountColumns = "id, username, discriminator, avatar, status, email, created_at, updated_at"

	messageSelect = `
		SELECT m.id, m.content, m.channel_id, m.recipient_id, m.created_at, m.updated_at,
		       a.id, a.username, a.discriminator, a.avatar, a.status
		FROM messages m
		JOIN accounts a ON a.id = m.sender_id`

	friendRequestSelect = `
		SELECT f.id, f.recipient_id, f.status, f.created_at, f.updated_at,
		       a.id, a.username, a.discriminator, a.avatar, a.status
		FROM friend_requests f
		JOIN accounts a ON a.id = f.sender_id`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func scanAccount(row rowScanner, extra ...any) (User, error) {
	var u User
	dest := append([]any{
		&u.Id,
		&u.Username,
		&u.Discriminator,
		&u.Avatar,
		&u.Status,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	}, extra...)

	err := row.Scan(dest...)
	return u, err
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		msg         Message
		channelId   sql.NullInt64
		recipientId sql.NullInt64
	)

	err := row.Scan(
		&msg.Id,
		&msg.Content,
		&channelId,
		&recipientId,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.Sender.Id,
		&msg.Sender.Username,
		&msg.Sender.Discriminator,
		&msg.Sender.Avatar,
		&msg.Sender.Status,
	)
	if err != nil {
		return Message{}, err
	}

	msg.SenderId = msg.Sender.Id
	msg.ChannelId = int(channelId.Int64)
	msg.RecipientId = int(recipientId.Int64)
	return msg, nil
}

func scanFriendRequest(row rowScanner) (FriendRequest, error) {
	var fr FriendRequest
	err := row.Scan(
		&fr.Id,
		&fr.RecipientId,
		&fr.Status,
		&fr.CreatedAt,
		&fr.UpdatedAt,
		&fr.Sender.Id,
		&fr.Sender.Username,
		&fr.Sender.Discriminator,
		&fr.Sender.Avatar,
		&fr.Sender.Status,
	)
	fr.SenderId = fr.Sender.Id
	return fr, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *PgHarmonyRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, discriminator, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING "+accountColumns,
		params.Username,
		params.Discriminator,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	u, err := scanAccount(row)
	if isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}

	return u, err
}

func (db *PgHarmonyRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		userId,
	)

	u, err := scanAccount(row)
	return u, notFound(err)
}

func (db *PgHarmonyRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+", password_hash FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var hash string
	u, err := scanAccount(row, &hash)
	u.PasswordHash = hash
	return u, notFound(err)
}

func (db *PgHarmonyRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username = $1 ORDER BY id LIMIT 1",
		username,
	)

	u, err := scanAccount(row)
	return u, notFound(err)
}

func (db *PgHarmonyRepository) GetUserGuildMemberships(ctx context.Context, userId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT guild_id FROM guild_members WHERE account_id = $1 ORDER BY guild_id",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("query guild memberships: %w", err)
	}
	defer rows.Close()

	guilds := make([]int, 0)
	for rows.Next() {
		var guildId int
		if err := rows.Scan(&guildId); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		guilds = append(guilds, guildId)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return guilds, nil
}

func (db *PgHarmonyRepository) SetUserPresence(ctx context.Context, userId int, status string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1",
		userId,
		status,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgHarmonyRepository) GetChannel(ctx context.Context, channelId int) (Channel, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, guild_id, name, created_at FROM channels WHERE id = $1 LIMIT 1",
		channelId,
	)

	var ch Channel
	err := row.Scan(&ch.Id, &ch.GuildId, &ch.Name, &ch.CreatedAt)
	return ch, notFound(err)
}

func (db *PgHarmonyRepository) IsGuildMember(ctx context.Context, guildId, userId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM guild_members WHERE guild_id = $1 AND account_id = $2)",
		guildId,
		userId,
	).Scan(&exists)

	return exists, err
}

func nullableId(id int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id > 0}
}

func (db *PgHarmonyRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx, `
		WITH m AS (
			INSERT INTO messages (content, sender_id, channel_id, recipient_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING id, content, sender_id, channel_id, recipient_id, created_at, updated_at
		)
		SELECT m.id, m.content, m.channel_id, m.recipient_id, m.created_at, m.updated_at,
		       a.id, a.username, a.discriminator, a.avatar, a.status
		FROM m
		JOIN accounts a ON a.id = m.sender_id`,
		params.Content,
		params.SenderId,
		nullableId(params.ChannelId),
		nullableId(params.RecipientId),
		time.Now().UTC(),
	)

	return scanMessage(row)
}

func (db *PgHarmonyRepository) GetMessage(ctx context.Context, messageId int) (Message, error) {
	row := db.conn.QueryRowContext(ctx, messageSelect+" WHERE m.id = $1", messageId)

	msg, err := scanMessage(row)
	return msg, notFound(err)
}

func (db *PgHarmonyRepository) DeleteMessage(ctx context.Context, messageId int) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", messageId)
	return err
}

func (db *PgHarmonyRepository) CreateFriendRequest(ctx context.Context, senderId, recipientId int) (FriendRequest, error) {
	row := db.conn.QueryRowContext(ctx, `
		WITH f AS (
			INSERT INTO friend_requests (sender_id, recipient_id, status, created_at, updated_at)
			SELECT $1, $2, 'pending', $3, $3
			WHERE NOT EXISTS (
				SELECT 1 FROM friend_requests
				WHERE sender_id = $1 AND recipient_id = $2 AND status = 'pending'
			) AND NOT EXISTS (
				SELECT 1 FROM friendships WHERE account_id = $1 AND friend_id = $2
			)
			RETURNING id, sender_id, recipient_id, status, created_at, updated_at
		)
		SELECT f.id, f.recipient_id, f.status, f.created_at, f.updated_at,
		       a.id, a.username, a.discriminator, a.avatar, a.status
		FROM f
		JOIN accounts a ON a.id = f.sender_id`,
		senderId,
		recipientId,
		time.Now().UTC(),
	)

	fr, err := scanFriendRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FriendRequest{}, ErrDuplicate
	}

	return fr, err
}

func (db *PgHarmonyRepository) GetFriendRequest(ctx context.Context, requestId int) (FriendRequest, error) {
	row := db.conn.QueryRowContext(ctx, friendRequestSelect+" WHERE f.id = $1", requestId)

	fr, err := scanFriendRequest(row)
	return fr, notFound(err)
}

func (db *PgHarmonyRepository) AcceptFriendRequest(ctx context.Context, requestId int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var senderId, recipientId int
	err = tx.QueryRowContext(ctx,
		"UPDATE friend_requests SET status = 'accepted', updated_at = $2 "+
			"WHERE id = $1 AND status = 'pending' RETURNING sender_id, recipient_id",
		requestId,
		time.Now().UTC(),
	).Scan(&senderId, &recipientId)
	if err != nil {
		err = notFound(err)
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO friendships (account_id, friend_id) VALUES ($1, $2), ($2, $1) "+
			"ON CONFLICT DO NOTHING",
		senderId,
		recipientId,
	)
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (db *PgHarmonyRepository) RejectFriendRequest(ctx context.Context, requestId int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE friend_requests SET status = 'rejected', updated_at = $2 WHERE id = $1 AND status = 'pending'",
		requestId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgHarmonyRepository) RemoveFriend(ctx context.Context, userId, friendId int) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM friendships WHERE (account_id = $1 AND friend_id = $2) OR (account_id = $2 AND friend_id = $1)",
		userId,
		friendId,
	)

	return err
}

func (db *PgHarmonyRepository) UpdateAccount(ctx context.Context, params UpdateAccountParams) (User, error) {
	var avatar sql.NullString
	if params.Avatar != nil {
		avatar = sql.NullString{String: *params.Avatar, Valid: true}
	}

	row := db.conn.QueryRowContext(ctx,
		"UPDATE accounts SET username = COALESCE(NULLIF($2, ''), username), "+
			"avatar = COALESCE($3, avatar), updated_at = $4 WHERE id = $1 RETURNING "+accountColumns,
		params.Id,
		params.Username,
		avatar,
		time.Now().UTC(),
	)

	u, err := scanAccount(row)
	if isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}

	return u, notFound(err)
}

func (db *PgHarmonyRepository) listMessages(ctx context.Context, where string, args ...any) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, messageSelect+" WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

// GetChannelMessages returns a page of the channel's history, newest first.
func (db *PgHarmonyRepository) GetChannelMessages(ctx context.Context, channelId int, page Page) ([]Message, error) {
	page = page.Normalize()
	return db.listMessages(ctx,
		"m.channel_id = $1 AND ($2 = 0 OR m.id < $2) ORDER BY m.id DESC LIMIT $3",
		channelId,
		page.Before,
		page.Limit,
	)
}

// GetDirectMessages returns a page of the conversation between two users,
// newest first.
func (db *PgHarmonyRepository) GetDirectMessages(ctx context.Context, userId, otherId int, page Page) ([]Message, error) {
	page = page.Normalize()
	return db.listMessages(ctx,
		"((m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1)) "+
			"AND ($3 = 0 OR m.id < $3) ORDER BY m.id DESC LIMIT $4",
		userId,
		otherId,
		page.Before,
		page.Limit,
	)
}

func (db *PgHarmonyRepository) GetFriends(ctx context.Context, userId int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT a.id, a.username, a.discriminator, a.avatar, a.status, a.email, a.created_at, a.updated_at "+
			"FROM friendships f JOIN accounts a ON a.id = f.friend_id WHERE f.account_id = $1 ORDER BY a.username",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	friends := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		friends = append(friends, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return friends, nil
}
