package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bancho-go/bancho/pkg/privileges"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

var _ Store = (*Postgres)(nil)

// Connect dials the database, retrying until the context's deadline so
// the server survives the database coming up after it.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10

	var pool *pgxpool.Pool
	for {
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err = pgxpool.NewWithConfig(dialCtx, cfg)
		if err == nil {
			err = pool.Ping(dialCtx)
			if err == nil {
				cancel()
				break
			}
			pool.Close()
		}
		cancel()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect after retries: %w", err)
		case <-time.After(time.Second):
		}
	}

	return &Postgres{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) UserBySafeName(ctx context.Context, safeName string) (*User, error) {
	q := p.sb.Select("id", "name", "safe_name", "pw_bcrypt", "priv", "country", "silence_end").
		From("users").
		Where(sq.Eq{"safe_name": safeName})
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var u User
	var priv int32
	err = p.pool.QueryRow(ctx, sql, args...).Scan(
		&u.ID, &u.Name, &u.SafeName, &u.PasswordHash, &priv, &u.Country, &u.SilenceEnd,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	u.Privileges = privileges.Privileges(priv)
	return &u, nil
}

func (p *Postgres) TouchActivity(ctx context.Context, userID int32) error {
	q := p.sb.Update("users").
		Set("latest_activity", time.Now().Unix()).
		Where(sq.Eq{"id": userID})
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) SetPrivileges(ctx context.Context, userID int32, priv privileges.Privileges) error {
	q := p.sb.Update("users").
		Set("priv", int32(priv)).
		Where(sq.Eq{"id": userID})
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) Record(ctx context.Context, userID int32, h ClientHashes) error {
	q := p.sb.Insert("client_hashes").
		Columns("userid", "osupath", "adapters", "uninstall_id", "disk_serial", "latest_time").
		Values(userID, h.OsuPathMD5, h.AdaptersMD5, h.UninstallMD5, h.DiskSerialMD5, time.Now().Unix()).
		Suffix("ON CONFLICT (userid, osupath, adapters, uninstall_id, disk_serial) DO UPDATE SET latest_time = EXCLUDED.latest_time")
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) MatchingAccounts(ctx context.Context, excludeUserID int32, h ClientHashes) ([]int32, error) {
	// Wine clients report constant adapter/serial hashes, so only the
	// uninstall id is discriminating there.
	or := sq.Or{}
	if h.UninstallMD5 != "" {
		or = append(or, sq.Eq{"uninstall_id": h.UninstallMD5})
	}
	if !h.RunningUnderWine {
		if h.AdaptersMD5 != "" {
			or = append(or, sq.Eq{"adapters": h.AdaptersMD5})
		}
		if h.DiskSerialMD5 != "" {
			or = append(or, sq.Eq{"disk_serial": h.DiskSerialMD5})
		}
	}
	if len(or) == 0 {
		return nil, nil
	}

	q := p.sb.Select("DISTINCT userid").
		From("client_hashes").
		Where(sq.And{sq.NotEq{"userid": excludeUserID}, or})
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("match hashes: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) BannedAmong(ctx context.Context, ids []int32) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	q := p.sb.Select("1").
		From("users").
		Where(sq.Eq{"id": ids, "priv": 0}).
		Limit(1)
	sql, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = p.pool.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check banned hashes: %w", err)
	}
	return true, nil
}

func (p *Postgres) Friends(ctx context.Context, userID int32) ([]int32, error) {
	q := p.sb.Select("friend_id").
		From("friendships").
		Where(sq.Eq{"user_id": userID})
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch friends: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) AddFriend(ctx context.Context, userID, friendID int32) error {
	q := p.sb.Insert("friendships").
		Columns("user_id", "friend_id").
		Values(userID, friendID).
		Suffix("ON CONFLICT DO NOTHING")
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

func (p *Postgres) RemoveFriend(ctx context.Context, userID, friendID int32) error {
	q := p.sb.Delete("friendships").
		Where(sq.Eq{"user_id": userID, "friend_id": friendID})
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

func (p *Postgres) Unread(ctx context.Context, userID int32) ([]Mail, error) {
	q := p.sb.Select("m.from_id", "u.name", "t.name", "m.msg", "m.time").
		From("mail m").
		Join("users u ON u.id = m.from_id").
		Join("users t ON t.id = m.to_id").
		Where(sq.Eq{"m.to_id": userID, "m.read": false}).
		OrderBy("m.time ASC")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch mail: %w", err)
	}
	defer rows.Close()

	var out []Mail
	for rows.Next() {
		var m Mail
		if err := rows.Scan(&m.SenderID, &m.SenderName, &m.TargetName, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkRead(ctx context.Context, userID int32) error {
	q := p.sb.Update("mail").
		Set("read", true).
		Where(sq.Eq{"to_id": userID, "read": false})
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) Send(ctx context.Context, m Mail) error {
	q := p.sb.Insert("mail").
		Columns("from_id", "to_id", "msg", "time", "read").
		Values(m.SenderID, sq.Expr("(SELECT id FROM users WHERE safe_name = ?)", m.TargetName), m.Body, m.SentAt, false)
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) BeatmapByMD5(ctx context.Context, md5 string) (*BeatmapInfo, error) {
	q := p.sb.Select("id", "md5", "filename").
		From("maps").
		Where(sq.Eq{"md5": md5})
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var b BeatmapInfo
	err = p.pool.QueryRow(ctx, sql, args...).Scan(&b.ID, &b.MD5, &b.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch map: %w", err)
	}
	return &b, nil
}
