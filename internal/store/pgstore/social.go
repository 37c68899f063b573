package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store"
)

// Activities

func (s *Storage) AppendActivity(ctx context.Context, a *models.Activity) error {
	meta := "{}"
	if a.Metadata != nil {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	a.ID = newID(a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO activities (id, project_id, user_id, action, entity_type, entity_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	`, a.ID, a.ProjectID, a.UserID, a.Action, a.EntityType, a.EntityID, a.Description, meta, a.CreatedAt)
	return err
}

func (s *Storage) ListActivities(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	limit = store.NormalizeLimit(limit)
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, user_id, action, entity_type, entity_id, description, metadata, created_at
		FROM activities
		WHERE project_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Activity, 0, limit)
	for rows.Next() {
		var (
			a    models.Activity
			meta []byte
		)
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.UserID, &a.Action, &a.EntityType, &a.EntityID,
			&a.Description, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalInto(meta, &a.Metadata, "metadata"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteActivitiesByProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM activities WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Posts

const postColumns = `id, author, content, tags, likes, comments, COALESCE(shared_from, ''), shares, created_at, updated_at`

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		p                     models.Post
		tags, likes, comments []byte
	)
	if err := row.Scan(&p.ID, &p.Author, &p.Content, &tags, &likes, &comments, &p.SharedFrom, &p.Shares,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalInto(tags, &p.Tags, "tags"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(likes, &p.Likes, "likes"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(comments, &p.Comments, "comments"); err != nil {
		return nil, err
	}
	return &p, nil
}

func marshalPost(p *models.Post) (tags, likes, comments string, err error) {
	if tags, err = jsonArg(p.Tags); err != nil {
		return
	}
	if likes, err = jsonArg(p.Likes); err != nil {
		return
	}
	comments, err = jsonArg(p.Comments)
	return
}

func (s *Storage) CreatePost(ctx context.Context, post *models.Post) error {
	tags, likes, comments, err := marshalPost(post)
	if err != nil {
		return err
	}
	post.ID = newID(post.ID)
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO posts (id, author, content, tags, likes, comments, shared_from, shares, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, $7, $8, $9, $10)
	`, post.ID, post.Author, post.Content, tags, likes, comments, nullable(post.SharedFrom), post.Shares,
		post.CreatedAt, post.UpdatedAt)
	return err
}

func (s *Storage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM posts WHERE id = $1`, postColumns), id)
	p, err := scanPost(row)
	if err != nil {
		return nil, notFound(err, errors.ErrPostNotFound)
	}
	return p, nil
}

func (s *Storage) UpdatePost(ctx context.Context, post *models.Post) error {
	tags, likes, comments, err := marshalPost(post)
	if err != nil {
		return err
	}
	post.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET content = $2, tags = $3::jsonb, likes = $4::jsonb, comments = $5::jsonb,
			shares = $6, updated_at = $7
		WHERE id = $1
	`, post.ID, post.Content, tags, likes, comments, post.Shares, post.UpdatedAt)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrPostNotFound)
}

func (s *Storage) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrPostNotFound)
}

func (s *Storage) ListPosts(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	limit = store.NormalizeLimit(limit)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE ($1 = '' OR author = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, postColumns), authorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Chats

const chatColumns = `id, COALESCE(name, ''), is_group, participants, COALESCE(admin, ''), last_message_at, created_at`

func scanChat(row rowScanner) (*models.Chat, error) {
	var (
		c            models.Chat
		participants []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.IsGroup, &participants, &c.Admin, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalInto(participants, &c.Participants, "participants"); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Storage) CreateChat(ctx context.Context, chat *models.Chat) error {
	participants, err := jsonArg(chat.Participants)
	if err != nil {
		return err
	}
	chat.ID = newID(chat.ID)
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chats (id, name, is_group, participants, admin, last_message_at, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
	`, chat.ID, nullable(chat.Name), chat.IsGroup, participants, nullable(chat.Admin), chat.LastMessageAt, chat.CreatedAt)
	return err
}

func (s *Storage) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM chats WHERE id = $1`, chatColumns), id)
	c, err := scanChat(row)
	if err != nil {
		return nil, notFound(err, errors.ErrChatNotFound)
	}
	return c, nil
}

func (s *Storage) UpdateChat(ctx context.Context, chat *models.Chat) error {
	participants, err := jsonArg(chat.Participants)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE chats SET name = $2, participants = $3::jsonb, admin = $4, last_message_at = $5
		WHERE id = $1
	`, chat.ID, nullable(chat.Name), participants, nullable(chat.Admin), chat.LastMessageAt)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrChatNotFound)
}

func (s *Storage) ListChats(ctx context.Context, participantID string) ([]models.Chat, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM chats
		WHERE participants @> jsonb_build_array($1::text)
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, chatColumns), participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateMessage stores the message and bumps the chat's last_message_at in
// one transaction.
func (s *Storage) CreateMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	msg.ID = newID(msg.ID)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tag, err := tx.Exec(ctx, `UPDATE chats SET last_message_at = $2 WHERE id = $1`, msg.Chat, msg.CreatedAt)
	if err != nil {
		return err
	}
	if err := affected(tag, errors.ErrChatNotFound); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.Chat, msg.Sender, msg.Content, msg.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListMessages returns the latest limit messages in chronological order.
func (s *Storage) ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	limit = store.NormalizeLimit(limit)
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, sender, content, created_at FROM (
			SELECT id, chat_id, sender, content, created_at, seq
			FROM messages
			WHERE chat_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) latest
		ORDER BY seq ASC
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Chat, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
