package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/shared"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository and applies pending migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas are applied to every pooled connection, so foreign keys hold everywhere.
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreFailure, err)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// users

const userColumns = `id, nombre, email, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var email sql.NullString
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Name, &email, &createdAt); err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = &email.String
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return &user, nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "user", ID: userID}
	}
	if err != nil {
		return nil, storeErr("scan user row", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "user", ID: email}
	}
	if err != nil {
		return nil, storeErr("scan user row", err)
	}
	return user, nil
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	var email interface{}
	if user.Email != nil {
		email = *user.Email
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, nombre, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, email, user.CreatedAt.UnixNano(),
	)
	if shared.IsSQLiteUniqueError(err) {
		return fmt.Errorf("insert user: %w", domain.ErrConflict)
	}
	if err != nil {
		return storeErr("insert user", err)
	}
	return nil
}

// UpdateUserName replaces the display name of a user.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, userID, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET nombre = ? WHERE id = ?`, name, userID)
	if err != nil {
		return storeErr("update user name", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("get rows affected", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "user", ID: userID}
	}
	return nil
}

// ---------------------------------------------------------------------------
// chats

const chatColumns = `id, user_id, nombre_chat, fecha_creacion, contexto`

func scanChat(row interface{ Scan(...any) error }) (*domain.Chat, error) {
	var chat domain.Chat
	var contexto sql.NullString
	var createdAt int64
	if err := row.Scan(&chat.ID, &chat.UserID, &chat.Name, &createdAt, &contexto); err != nil {
		return nil, err
	}
	if contexto.Valid {
		chat.Context = &contexto.String
	}
	chat.CreatedAt = time.Unix(0, createdAt).UTC()
	return &chat, nil
}

// CreateChat inserts a new chat for an existing user.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *domain.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now().UTC()
	}

	var contexto interface{}
	if chat.Context != nil {
		contexto = *chat.Context
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, nombre_chat, fecha_creacion, contexto) VALUES (?, ?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Name, chat.CreatedAt.UnixNano(), contexto,
	)
	if shared.IsSQLiteForeignKeyError(err) {
		return &domain.NotFoundError{Entity: "user", ID: chat.UserID}
	}
	if err != nil {
		return storeErr("insert chat", err)
	}
	return nil
}

// GetChat retrieves a chat by ID.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, chatID)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "chat", ID: chatID}
	}
	if err != nil {
		return nil, storeErr("scan chat row", err)
	}
	return chat, nil
}

// ListChatsByUser returns every chat owned by userID, newest first.
func (s *SQLiteStore) ListChatsByUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE user_id = ? ORDER BY fecha_creacion DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, storeErr("query chats", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat rows", "error", closeErr)
		}
	}()

	chats := make([]*domain.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, storeErr("scan chat row", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate chats", err)
	}
	return chats, nil
}

// RenameChat sets a new name on an existing chat.
func (s *SQLiteStore) RenameChat(ctx context.Context, chatID, name string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE chats SET nombre_chat = ? WHERE id = ? RETURNING `+chatColumns,
		name, chatID,
	)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "chat", ID: chatID}
	}
	if err != nil {
		return nil, storeErr("rename chat", err)
	}
	return chat, nil
}

// DeleteChat removes the chat's messages and then the chat in one transaction.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin delete chat", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back delete chat", "chat_id", chatID, "error", rbErr)
		}
	}()

	msgRes, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return storeErr("delete chat messages", err)
	}
	chatRes, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return storeErr("delete chat", err)
	}
	rows, err := chatRes.RowsAffected()
	if err != nil {
		return storeErr("get rows affected", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "chat", ID: chatID}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit delete chat", err)
	}

	msgRows, _ := msgRes.RowsAffected()
	slog.Debug("Chat deleted", "chat_id", chatID, "messages_deleted", msgRows)
	return nil
}

// ---------------------------------------------------------------------------
// messages

// AppendMessage stores a message. The send time never goes backwards within a
// chat: it is the later of the current time and the chat's newest message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if !msg.Sender.Valid() {
		return &domain.ValidationError{Field: "sender", Reason: "debe ser user o assistant"}
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, chat_id, contenido, sender, fecha_envio)
		VALUES (?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(fecha_envio) FROM messages WHERE chat_id = ?), 0)))
		RETURNING seq, fecha_envio`,
		msg.ID, msg.ChatID, msg.Content, string(msg.Sender), s.now().UnixNano(), msg.ChatID,
	)

	var sentAt int64
	err := row.Scan(&msg.Seq, &sentAt)
	if shared.IsSQLiteForeignKeyError(err) {
		return &domain.NotFoundError{Entity: "chat", ID: msg.ChatID}
	}
	if err != nil {
		return storeErr("insert message", err)
	}
	msg.SentAt = time.Unix(0, sentAt).UTC()
	return nil
}

// ListMessages returns up to limit messages of a chat in ascending send order.
// A non-positive limit returns every message.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, limit int, window domain.ReadWindow) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	const cols = `seq, id, chat_id, contenido, sender, fecha_envio`
	query := `SELECT ` + cols + ` FROM messages WHERE chat_id = ? ORDER BY fecha_envio ASC, seq ASC LIMIT ?`
	if window == domain.WindowNewest {
		query = `SELECT ` + cols + ` FROM (
			SELECT ` + cols + ` FROM messages WHERE chat_id = ? ORDER BY fecha_envio DESC, seq DESC LIMIT ?
		) ORDER BY fecha_envio ASC, seq ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, storeErr("query messages", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var sender string
		var sentAt int64
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ChatID, &msg.Content, &sender, &sentAt); err != nil {
			return nil, storeErr("scan message row", err)
		}
		msg.Sender = domain.Sender(sender)
		msg.SentAt = time.Unix(0, sentAt).UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate messages", err)
	}
	return messages, nil
}

var _ Repository = (*SQLiteStore)(nil)
