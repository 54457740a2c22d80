package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a row does not exist within the caller's tenant.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// withPragmas enables foreign keys, a busy timeout and immediate write
// transactions on every pooled connection unless the caller already
// supplied DSN options.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        tenant_id INTEGER NOT NULL,
        user_id INTEGER,
        customer_name TEXT,
        customer_email TEXT,
        status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed', 'archived')),
        satisfaction_rating INTEGER CHECK (satisfaction_rating BETWEEN 1 AND 5),
        created_at DATETIME NOT NULL,
        closed_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_conversations_tenant ON conversations (tenant_id, created_at);

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id INTEGER NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        sources_used TEXT, -- JSON array of {content, metadata}
        created_at DATETIME NOT NULL,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);

    CREATE TABLE IF NOT EXISTS documents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        tenant_id INTEGER NOT NULL,
        upload_id TEXT UNIQUE NOT NULL,
        filename TEXT NOT NULL,
        file_type TEXT NOT NULL,
        file_path TEXT NOT NULL,
        chunk_count INTEGER NOT NULL,
        vector_ids TEXT NOT NULL, -- JSON array of chunk ids, in chunk order
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        uploaded_by INTEGER NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id, is_active);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Conversation methods

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.Status == "" {
		conv.Status = StatusActive
	}
	conv.CreatedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO conversations (tenant_id, user_id, customer_name, customer_email, status, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare conversation insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, conv.TenantID, conv.UserID, conv.CustomerName, conv.CustomerEmail, conv.Status, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute conversation insert: %w", err)
	}
	conv.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read conversation id: %w", err)
	}
	return nil
}

const conversationColumns = "id, tenant_id, user_id, customer_name, customer_email, status, satisfaction_rating, created_at, closed_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		conv     Conversation
		userID   sql.NullInt64
		name     sql.NullString
		email    sql.NullString
		rating   sql.NullInt64
		closedAt sql.NullTime
	)
	if err := row.Scan(&conv.ID, &conv.TenantID, &userID, &name, &email, &conv.Status, &rating, &conv.CreatedAt, &closedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		conv.UserID = &userID.Int64
	}
	if name.Valid {
		conv.CustomerName = &name.String
	}
	if email.Valid {
		conv.CustomerEmail = &email.String
	}
	if rating.Valid {
		r := int(rating.Int64)
		conv.SatisfactionRating = &r
	}
	if closedAt.Valid {
		conv.ClosedAt = &closedAt.Time
	}
	return &conv, nil
}

// GetConversation returns ErrNotFound when the conversation does not exist
// or belongs to another tenant.
func (s *SQLiteStore) GetConversation(ctx context.Context, tenantID, id int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = ? AND tenant_id = ?", id, tenantID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, tenantID int64, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE tenant_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convs = append(convs, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return convs, nil
}

// UpdateConversationStatus moves a conversation to status. Closing stamps
// closed_at; it is kept when the conversation is later archived.
func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, tenantID, id int64, status string) error {
	var closedAt any
	if status == StatusClosed {
		closedAt = time.Now().UTC()
	}
	stmt, err := s.db.PrepareContext(ctx, "UPDATE conversations SET status = ?, closed_at = COALESCE(?, closed_at) WHERE id = ? AND tenant_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare conversation status update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, status, closedAt, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to execute conversation status update: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) SetSatisfactionRating(ctx context.Context, tenantID, id int64, rating int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET satisfaction_rating = ? WHERE id = ? AND tenant_id = ?", rating, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update satisfaction rating: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Message methods

// CreateMessage appends msg to its conversation. created_at never goes
// backwards within a conversation, even if the wall clock does.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	var sources sql.NullString
	if msg.SourcesUsed != nil {
		data, err := json.Marshal(msg.SourcesUsed)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sources = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin message insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var last time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT 1", msg.ConversationID).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read last message time: %w", err)
	case !now.After(last):
		now = last.Add(time.Microsecond)
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO messages (conversation_id, role, content, sources_used, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ConversationID, msg.Role, msg.Content, sources, now)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message insert: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// ListMessages returns a conversation's messages in creation order. Messages
// of another tenant's conversation are never returned.
func (s *SQLiteStore) ListMessages(ctx context.Context, tenantID, conversationID int64) ([]Message, error) {
	query := `
        SELECT m.id, m.conversation_id, m.role, m.content, m.sources_used, m.created_at
        FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE m.conversation_id = ? AND c.tenant_id = ?
        ORDER BY m.created_at ASC, m.id ASC
    `
	rows, err := s.db.QueryContext(ctx, query, conversationID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var sources sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.SourcesUsed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources of message %d: %w", msg.ID, err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// Document methods

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	vectorIDs, err := json.Marshal(doc.VectorIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal vector ids: %w", err)
	}
	now := time.Now().UTC()
	doc.IsActive = true
	doc.CreatedAt = now
	doc.UpdatedAt = now

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO documents
        (tenant_id, upload_id, filename, file_type, file_path, chunk_count, vector_ids, is_active, uploaded_by, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, doc.TenantID, doc.UploadID, doc.Filename, doc.FileType, doc.FilePath,
		doc.ChunkCount, string(vectorIDs), doc.IsActive, doc.UploadedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute document insert: %w", err)
	}
	doc.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read document id: %w", err)
	}
	return nil
}

const documentColumns = "id, tenant_id, upload_id, filename, file_type, file_path, chunk_count, vector_ids, is_active, uploaded_by, created_at, updated_at"

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var vectorIDs string
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.UploadID, &doc.Filename, &doc.FileType, &doc.FilePath,
		&doc.ChunkCount, &vectorIDs, &doc.IsActive, &doc.UploadedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vectorIDs), &doc.VectorIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector ids of document %d: %w", doc.ID, err)
	}
	return &doc, nil
}

// GetDocument returns active and inactive documents of the tenant.
func (s *SQLiteStore) GetDocument(ctx context.Context, tenantID, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ? AND tenant_id = ?", id, tenantID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the tenant's active documents, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, tenantID int64) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE tenant_id = ? AND is_active = TRUE ORDER BY created_at DESC, id DESC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// DeactivateDocument soft-deletes an active document. Already inactive or
// foreign documents yield ErrNotFound.
func (s *SQLiteStore) DeactivateDocument(ctx context.Context, tenantID, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET is_active = FALSE, updated_at = ? WHERE id = ? AND tenant_id = ? AND is_active = TRUE",
		time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}
	return requireAffected(res)
}

// Analytics methods

func (s *SQLiteStore) DashboardStats(ctx context.Context, tenantID int64) (*DashboardStats, error) {
	var (
		stats     DashboardStats
		active    sql.NullInt64
		closed    sql.NullInt64
		avgRating sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END),
               AVG(satisfaction_rating)
        FROM conversations WHERE tenant_id = ?`, tenantID).Scan(&stats.TotalConversations, &active, &closed, &avgRating)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	stats.ActiveConversations = int(active.Int64)
	stats.ClosedConversations = int(closed.Int64)
	if avgRating.Valid {
		r := round2(avgRating.Float64)
		stats.AvgSatisfactionRating = &r
	}

	err = s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE c.tenant_id = ?`, tenantID).Scan(&stats.TotalMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	if stats.TotalConversations > 0 {
		stats.AvgMessagesPerConv = round2(float64(stats.TotalMessages) / float64(stats.TotalConversations))
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE tenant_id = ? AND is_active = TRUE", tenantID).Scan(&stats.TotalDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	return &stats, nil
}

func (s *SQLiteStore) ConversationStats(ctx context.Context, tenantID, id int64) (*ConversationStats, error) {
	conv, err := s.GetConversation(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	stats := &ConversationStats{
		ConversationID:     conv.ID,
		SatisfactionRating: conv.SatisfactionRating,
		Status:             conv.Status,
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conv.ID).Scan(&stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversation messages: %w", err)
	}
	if conv.ClosedAt != nil {
		minutes := round2(conv.ClosedAt.Sub(conv.CreatedAt).Minutes())
		stats.DurationMinutes = &minutes
	}
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NotFound maps ErrNotFound onto a domain error and leaves other errors alone.
func NotFound(err error, domainErr error) error {
	if errors.Is(err, ErrNotFound) {
		return domainErr
	}
	return err
}
