package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Secrets are encrypted with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (reads and writes return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Upsert inserts a credential or replaces the one with the same ID. A new
// UUID is generated when cred.ID is empty.
func (r *CredentialRepo) Upsert(ctx context.Context, cred model.Credential) (string, error) {
	encrypted, err := r.encrypt(cred.Secret)
	if err != nil {
		return "", err
	}

	id := cred.ID
	if id == "" {
		id = uuid.NewString()
	}
	publishedAt := cred.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	const query = `
		INSERT INTO credentials (id, service, account_id, secret, published_at, is_visible, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			service = excluded.service,
			account_id = excluded.account_id,
			secret = excluded.secret,
			published_at = excluded.published_at,
			is_visible = excluded.is_visible,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		id, cred.Service, cred.AccountID, encrypted,
		formatTime(publishedAt), boolToInt(cred.Visible),
	)
	if err != nil {
		return "", fmt.Errorf("upsert credential %q: %w", id, err)
	}
	return id, nil
}

// Get retrieves a credential by ID with its secret decrypted.
func (r *CredentialRepo) Get(ctx context.Context, id string) (model.Credential, error) {
	if r.key == nil {
		return model.Credential{}, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT id, service, account_id, secret, published_at, is_visible FROM credentials WHERE id = ?`
	cred, err := r.scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, fmt.Errorf("get credential %q: %w", id, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("get credential %q: %w", id, err)
	}
	return cred, nil
}

// List returns all stored credentials ordered by publication time, oldest first.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT id, service, account_id, secret, published_at, is_visible FROM credentials ORDER BY published_at, rowid`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Delete hard-deletes the credential with the given ID.
func (r *CredentialRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM credentials WHERE id = ?`
	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete credential %q: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete credential %q: %w", id, driven.ErrCredentialNotFound)
	}
	return nil
}

func (r *CredentialRepo) scanCredential(s scanner) (model.Credential, error) {
	var cred model.Credential
	var encrypted, publishedAt string
	var visible int

	if err := s.Scan(&cred.ID, &cred.Service, &cred.AccountID, &encrypted, &publishedAt, &visible); err != nil {
		return model.Credential{}, err
	}

	secret, err := r.decrypt(encrypted)
	if err != nil {
		return model.Credential{}, fmt.Errorf("decrypt credential %q: %w", cred.ID, err)
	}
	cred.Secret = secret

	cred.PublishedAt, err = parseTime(publishedAt)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse published_at for credential %q: %w", cred.ID, err)
	}
	cred.Visible = visible != 0

	return cred, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
