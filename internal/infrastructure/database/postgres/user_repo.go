package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// UserRepository implements the UserRepository interface for PostgreSQL
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	DisplayName  string         `db:"name"` // database column is 'name'
	AvatarURL    sql.NullString `db:"avatar_url"`
	Timezone     sql.NullString `db:"timezone"`
	PasswordHash sql.NullString `db:"password_hash"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLoginAt  sql.NullTime   `db:"last_login_at"`
}

// toEntity converts a userRow to a domain entity
func (r *userRow) toEntity() *entities.User {
	user := &entities.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        entities.Role(r.Role),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.AvatarURL.Valid {
		user.AvatarURL = &r.AvatarURL.String
	}

	if r.Timezone.Valid {
		user.Timezone = &r.Timezone.String
	}

	if r.PasswordHash.Valid {
		user.PasswordHash = &r.PasswordHash.String
	}

	if r.LastLoginAt.Valid {
		user.LastLoginAt = &r.LastLoginAt.Time
	}

	return user
}

// userRowFromEntity converts a domain entity to a userRow
func userRowFromEntity(user *entities.User) *userRow {
	row := &userRow{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}

	if user.AvatarURL != nil {
		row.AvatarURL = sql.NullString{String: *user.AvatarURL, Valid: true}
	}

	if user.Timezone != nil {
		row.Timezone = sql.NullString{String: *user.Timezone, Valid: true}
	}

	if user.PasswordHash != nil {
		row.PasswordHash = sql.NullString{String: *user.PasswordHash, Valid: true}
	}

	if user.LastLoginAt != nil {
		row.LastLoginAt = sql.NullTime{Time: *user.LastLoginAt, Valid: true}
	}

	return row
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), err)
	}()

	if user.ID == "" {
		user.ID = idgen.GenerateID()
	}

	r.log.Debug("creating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", string(user.Role)))

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Note: Password should already be hashed by the caller

	row := userRowFromEntity(user)

	query := `INSERT INTO users (
			id, email, name, password_hash, role,
			is_active, created_at, updated_at, last_login_at, avatar_url, timezone
		) VALUES (
			:id, :email, :name, :password_hash, :role,
			:is_active, :created_at, :updated_at, :last_login_at, :avatar_url, :timezone
		)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err) {
			err = repositories.ErrDuplicateEmail
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), err)
	}()

	var row userRow
	query := `
		SELECT id, email, name, password_hash, role,
		       is_active, created_at, updated_at, last_login_at, avatar_url, timezone
		FROM users
		WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return row.toEntity(), nil
}

// GetByEmail retrieves a user by their email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "get_by_email", time.Since(start), err)
	}()

	var row userRow
	query := `
		SELECT id, email, name, password_hash, role,
		       is_active, created_at, updated_at, last_login_at, avatar_url, timezone
		FROM users
		WHERE email = $1`

	err = r.db.GetContext(ctx, &row, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return row.toEntity(), nil
}

// Update an existing user
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "update", time.Since(start), err)
	}()

	r.log.Debug("updating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email))

	user.UpdatedAt = time.Now()

	row := userRowFromEntity(user)

	query := `
		UPDATE users SET
			email = :email,
			name = :name,
			avatar_url = :avatar_url,
			timezone = :timezone,
			password_hash = :password_hash,
			role = :role,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err) {
			err = repositories.ErrDuplicateEmail
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// Delete a user (soft delete by setting is_active = false)
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "delete", time.Since(start), err)
	}()

	query := `UPDATE users SET is_active = false, updated_at = $1 WHERE id = $2`

	_, err = r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	// Delete is idempotent, a missing user is not an error
	return nil
}

// List users with pagination and optional filtering
func (r *UserRepository) List(ctx context.Context, opts repositories.ListUsersOptions) ([]*entities.User, int64, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "list", time.Since(start), err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", paramIndex))
		args = append(args, string(*opts.Role))
		paramIndex++
	}

	if opts.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", paramIndex))
		args = append(args, *opts.IsActive)
		paramIndex++
	}

	if opts.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", paramIndex, paramIndex+1))
		searchPattern := "%" + opts.Search + "%"
		args = append(args, searchPattern, searchPattern)
		paramIndex += 2
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM users " + whereClause
	var total int64
	err = r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, email, name, password_hash, role,
		       is_active, created_at, updated_at, last_login_at, avatar_url, timezone
		FROM users
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, paramIndex, paramIndex+1)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)

	var rows []userRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*entities.User, len(rows))
	for i, row := range rows {
		users[i] = row.toEntity()
	}

	return users, total, nil
}

// UpdateLastLogin updates the user's last login timestamp
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "update_last_login", time.Since(start), err)
	}()

	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, loginTime, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// ExistsByEmail checks if a user exists by email
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "exists_by_email", time.Since(start), err)
	}()

	var count int
	query := `SELECT COUNT(*) FROM users WHERE email = $1`

	err = r.db.GetContext(ctx, &count, query, email)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by email: %w", err)
	}

	return count > 0, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
