package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const profileColumns = `id, email, hashed_password, display_name, phone, role, room_number, balance, is_approved, created_at, updated_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.HashedPassword,
		&p.DisplayName,
		&p.Phone,
		&p.Role,
		&p.RoomNumber,
		&p.Balance,
		&p.IsApproved,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const createProfile = `
INSERT INTO profiles (email, hashed_password, display_name, phone)
VALUES ($1, $2, $3, $4)
RETURNING ` + profileColumns

type CreateProfileParams struct {
	Email          string
	HashedPassword string
	DisplayName    string
	Phone          pgtype.Text
}

// CreateProfile registers a new account. Role defaults to tenant and
// is_approved to false; an admin has to approve it off the waitlist.
func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	row := q.db.QueryRow(ctx, createProfile, arg.Email, arg.HashedPassword, arg.DisplayName, arg.Phone)
	return scanProfile(row)
}

const getProfileByEmail = `
SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	row := q.db.QueryRow(ctx, getProfileByEmail, email)
	return scanProfile(row)
}

const getProfileByID = `
SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

func (q *Queries) GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := q.db.QueryRow(ctx, getProfileByID, id)
	return scanProfile(row)
}

const updateProfileSelf = `
UPDATE profiles
SET display_name = $2, phone = $3, updated_at = now()
WHERE id = $1
RETURNING ` + profileColumns

type UpdateProfileSelfParams struct {
	ID          uuid.UUID
	DisplayName string
	Phone       pgtype.Text
}

// UpdateProfileSelf covers the fields a member may edit on their own
// profile. Role, room, and balance stay admin/accountant territory.
func (q *Queries) UpdateProfileSelf(ctx context.Context, arg UpdateProfileSelfParams) (Profile, error) {
	row := q.db.QueryRow(ctx, updateProfileSelf, arg.ID, arg.DisplayName, arg.Phone)
	return scanProfile(row)
}

const listMembers = `
SELECT ` + profileColumns + ` FROM profiles
WHERE is_approved = true
ORDER BY display_name`

func (q *Queries) ListMembers(ctx context.Context) ([]Profile, error) {
	rows, err := q.db.Query(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const listWaitlist = `
SELECT ` + profileColumns + ` FROM profiles
WHERE is_approved = false
ORDER BY created_at`

func (q *Queries) ListWaitlist(ctx context.Context) ([]Profile, error) {
	rows, err := q.db.Query(ctx, listWaitlist)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const approveProfile = `
UPDATE profiles
SET is_approved = true, room_number = $2, balance = $3, updated_at = now()
WHERE id = $1 AND is_approved = false
RETURNING ` + profileColumns

type ApproveProfileParams struct {
	ID         uuid.UUID
	RoomNumber pgtype.Text
	Balance    pgtype.Numeric
}

func (q *Queries) ApproveProfile(ctx context.Context, arg ApproveProfileParams) (Profile, error) {
	row := q.db.QueryRow(ctx, approveProfile, arg.ID, arg.RoomNumber, arg.Balance)
	return scanProfile(row)
}

const updateMember = `
UPDATE profiles
SET role = $2, room_number = $3, balance = $4, updated_at = now()
WHERE id = $1 AND is_approved = true
RETURNING ` + profileColumns

type UpdateMemberParams struct {
	ID         uuid.UUID
	Role       string
	RoomNumber pgtype.Text
	Balance    pgtype.Numeric
}

func (q *Queries) UpdateMember(ctx context.Context, arg UpdateMemberParams) (Profile, error) {
	row := q.db.QueryRow(ctx, updateMember, arg.ID, arg.Role, arg.RoomNumber, arg.Balance)
	return scanProfile(row)
}

const deleteProfile = `
DELETE FROM profiles WHERE id = $1 RETURNING id`

func (q *Queries) DeleteProfile(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteProfile, id).Scan(&deleted)
	return deleted, err
}

const debitBalance = `
UPDATE profiles
SET balance = balance - $2, updated_at = now()
WHERE id = $1 AND balance >= $2
RETURNING ` + profileColumns

type DebitBalanceParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

// DebitBalance decrements atomically and only when the funds cover the
// amount; pgx.ErrNoRows therefore means insufficient balance. This is the
// guard against concurrent double-submission spending the same money twice.
func (q *Queries) DebitBalance(ctx context.Context, arg DebitBalanceParams) (Profile, error) {
	row := q.db.QueryRow(ctx, debitBalance, arg.ID, arg.Amount)
	return scanProfile(row)
}

const creditBalance = `
UPDATE profiles
SET balance = balance + $2, updated_at = now()
WHERE id = $1
RETURNING ` + profileColumns

type CreditBalanceParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

func (q *Queries) CreditBalance(ctx context.Context, arg CreditBalanceParams) (Profile, error) {
	row := q.db.QueryRow(ctx, creditBalance, arg.ID, arg.Amount)
	return scanProfile(row)
}
