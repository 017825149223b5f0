package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Profile struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	DisplayName    string
	Phone          pgtype.Text
	Role           string
	RoomNumber     pgtype.Text
	Balance        pgtype.Numeric
	IsApproved     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	MealType    string
	IsAvailable bool
	CreatedBy   pgtype.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	MenuItemID uuid.UUID
	OrderDate  pgtype.Date
	MealType   string
	Quantity   int32
	AmountPaid pgtype.Numeric
	CreatedAt  time.Time
}
