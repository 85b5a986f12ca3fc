package models

// UserRole distinguishes administrative accounts from field workers.
type UserRole string

const (
	RoleAdmin  UserRole = "Admin"
	RoleWorker UserRole = "Worker"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}

// User is a staff account. Admins manage every entity; workers see only the
// leads they created or were assigned.
type User struct {
	BaseModel

	Name     string   `gorm:"not null" json:"name"`
	Username string   `gorm:"uniqueIndex;not null" json:"username"`
	Email    string   `gorm:"uniqueIndex;not null" json:"email"`
	Password string   `gorm:"not null" json:"-"`
	Role     UserRole `gorm:"not null;default:Worker" json:"role"`
}
