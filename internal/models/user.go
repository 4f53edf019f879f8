package models

// MaxFieldLength bounds every string column of the users table.
const MaxFieldLength = 50

// User represents a row of the users table. The handle is serialized as "user",
// matching the column name.
type User struct {
	ID             int64  `json:"id"`
	Handle         string `json:"user"`
	Password       string `json:"password"` // stored as submitted
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

// UserCreate carries the validated fields of a new user.
type UserCreate struct {
	Handle         string
	Password       string
	FullName       string
	ProfilePicture string
}

// UserUpdate carries the fields replaced by an update. The handle is immutable.
type UserUpdate struct {
	Password       string
	FullName       string
	ProfilePicture string
}
