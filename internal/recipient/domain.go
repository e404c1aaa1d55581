package recipient

// User is the slice of the application's user row this service reads. The
// table name is configurable, so queries go through db.Table rather than
// this type's default name.
type User struct {
	ID       string  `json:"id" gorm:"primaryKey"`
	FCMToken *string `json:"-" gorm:"column:fcm_token;index"` // Don't expose token in JSON
}
