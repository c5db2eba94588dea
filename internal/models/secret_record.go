package models

import "time"

// SecretRecord is one sealed blob in the SQL-backed secret store. Ciphertext
// holds nonce||AES-GCM output; plaintext never reaches the database.
type SecretRecord struct {
	Key        string    `gorm:"column:record_key;primaryKey;size:191"`
	Ciphertext []byte    `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name independently of gorm's pluralizer.
func (SecretRecord) TableName() string {
	return "secret_records"
}
