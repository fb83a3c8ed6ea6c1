package domain

import "time"

type Mentor struct {
	Username   string
	SecretHash string
	CreatedAt  time.Time
}
