package domain

import "time"

// Client is an API caller provisioned out-of-band (gatewayctl). The secret
// is stored only as an Argon2id hash; the active flag is the single mutable
// field the service touches.
type Client struct {
	ID         string
	Name       string
	SecretHash string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
