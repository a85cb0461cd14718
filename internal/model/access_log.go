package model

import "time"

// AccessLog holds the recent failed login attempts for an (email, ip) pair
type AccessLog struct {
	Email     string      `json:"email" bson:"email"`
	IPAddress string      `json:"ip" bson:"ip"`
	Attempts  []time.Time `json:"attempts" bson:"attempts"`
}

// ErasedIPAddress replaces the ip on access logs scrubbed for GDPR
const ErasedIPAddress = "0.0.0.0"
