package model

import "time"

// EconomyUpdateReason identifies what changed a player's economy
type EconomyUpdateReason string

const (
	EconomyUpdateGrant    EconomyUpdateReason = "grant"
	EconomyUpdatePurchase EconomyUpdateReason = "purchase"
)

// EconomyUpdate is published after a ledger change has been committed
type EconomyUpdate struct {
	PlayerID  PlayerID
	Reason    EconomyUpdateReason
	Snapshot  EconomySnapshot
	Timestamp time.Time
}
