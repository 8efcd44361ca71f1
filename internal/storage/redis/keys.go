package redis

import (
	"fmt"

	"github.com/mcoot/playerhub/internal/model"
)

// Key prefix for all playerhub data
const keyPrefix = "playerhub"

// accountKey returns the Redis key for an Account
func accountKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// providerIndexKey returns the Redis key for the provider identity -> player_id index
func providerIndexKey(kind model.ProviderKind, subject string) string {
	return fmt.Sprintf("%s:idx:provider:%s:%s", keyPrefix, kind, subject)
}

// sessionKey returns the Redis key for a Session
func sessionKey(tokenHash string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, tokenHash)
}

// playerDataKey returns the Redis key for the HASH of a player's data
func playerDataKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:data:%s", keyPrefix, id)
}
