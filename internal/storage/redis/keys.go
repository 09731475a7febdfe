package redis

import (
	"strings"

	"github.com/mcoot/wordsync/internal/canon"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/storage"
)

// memberSeparator joins unit and token in the words set. Canonical tokens
// never contain control characters, so the split is unambiguous.
const memberSeparator = "\x1f"

// Hash field holding the identity; the other scalar fields reuse model.Field names
const fieldPlayerID = "playerId"

// documentKey returns the HASH holding a player's scalar fields
func (s *Storage) documentKey(id model.PlayerID) string {
	return canon.Key(s.cfg.KeyPrefix, storage.Collection, string(id))
}

// wordsKey returns the SET of unit/token members for a player
func (s *Storage) wordsKey(id model.PlayerID) string {
	return canon.Key(s.documentKey(id), "words")
}

// bonusKey returns the SET of bonus tokens for a player
func (s *Storage) bonusKey(id model.PlayerID) string {
	return canon.Key(s.documentKey(id), "bonus")
}

// changesChannel returns the Pub/Sub channel announcing a player's writes
func (s *Storage) changesChannel(id model.PlayerID) string {
	return canon.Key(s.cfg.KeyPrefix, "changes", string(id))
}

func wordMember(unit, token string) string {
	return unit + memberSeparator + token
}

func splitWordMember(member string) (unit, token string, ok bool) {
	return strings.Cut(member, memberSeparator)
}
