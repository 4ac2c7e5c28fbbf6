package model

import (
	"fmt"
	"strings"
)

const (
	entryKeyPrefix      = "entries/"
	presenceKeyPrefix   = "presence/"
	checkpointKeyPrefix = "checkpoints/"
)

// CanonicalPath normalizes a logical hoard path: slash-separated, rooted
// with a single leading slash, no trailing slash.
func CanonicalPath(pth string) string {
	pth = strings.TrimRight(strings.ReplaceAll(pth, "\\", "/"), "/")
	return "/" + strings.TrimLeft(pth, "/")
}

// StoreKey maps a logical hoard path to a cave store key
func StoreKey(pth string) string {
	return strings.TrimPrefix(CanonicalPath(pth), "/")
}

// PathFromStoreKey maps a cave store key back to a logical hoard path
func PathFromStoreKey(key string) string {
	return CanonicalPath(key)
}

// GetEntryKey yields the catalog key holding the hoard entry for a path
func GetEntryKey(pth string) string {
	return entryKeyPrefix + StoreKey(pth)
}

// GetPresenceKeyPrefix yields the catalog key prefix for all presence
// records of a path
func GetPresenceKeyPrefix(pth string) string {
	return fmt.Sprintf("%s%s\x00", presenceKeyPrefix, StoreKey(pth))
}

// GetPresenceKey yields the catalog key for the presence of a path in a cave
func GetPresenceKey(pth, caveID string) string {
	return GetPresenceKeyPrefix(pth) + caveID
}

// GetCheckpointKey yields the catalog key for a transfer checkpoint
func GetCheckpointKey(caveID, pth string) string {
	return fmt.Sprintf("%s%s\x00%s", checkpointKeyPrefix, caveID, StoreKey(pth))
}

// PresenceKeyComponents are the parsed parts of a presence catalog key
type PresenceKeyComponents struct {
	Path   string
	CaveID string
}

// ParsePresenceKey explodes a presence catalog key into its components
func ParsePresenceKey(key string) (PresenceKeyComponents, error) {
	if !strings.HasPrefix(key, presenceKeyPrefix) {
		return PresenceKeyComponents{}, fmt.Errorf("not a presence key: %q", key)
	}
	rest := strings.TrimPrefix(key, presenceKeyPrefix)
	parts := strings.SplitN(rest, "\x00", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PresenceKeyComponents{}, fmt.Errorf("malformed presence key: %q", key)
	}
	return PresenceKeyComponents{Path: PathFromStoreKey(parts[0]), CaveID: parts[1]}, nil
}

// ParseEntryKey yields the logical path held in an entry catalog key
func ParseEntryKey(key string) (string, error) {
	if !strings.HasPrefix(key, entryKeyPrefix) {
		return "", fmt.Errorf("not an entry key: %q", key)
	}
	return PathFromStoreKey(strings.TrimPrefix(key, entryKeyPrefix)), nil
}
