package secret

import "time"

// entryFolder is the vault/folder that holds this app's entries in
// provider backends that group items.
const entryFolder = "ConnVault"

// probeInterval bounds how often an availability probe may spawn a
// provider process; throttled checks reuse the last result.
const probeInterval = 2 * time.Second

// entryName is the collision-resistant entry title for a connection.
// Provider search is fuzzy, so adapters filter results back to this
// exact name.
func entryName(connectionID string) string {
	return "ConnVault: " + connectionID
}

// entryURI tags an entry with an exact-match URI so lookups can
// distinguish the true owner of a connection identifier.
func entryURI(connectionID string) string {
	return "connvault://" + connectionID
}
