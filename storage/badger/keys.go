package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "doc:"
	sessionPrefix      = "sess:"
	sessionUserPrefix  = "sessu:"
	turnPrefix         = "turn:"
	turnIDSeq          = "turnseq"
	eventPrefix        = "anev:"
	eventIDSeq         = "anevseq"
	errorLogPrefix     = "errlog:"
	errorLogIDSeq      = "errlogseq"
	notificationPrefix = "notif:"
	notificationIDSeq  = "notifseq"
	feedbackPrefix     = "fdbk:"
	feedbackIDSeq      = "fdbkseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + id)
}

// makeSessionKey generates a key for a session by ID.
func makeSessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// makeSessionUserPrefix generates the prefix of a user's session index.
// Format: prefix:userID:
func makeSessionUserPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", sessionUserPrefix, userID))
}

// makeSessionUserKey generates a composite key for the per-user session index.
// Format: prefix:userID:updatedAt:sessionID
func makeSessionUserKey(userID string, updatedAt time.Time, sessionID string) []byte {
	return appendTime(makeSessionUserPrefix(userID), updatedAt, []byte(sessionID))
}

// makeTurnPrefix generates the prefix shared by all turns of a session.
// Format: prefix:sessionID:
func makeTurnPrefix(sessionID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", turnPrefix, sessionID))
}

// makeTurnKey generates a composite key ordering turns by time within a session.
// Format: prefix:sessionID:timestamp:id
func makeTurnKey(sessionID string, timestamp time.Time, id core.ID) []byte {
	return appendTime(makeTurnPrefix(sessionID), timestamp, idBytes(id))
}

// makeTimeKey generates a time ordered key for log-like records.
// Format: prefix:timestamp:id
func makeTimeKey(prefix string, timestamp time.Time, id core.ID) []byte {
	return appendTime([]byte(prefix), timestamp, idBytes(id))
}

// makePartialTimeKey generates a partial key for time range scans.
// Format: prefix:timestamp
func makePartialTimeKey(prefix string, timestamp time.Time) []byte {
	return appendTime([]byte(prefix), timestamp, nil)
}

// appendTime writes timestamp in BigEndian order so lexicographic sort works correctly.
func appendTime(prefix []byte, timestamp time.Time, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+8+len(suffix))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	copy(buf[offset:], suffix)
	return buf
}

func idBytes(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", name))
}
