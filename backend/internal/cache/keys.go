package cache

import "fmt"

// Key semantics:
// - roomKey(docID):   online members of a doc room (ZSet<userId>, score=expireAtUnix)
// - namesKey(docID):  userId -> username for the room (Hash)
// - cursorKey:        per-user cursor blob (String, TTL)
// - lockKey(docID):   exclusive edit lock holder (String, SetNX + TTL)

const (
	keyRoomFmt   = "presence:room:{docID:%s}"
	keyNamesFmt  = "presence:room:names:{docID:%s}"
	keyCursorFmt = "presence:cursor:%s:%d"
	keyLockFmt   = "doc:lock:{docID:%s}"
)

func roomKey(docID string) string               { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string              { return fmt.Sprintf(keyNamesFmt, docID) }
func cursorKey(docID string, uid uint64) string { return fmt.Sprintf(keyCursorFmt, docID, uid) }
func lockKey(docID string) string               { return fmt.Sprintf(keyLockFmt, docID) }
