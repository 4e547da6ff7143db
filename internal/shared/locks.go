package shared

import "fmt"

// LifecycleLockKey builds redis keys serializing account lifecycle cascades.
func LifecycleLockKey(userID int64) string {
	return fmt.Sprintf("lifecycle:user:%d:lock", userID)
}
