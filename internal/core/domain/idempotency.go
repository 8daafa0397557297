package domain

// BuildIdempotencyKey scopes a client supplied Idempotency-Key to its caller.
func BuildIdempotencyKey(userID, key string) string {
	return "pi:" + userID + ":" + key
}
