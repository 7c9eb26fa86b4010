package common

const (
	// RedisKeyDailyDigestSent guards against generating the same user's daily
	// digest twice; the full key is suffixed with ":<user_id>:<date>".
	RedisKeyDailyDigestSent = "digest.daily.sent"
)
