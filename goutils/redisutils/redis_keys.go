package redisutils

const (
	REDIS_KEY_GRAPH_API_KEY        string = "settings:graphApiKey"
	REDIS_KEY_OPERATOR_LAST_VIEWED string = "operator:lastViewed"
)
