package royalty

import (
	"bitbucket.org/mmdatafocus/royalty_backend/config"
)

// ProgressStore is the durable counter used for crash resumption. It carries
// no domain semantics: jobId -> last fully processed row index.
type ProgressStore interface {
	Get(jobId string) (lastIndex int, found bool, err error)
	Set(jobId string, rowIndex int) error
	Clear(jobId string) error
}

const jobProgressKeyPrefix = "JobProgress:"

type redisProgress struct{}

func NewRedisProgressStore() ProgressStore {
	return redisProgress{}
}

func (redisProgress) Get(jobId string) (int, bool, error) {
	return config.GetRedisInt(jobProgressKeyPrefix + jobId)
}

func (redisProgress) Set(jobId string, rowIndex int) error {
	// No expiry: the key is cleared explicitly when the job completes.
	return config.SetRedisInt(jobProgressKeyPrefix+jobId, rowIndex, 0)
}

func (redisProgress) Clear(jobId string) error {
	return config.RemoveRedisKey(jobProgressKeyPrefix + jobId)
}
