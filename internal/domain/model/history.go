package model

import "strconv"

// Historical snapshot granularities. Pool-level state is lower cardinality
// and slower moving, so it is sampled at the coarse bucket; per-account
// balances are sampled at the fine bucket to stay queryable.
const (
	PoolBucketSeconds    int64 = 86400
	AccountBucketSeconds int64 = 3600
)

// BucketTimestamp rounds ts down to the given bucket size.
func BucketTimestamp(ts, bucketSeconds int64) int64 {
	if bucketSeconds <= 0 {
		return ts
	}
	return ts - ts%bucketSeconds
}

// HistoricalID derives the identity of a time-bucketed snapshot from the
// current record's id. Two writes within the same bucket collapse onto the
// same row; different buckets produce distinct rows.
func HistoricalID(id string, bucketTS int64) string {
	return id + strconv.FormatInt(bucketTS, 10)
}
