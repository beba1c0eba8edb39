package domain

import "fmt"

// Bucket names one generated duration aggregate.
type Bucket string

// Stats buckets populated by the generated-stats rules.
const (
	BucketSleep     Bucket = "sleep_total_time"
	BucketExercise  Bucket = "total_exercise_time"
	BucketCardio    Bucket = "cardio_time"
	BucketAnaerobic Bucket = "anaerobic_time"
	BucketGrooming  Bucket = "grooming_time"
	BucketToilet    Bucket = "toilet_time"
	BucketGaming    Bucket = "gaming_time"
)

// Buckets lists every known bucket in storage column order.
var Buckets = []Bucket{
	BucketSleep,
	BucketExercise,
	BucketCardio,
	BucketAnaerobic,
	BucketGrooming,
	BucketToilet,
	BucketGaming,
}

// ParseBucket validates a bucket name.
func ParseBucket(raw string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == raw {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBucket, raw)
}

// Stats holds the per-day generated duration aggregates in seconds.
type Stats struct {
	SleepTotal    int `json:"sleep_total_time"`
	ExerciseTotal int `json:"total_exercise_time"`
	Cardio        int `json:"cardio_time"`
	Anaerobic     int `json:"anaerobic_time"`
	Grooming      int `json:"grooming_time"`
	Toilet        int `json:"toilet_time"`
	Gaming        int `json:"gaming_time"`
}

// Add adds seconds to a bucket.
func (s *Stats) Add(b Bucket, seconds int) {
	if p := s.field(b); p != nil {
		*p += seconds
	}
}

// Get returns the current total of a bucket.
func (s Stats) Get(b Bucket) int {
	if p := s.field(b); p != nil {
		return *p
	}
	return 0
}

func (s *Stats) field(b Bucket) *int {
	switch b {
	case BucketSleep:
		return &s.SleepTotal
	case BucketExercise:
		return &s.ExerciseTotal
	case BucketCardio:
		return &s.Cardio
	case BucketAnaerobic:
		return &s.Anaerobic
	case BucketGrooming:
		return &s.Grooming
	case BucketToilet:
		return &s.Toilet
	case BucketGaming:
		return &s.Gaming
	default:
		return nil
	}
}
