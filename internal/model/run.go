package model

import "time"

// TrainingRun records one completed training job.
type TrainingRun struct {
	CreatedAt      time.Time
	ID             string
	ArtifactPath   string
	ArtifactSHA256 string
	Fingerprint    string
	LabelColumn    string
	// MetricsJSON is the held-out evaluation report, kept verbatim.
	MetricsJSON string
	Schema      FeatureSchema
	Records     int
	Dropped     int
	Unparseable int
	TrainSize   int
	TestSize    int
	Accuracy    float64
}

// PredictionRecord is one served prediction kept for later review.
type PredictionRecord struct {
	CreatedAt   time.Time
	Score       *float64
	Fingerprint string
	RequestJSON string
	ID          int64
	Label       int
}
