package domain

import (
	"math"
	"time"
)

// ProgressRecord is the checkpoint persisted after every scene advance.
type ProgressRecord struct {
	UserID     string    `json:"user_id" firestore:"user_id"`
	MissionID  string    `json:"mission_id" firestore:"mission_id"`
	Step       int       `json:"step" firestore:"step"`
	SceneID    string    `json:"scene_id" firestore:"scene_id"`
	Progress   int       `json:"progress" firestore:"progress"`
	IsComplete bool      `json:"is_complete" firestore:"is_complete"`
	UpdatedAt  time.Time `json:"updated_at" firestore:"updated_at"`
}

// Key returns the storage key of the record.
func (r *ProgressRecord) Key() string {
	return ProgressKey(r.UserID, r.MissionID)
}

// ProgressKey builds the storage key for a user and mission.
func ProgressKey(userID, missionID string) string {
	return userID + ":" + missionID
}

// NextProgress computes the percentage after advancing one scene.
// Each step covers an equal share of what is left, so increments shrink as the
// value approaches 100 and never overshoot it. The result never decreases.
func NextProgress(current, totalScenes int) int {
	if current < 0 {
		current = 0
	}
	if current >= 100 {
		return 100
	}
	if totalScenes <= 0 {
		return current
	}
	remaining := float64(100-current) / float64(totalScenes)
	next := int(math.Round(float64(current) + remaining))
	if next < current {
		return current
	}
	if next > 100 {
		return 100
	}
	return next
}

// MissionCompleted is the payload of the mission-completion notification.
type MissionCompleted struct {
	UserID      string    `json:"userId"`
	MissionID   string    `json:"missionId"`
	MissionName string    `json:"missionName"`
	CompletedAt time.Time `json:"completedAt"`
}
