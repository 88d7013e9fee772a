package models

type ConflictType string

const (
	ConflictStudent    ConflictType = "STUDENT"
	ConflictMaxLoad    ConflictType = "MAX_LOAD"
	ConflictDailyLimit ConflictType = "DAILY_LIMIT"
)

type Conflict struct {
	Type    ConflictType `json:"type"`
	Message string       `json:"message"`
	ExamID1 string       `json:"exam_id1"`
	ExamID2 string       `json:"exam_id2"`
}

type ConflictResult struct {
	ConflictFree bool       `json:"conflict_free"`
	Conflicts    []Conflict `json:"conflicts"`
}

type StatusReport struct {
	Total            int    `json:"total"`
	Published        int    `json:"published"`
	Draft            int    `json:"draft"`
	IsFullyPublished bool   `json:"is_fully_published"`
	StoreStatus      string `json:"db"`
	Backend          string `json:"backend"`
}
