package model

import "time"

// Enrollment 选课记录，对应 enrollments，文档 ID 为 userId_courseId
//
// 不变式：IsCompleted ⇔ Progress == 100
type Enrollment struct {
	UserID           string     `json:"userId"`
	CourseID         string     `json:"courseId"`
	Progress         int        `json:"progress"`
	IsCompleted      bool       `json:"isCompleted"`
	WatchedLessonIDs []int      `json:"watchedLessonIds"`
	EnrolledAt       time.Time  `json:"enrolledAt"`
	LastAccessedAt   time.Time  `json:"lastAccessedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// EnrollmentID 组合主键
func EnrollmentID(userID, courseID string) string {
	return userID + "_" + courseID
}

// ID 文档 ID
func (e *Enrollment) ID() string { return EnrollmentID(e.UserID, e.CourseID) }
