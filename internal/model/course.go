package model

// Lesson 课时（内嵌于课程文档），ID 在课程内唯一
type Lesson struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	VideoURL        string `json:"videoUrl,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
}

// Course 课程文档，对应 courses
type Course struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Instructor    string   `json:"instructor,omitempty"`
	ThumbnailURL  string   `json:"thumbnailUrl,omitempty"`
	Lessons       []Lesson `json:"lessons"`
	EnrolledCount int      `json:"enrolledCount"`
	Timestamps
}

// HasLesson 课程是否包含指定课时
func (c *Course) HasLesson(id int) bool {
	for _, l := range c.Lessons {
		if l.ID == id {
			return true
		}
	}
	return false
}
