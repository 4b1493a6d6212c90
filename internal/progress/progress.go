// Package progress 选课进度与学习统计计算。
//
// 全部为纯函数：输入选课记录与当前时间，输出进度、统计、连续学习天数与本周学习分布。
package progress

import (
	"sort"
	"time"

	"learnhub/internal/model"
)

const (
	// MinProgress / MaxProgress 进度取值范围
	MinProgress = 0
	MaxProgress = 100

	millisPerDay = 86_400_000
)

// Clamp 将进度限制在 [0,100]
func Clamp(p int) int {
	if p < MinProgress {
		return MinProgress
	}
	if p > MaxProgress {
		return MaxProgress
	}
	return p
}

// FromLessons 按已看课时数折算进度（向下取整），课程无课时时为 0
func FromLessons(watched, total int) int {
	if total <= 0 || watched <= 0 {
		return 0
	}
	return Clamp(watched * MaxProgress / total)
}

// NormalizeLessonIDs 去重并升序排列
func NormalizeLessonIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Apply 写入新的进度与已看课时：
//   - 进度限制在 [0,100]
//   - IsCompleted = (进度 == 100)
//   - CompletedAt 仅在首次达到 100 时设置，离开 100 时清除
//   - LastAccessedAt 更新为 now
func Apply(e *model.Enrollment, p int, watched []int, now time.Time) {
	p = Clamp(p)
	wasCompleted := e.IsCompleted

	e.Progress = p
	e.IsCompleted = p == MaxProgress
	e.WatchedLessonIDs = NormalizeLessonIDs(watched)
	e.LastAccessedAt = now

	switch {
	case e.IsCompleted && !wasCompleted:
		t := now
		e.CompletedAt = &t
	case !e.IsCompleted:
		e.CompletedAt = nil
	}
}

// Statistics 学习统计，读取时由全部选课记录推导，不落库
type Statistics struct {
	ActiveCourses       int `json:"active_courses"`
	CompletedCourses    int `json:"completed_courses"`
	AverageProgress     int `json:"average_progress"`
	StudyStreak         int `json:"study_streak"`
	TotalWatchedLessons int `json:"total_watched_lessons"`
}

// ComputeStatistics 汇总用户的全部选课记录
func ComputeStatistics(enrollments []model.Enrollment, now time.Time) Statistics {
	stats := Statistics{ActiveCourses: len(enrollments)}

	values := make([]int, 0, len(enrollments))
	accessed := make([]time.Time, 0, len(enrollments))
	for _, e := range enrollments {
		if e.IsCompleted {
			stats.CompletedCourses++
		}
		values = append(values, e.Progress)
		accessed = append(accessed, e.LastAccessedAt)
		stats.TotalWatchedLessons += len(e.WatchedLessonIDs)
	}

	stats.AverageProgress = AverageProgress(values)
	stats.StudyStreak = Streak(accessed, now)
	return stats
}

// AverageProgress floor(sum/count)，空集合为 0
func AverageProgress(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}

// dayNumber 按 epoch 毫秒 / 86_400_000 折算天序号
func dayNumber(t time.Time) int64 {
	return t.UnixMilli() / millisPerDay
}

// Streak 连续学习天数：最近一次学习距今超过一天则为 0，
// 否则从最近一天起向前统计连续的天序号（同一天多次只算一次）。
func Streak(timestamps []time.Time, now time.Time) int {
	if len(timestamps) == 0 {
		return 0
	}

	days := make([]int64, 0, len(timestamps))
	seen := make(map[int64]struct{}, len(timestamps))
	for _, ts := range timestamps {
		if ts.IsZero() {
			continue
		}
		d := dayNumber(ts)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	if dayNumber(now)-days[0] > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

// WeeklyStudyData 本周某一天的学习量
type WeeklyStudyData struct {
	Day     string `json:"day"`
	Date    string `json:"date"`
	Lessons int    `json:"lessons"`
}

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekStart 返回 now 所在周的周一零点（loc 时区）
func WeekStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7 // 周一为 0
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// Weekly 统计本周（周一至周日）每天的学习课时数：
// 仅统计 LastAccessedAt 落在本周内的选课，其已看课时数计入 LastAccessedAt 所在那天。
func Weekly(enrollments []model.Enrollment, now time.Time, loc *time.Location) []WeeklyStudyData {
	start := WeekStart(now, loc)
	end := start.AddDate(0, 0, 7)

	out := make([]WeeklyStudyData, 7)
	for i := range out {
		out[i] = WeeklyStudyData{
			Day:  weekdayLabels[i],
			Date: start.AddDate(0, 0, i).Format("2006-01-02"),
		}
	}

	for _, e := range enrollments {
		at := e.LastAccessedAt
		if at.Before(start) || !at.Before(end) {
			continue
		}
		idx := (int(at.In(start.Location()).Weekday()) + 6) % 7
		out[idx].Lessons += len(e.WatchedLessonIDs)
	}
	return out
}
