package progress

import (
	"testing"
	"time"

	"learnhub/internal/model"
)

const day = 24 * time.Hour

func TestClamp(t *testing.T) {
	for _, p := range []int{-50, -1, 0, 1, 42, 99, 100, 101, 1000} {
		got := Clamp(p)
		if got < 0 || got > 100 {
			t.Errorf("Clamp(%d)=%d 超出范围", p, got)
		}
		if p >= 0 && p <= 100 && got != p {
			t.Errorf("Clamp(%d) 应保持不变，实际 %d", p, got)
		}
	}
	if Clamp(-5) != 0 || Clamp(150) != 100 {
		t.Error("越界值应截断到 0 / 100")
	}
}

func TestApply_CompletionInvariant(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	for _, p := range []int{-10, 0, 50, 99, 100, 130} {
		e := &model.Enrollment{}
		Apply(e, p, nil, now)

		if e.Progress != Clamp(p) {
			t.Errorf("p=%d: 期望 progress=%d，实际 %d", p, Clamp(p), e.Progress)
		}
		if e.IsCompleted != (e.Progress == 100) {
			t.Errorf("p=%d: isCompleted=%v 与 progress=%d 不一致", p, e.IsCompleted, e.Progress)
		}
		if !e.LastAccessedAt.Equal(now) {
			t.Errorf("p=%d: LastAccessedAt 未更新", p)
		}
	}
}

func TestApply_CompletedAtOnlyOnTransition(t *testing.T) {
	first := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	later := first.Add(3 * time.Hour)

	e := &model.Enrollment{Progress: 80}
	Apply(e, 100, []int{1, 2}, first)
	if e.CompletedAt == nil || !e.CompletedAt.Equal(first) {
		t.Fatalf("首次达到 100 应设置 CompletedAt=%v，实际 %v", first, e.CompletedAt)
	}

	Apply(e, 100, []int{1, 2, 3}, later)
	if !e.CompletedAt.Equal(first) {
		t.Errorf("已完成时再次写入 100 不应改变 CompletedAt，实际 %v", e.CompletedAt)
	}

	Apply(e, 60, []int{1}, later)
	if e.IsCompleted || e.CompletedAt != nil {
		t.Error("离开 100 后应清除完成状态")
	}
}

func TestApply_NormalizesLessonIDs(t *testing.T) {
	e := &model.Enrollment{}
	Apply(e, 30, []int{3, 1, 3, 2, 1}, time.Now())

	want := []int{1, 2, 3}
	if len(e.WatchedLessonIDs) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, e.WatchedLessonIDs)
	}
	for i := range want {
		if e.WatchedLessonIDs[i] != want[i] {
			t.Fatalf("期望 %v，实际 %v", want, e.WatchedLessonIDs)
		}
	}
}

func TestFromLessons(t *testing.T) {
	cases := []struct{ watched, total, want int }{
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 66},
		{3, 3, 100},
		{5, 3, 100},
		{2, 0, 0},
	}
	for _, tc := range cases {
		if got := FromLessons(tc.watched, tc.total); got != tc.want {
			t.Errorf("FromLessons(%d,%d)=%d，期望 %d", tc.watched, tc.total, got, tc.want)
		}
	}
}

func TestAverageProgress(t *testing.T) {
	if got := AverageProgress(nil); got != 0 {
		t.Errorf("空集合期望 0，实际 %d", got)
	}
	if got := AverageProgress([]int{50, 100}); got != 75 {
		t.Errorf("[50,100] 期望 75，实际 %d", got)
	}
	if got := AverageProgress([]int{33, 34}); got != 33 {
		t.Errorf("[33,34] 应向下取整为 33，实际 %d", got)
	}
}

func TestStreak(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ts   []time.Time
		want int
	}{
		{"空", nil, 0},
		{"仅今天", []time.Time{now}, 1},
		{"今天+昨天+三天前", []time.Time{now, now.Add(-day), now.Add(-3 * day)}, 2},
		{"最近一次为昨天", []time.Time{now.Add(-day), now.Add(-2 * day)}, 2},
		{"最近一次为两天前", []time.Time{now.Add(-2 * day), now.Add(-3 * day)}, 0},
		{"同一天多次", []time.Time{now, now.Add(-time.Hour), now.Add(-day)}, 2},
		{"乱序输入", []time.Time{now.Add(-2 * day), now, now.Add(-day)}, 3},
		{"零值时间忽略", []time.Time{{}, now}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Streak(tc.ts, now); got != tc.want {
				t.Errorf("期望 %d，实际 %d", tc.want, got)
			}
		})
	}
}

func TestComputeStatistics(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	empty := ComputeStatistics(nil, now)
	if empty != (Statistics{}) {
		t.Errorf("无选课时统计应全为 0，实际 %+v", empty)
	}

	enrollments := []model.Enrollment{
		{Progress: 50, WatchedLessonIDs: []int{1, 2}, LastAccessedAt: now},
		{Progress: 100, IsCompleted: true, WatchedLessonIDs: []int{1, 2, 3, 4}, LastAccessedAt: now.Add(-day)},
	}
	stats := ComputeStatistics(enrollments, now)

	if stats.ActiveCourses != 2 {
		t.Errorf("期望 ActiveCourses=2，实际 %d", stats.ActiveCourses)
	}
	if stats.CompletedCourses != 1 {
		t.Errorf("期望 CompletedCourses=1，实际 %d", stats.CompletedCourses)
	}
	if stats.AverageProgress != 75 {
		t.Errorf("期望 AverageProgress=75，实际 %d", stats.AverageProgress)
	}
	if stats.StudyStreak != 2 {
		t.Errorf("期望 StudyStreak=2，实际 %d", stats.StudyStreak)
	}
	if stats.TotalWatchedLessons != 6 {
		t.Errorf("期望 TotalWatchedLessons=6，实际 %d", stats.TotalWatchedLessons)
	}
}

func TestWeekStart(t *testing.T) {
	// 2026-10-14 为周三
	wed := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	if got := WeekStart(wed, time.UTC); !got.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("周三所在周应从 10-12 开始，实际 %v", got)
	}

	sun := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	if got := WeekStart(sun, time.UTC); !got.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("周日应归属于前一个周一开始的周，实际 %v", got)
	}

	mon := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(mon, time.UTC); !got.Equal(mon) {
		t.Errorf("周一零点应为本周起点，实际 %v", got)
	}
}

func TestWeekly(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) // 周三
	monday := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

	enrollments := []model.Enrollment{
		{WatchedLessonIDs: []int{1, 2, 3}, LastAccessedAt: monday},
		{WatchedLessonIDs: []int{1}, LastAccessedAt: now},
		{WatchedLessonIDs: []int{4, 5}, LastAccessedAt: now.Add(-time.Hour)},
		{WatchedLessonIDs: []int{9, 9, 9}, LastAccessedAt: monday.Add(-day)}, // 上周日，不计
	}

	week := Weekly(enrollments, now, time.UTC)
	if len(week) != 7 {
		t.Fatalf("期望 7 天，实际 %d", len(week))
	}
	if week[0].Day != "Mon" || week[6].Day != "Sun" {
		t.Errorf("标签应从 Mon 到 Sun，实际 %s..%s", week[0].Day, week[6].Day)
	}
	if week[0].Date != "2026-10-12" {
		t.Errorf("周一日期不符: %s", week[0].Date)
	}
	if week[0].Lessons != 3 {
		t.Errorf("周一期望 3 课时，实际 %d", week[0].Lessons)
	}
	if week[2].Lessons != 3 {
		t.Errorf("周三期望 3 课时，实际 %d", week[2].Lessons)
	}
	total := 0
	for _, d := range week {
		total += d.Lessons
	}
	if total != 6 {
		t.Errorf("本周合计期望 6，实际 %d（上周数据不应计入）", total)
	}
}

func TestWeekly_Timezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// UTC 周日 20:00 = 雅加达周一 03:00
	now := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

	week := Weekly([]model.Enrollment{
		{WatchedLessonIDs: []int{1}, LastAccessedAt: now},
	}, now, jakarta)

	if week[0].Date != "2026-10-19" || week[0].Lessons != 1 {
		t.Errorf("按雅加达时区应计入 10-19 周一，实际 %+v", week[0])
	}
}
