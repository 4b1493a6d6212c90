package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"learnhub/internal/model"
	"learnhub/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoCourses    = errors.New("暂无课程可导出")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// Excel 工作表名最长 31 个字符
const maxSheetNameRunes = 31

// ExportService 导出业务接口
//
// 学习进度报表：每门课程一个 Sheet，列出选课学员的进度、完成状态与最近学习时间。
// 以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportProgress courseID 为空时导出全部课程
	ExportProgress(ctx context.Context, courseID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &exportService{repo: repo, loc: loc, logger: logger, now: time.Now}
}

func (s *exportService) ExportProgress(ctx context.Context, courseID string) (*bytes.Buffer, string, error) {
	// 1. 确定课程范围
	courses, err := s.coursesFor(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	if len(courses) == 0 {
		return nil, "", ErrExportNoCourses
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 2. 每门课程一个 Sheet
	names := make(map[string]int)
	users := make(map[string]string)
	for i, course := range courses {
		enrollments, err := s.repo.Enrollment.ListByCourse(ctx, course.ID)
		if err != nil {
			s.logger.Error("查询课程选课记录失败", zap.String("course_id", course.ID), zap.Error(err))
			return nil, "", err
		}
		sort.SliceStable(enrollments, func(a, b int) bool {
			return enrollments[a].Progress > enrollments[b].Progress
		})

		sheet := uniqueSheetName(course.Title, names)
		if i == 0 {
			_ = f.SetSheetName("Sheet1", sheet)
		} else if _, err := f.NewSheet(sheet); err != nil {
			s.logger.Error("创建工作表失败", zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}

		if err := s.writeCourseSheet(ctx, f, sheet, &course, enrollments, users, headerStyle); err != nil {
			return nil, "", err
		}
	}
	f.SetActiveSheet(0)

	// 3. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("学习进度_%s.xlsx", s.now().In(s.loc).Format("20060102"))
	if courseID != "" {
		filename = fmt.Sprintf("学习进度_%s.xlsx", courses[0].Title)
	}
	return buf, filename, nil
}

func (s *exportService) coursesFor(ctx context.Context, courseID string) ([]model.Course, error) {
	if courseID == "" {
		courses, err := s.repo.Course.List(ctx, "")
		if err != nil {
			s.logger.Error("查询课程列表失败", zap.Error(err))
			return nil, err
		}
		return courses, nil
	}

	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	return []model.Course{*course}, nil
}

// writeCourseSheet 表头: | 学员 | 邮箱 | 进度(%) | 已看课时 | 已完成 | 选课时间 | 最近学习 | 完成时间 |
func (s *exportService) writeCourseSheet(
	ctx context.Context,
	f *excelize.File,
	sheet string,
	course *model.Course,
	enrollments []model.Enrollment,
	users map[string]string,
	headerStyle int,
) error {
	headers := []string{"学员", "邮箱", "进度(%)", "已看课时", "已完成", "选课时间", "最近学习", "完成时间"}
	widths := []float64{16, 28, 10, 10, 8, 18, 18, 18}

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("%s（共 %d 课时，%d 人选修）", course.Title, len(course.Lessons), len(enrollments)))
	_ = f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	for i, h := range headers {
		col := colName(i)
		_ = f.SetCellValue(sheet, cell(col, 2), h)
		_ = f.SetColWidth(sheet, col, col, widths[i])
	}
	_ = f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	for i, e := range enrollments {
		row := i + 3
		name, email, err := s.lookupUser(ctx, e.UserID, users)
		if err != nil {
			return err
		}
		completed := "否"
		if e.IsCompleted {
			completed = "是"
		}
		values := []interface{}{
			name,
			email,
			e.Progress,
			len(e.WatchedLessonIDs),
			completed,
			s.formatTime(e.EnrolledAt),
			s.formatTime(e.LastAccessedAt),
			s.formatTimePtr(e.CompletedAt),
		}
		for c, v := range values {
			_ = f.SetCellValue(sheet, cell(colName(c), row), v)
		}
	}
	return nil
}

// lookupUser 返回 (显示名, 邮箱)；用户已注销时显示用户 ID
func (s *exportService) lookupUser(ctx context.Context, userID string, cache map[string]string) (string, string, error) {
	if v, ok := cache[userID]; ok {
		name, email, _ := strings.Cut(v, "\x00")
		return name, email, nil
	}
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if !repository.IsNotFound(err) {
			s.logger.Error("查询用户失败", zap.Error(err))
			return "", "", err
		}
		cache[userID] = userID + "\x00"
		return userID, "", nil
	}
	cache[userID] = user.DisplayName + "\x00" + user.Email
	return user.DisplayName, user.Email, nil
}

func (s *exportService) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(s.loc).Format("2006-01-02 15:04")
}

func (s *exportService) formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return s.formatTime(*t)
}

// ── 辅助函数 ──

// uniqueSheetName 去掉 Excel 不允许的字符、截断到 31 字符，并对重名追加序号
func uniqueSheetName(title string, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "课程"
	}
	name = truncateRunes(name, maxSheetNameRunes)

	base := name
	for n := 1; used[name] > 0; n++ {
		suffix := fmt.Sprintf("(%d)", n)
		name = truncateRunes(base, maxSheetNameRunes-len(suffix)) + suffix
	}
	used[name]++
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
