package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/model"
	"learnhub/internal/progress"
	"learnhub/internal/repository"
)

// 助手上下文中携带的最近消息条数
const chatHistoryWindow = 10

// AssistantInput 助手生成回复时可用的上下文
type AssistantInput struct {
	Question string
	History  []model.ChatMessage
	Stats    progress.Statistics
	Weekly   []progress.WeeklyStudyData
	Enrolled []model.Enrollment
	Catalog  []model.Course
}

// Assistant 聊天助手
type Assistant interface {
	Reply(ctx context.Context, in *AssistantInput) (string, error)
}

// ChatService 聊天助手业务接口
type ChatService interface {
	SendMessage(ctx context.Context, userID, content string) (*dto.ChatExchangeResponse, error)
	History(ctx context.Context, userID string) ([]dto.ChatMessageResponse, error)
	ClearHistory(ctx context.Context, userID string) (int, error)
}

type chatService struct {
	repo      *repository.Repository
	assistant Assistant
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewChatService 创建 ChatService 实例；assistant 为 nil 时使用规则助手
func NewChatService(repo *repository.Repository, assistant Assistant, loc *time.Location, logger *zap.Logger) ChatService {
	if assistant == nil {
		assistant = NewStudyAssistant()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &chatService{repo: repo, assistant: assistant, loc: loc, logger: logger, now: time.Now}
}

func (s *chatService) SendMessage(ctx context.Context, userID, content string) (*dto.ChatExchangeResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	in, err := s.buildInput(ctx, userID, content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	question := &model.ChatMessage{
		ID:        newMessageID(),
		UserID:    userID,
		Role:      model.ChatRoleUser,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.repo.Chat.Save(ctx, question); err != nil {
		s.logger.Error("保存聊天消息失败", zap.Error(err))
		return nil, err
	}

	reply, err := s.assistant.Reply(ctx, in)
	if err != nil {
		s.logger.Error("助手生成回复失败", zap.Error(err))
		return nil, err
	}

	answeredAt := s.now()
	if !answeredAt.After(now) {
		answeredAt = now.Add(time.Millisecond)
	}
	answer := &model.ChatMessage{
		ID:        newMessageID(),
		UserID:    userID,
		Role:      model.ChatRoleAssistant,
		Content:   reply,
		CreatedAt: answeredAt,
	}
	if err := s.repo.Chat.Save(ctx, answer); err != nil {
		s.logger.Error("保存助手回复失败", zap.Error(err))
		return nil, err
	}

	return &dto.ChatExchangeResponse{
		Question: dto.NewChatMessageResponse(question),
		Answer:   dto.NewChatMessageResponse(answer),
	}, nil
}

func (s *chatService) History(ctx context.Context, userID string) ([]dto.ChatMessageResponse, error) {
	msgs, err := s.repo.Chat.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询聊天记录失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ChatMessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, dto.NewChatMessageResponse(&msgs[i]))
	}
	return out, nil
}

func (s *chatService) ClearHistory(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		n, err = tx.Chat.DeleteByUser(ctx, userID)
		return err
	})
	if err != nil {
		s.logger.Error("清空聊天记录失败", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *chatService) buildInput(ctx context.Context, userID, question string) (*AssistantInput, error) {
	enrolled, err := s.repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询选课列表失败", zap.Error(err))
		return nil, err
	}
	catalog, err := s.repo.Course.List(ctx, "")
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, err
	}
	history, err := s.repo.Chat.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询聊天记录失败", zap.Error(err))
		return nil, err
	}
	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}

	now := s.now()
	return &AssistantInput{
		Question: question,
		History:  history,
		Stats:    progress.ComputeStatistics(enrolled, now),
		Weekly:   progress.Weekly(enrolled, now, s.loc),
		Enrolled: enrolled,
		Catalog:  catalog,
	}, nil
}

// newMessageID 按时间有序的 ID，同一毫秒内也保持递增
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ────────────────────── 规则助手 ──────────────────────

// StudyAssistant 基于关键词的学习助手，回答进度、连续学习、本周学习与选课推荐
type StudyAssistant struct{}

// NewStudyAssistant 创建规则助手
func NewStudyAssistant() *StudyAssistant { return &StudyAssistant{} }

// 推荐课程数量
const recommendLimit = 3

type assistantRule struct {
	keywords []string
	answer   func(in *AssistantInput) string
}

var assistantRules = []assistantRule{
	{[]string{"streak", "连续", "打卡"}, answerStreak},
	{[]string{"week", "本周", "这周"}, answerWeekly},
	{[]string{"recommend", "推荐", "选什么", "next course"}, answerRecommend},
	{[]string{"progress", "进度", "完成", "stat"}, answerProgress},
	{[]string{"hello", "你好", "嗨"}, answerGreeting},
}

func (a *StudyAssistant) Reply(_ context.Context, in *AssistantInput) (string, error) {
	q := strings.ToLower(in.Question)
	for _, rule := range assistantRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.answer(in), nil
			}
		}
	}
	return "我可以帮你查看学习进度、连续学习天数、本周学习情况，或者推荐下一门课程。试着问我「我的进度怎么样？」", nil
}

func answerGreeting(_ *AssistantInput) string {
	return "你好！我是你的学习助手。想了解学习进度、连续学习天数还是课程推荐？"
}

func answerProgress(in *AssistantInput) string {
	st := in.Stats
	if st.ActiveCourses == 0 {
		return "你还没有选修任何课程，去课程列表挑一门开始吧！"
	}
	return fmt.Sprintf("你共选修 %d 门课程，已完成 %d 门，平均进度 %d%%，累计观看 %d 个课时。",
		st.ActiveCourses, st.CompletedCourses, st.AverageProgress, st.TotalWatchedLessons)
}

func answerStreak(in *AssistantInput) string {
	switch st := in.Stats.StudyStreak; {
	case st == 0:
		return "你最近没有学习记录，今天学一节课就能重新开始连续打卡！"
	case st == 1:
		return "你已连续学习 1 天，明天继续保持！"
	default:
		return fmt.Sprintf("你已连续学习 %d 天，太棒了！", st)
	}
}

func answerWeekly(in *AssistantInput) string {
	total, best := 0, -1
	for i, d := range in.Weekly {
		total += d.Lessons
		if d.Lessons > 0 && (best < 0 || d.Lessons > in.Weekly[best].Lessons) {
			best = i
		}
	}
	if total == 0 {
		return "本周还没有学习记录。"
	}
	return fmt.Sprintf("本周共学习 %d 个课时，学得最多的是 %s（%d 个课时）。",
		total, in.Weekly[best].Day, in.Weekly[best].Lessons)
}

func answerRecommend(in *AssistantInput) string {
	enrolled := make(map[string]bool, len(in.Enrolled))
	for _, e := range in.Enrolled {
		enrolled[e.CourseID] = true
	}

	var candidates []model.Course
	for _, c := range in.Catalog {
		if !enrolled[c.ID] {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return "你已经选修了所有课程，继续加油完成它们吧！"
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EnrolledCount > candidates[j].EnrolledCount
	})
	if len(candidates) > recommendLimit {
		candidates = candidates[:recommendLimit]
	}

	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		titles = append(titles, "《"+c.Title+"》")
	}
	return "推荐你试试：" + strings.Join(titles, "、")
}
