package errors

import "errors"

// ── 通用错误分类 ──
//
// 后端返回的所有失败最终归入以下几类，Handler 层据此选择 HTTP 状态码。

var (
	// ErrNotLoggedIn 未登录或会话失效
	ErrNotLoggedIn = errors.New("未登录")
	// ErrNotFound 目标记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrBackend 存储或网络后端失败
	ErrBackend = errors.New("后端服务异常")
	// ErrConflict 事务冲突：记录已被其他操作修改
	ErrConflict = errors.New("数据已被其他操作修改，请刷新后重试")
)

// Kind 返回 err 所属的通用分类，无法识别时归为 ErrBackend
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotLoggedIn):
		return ErrNotLoggedIn
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return ErrBackend
	}
}
