package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "learnhub/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFromError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"未登录", apperrors.ErrNotLoggedIn, http.StatusUnauthorized, CodeNotLoggedIn},
		{"不存在", fmt.Errorf("%w: 课程", apperrors.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"冲突", apperrors.ErrConflict, http.StatusConflict, CodeConflict},
		{"后端错误", errors.New("dial tcp: timeout"), http.StatusBadGateway, CodeBackend},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			FromError(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("期望状态码 %d，实际 %d", tc.wantStatus, w.Code)
			}
			var resp Response
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tc.wantCode {
				t.Errorf("期望 code=%d，实际 %d", tc.wantCode, resp.Code)
			}
		})
	}
}
