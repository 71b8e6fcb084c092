package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/notify"
	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/infra/adapter/persistence/memory"
	"notify-dispatch/internal/usecase/channel"
	"notify-dispatch/internal/usecase/history"
	notifyUC "notify-dispatch/internal/usecase/notify"
)

/* ───────── スタブ ───────── */

type stubDispatcher struct {
	mu      sync.Mutex
	report  *notifyUC.DispatchReport
	err     error
	health  []notifyUC.ChannelHealthStatus
	lastMsg *entity.Message
	ctxErr  error
	hasDL   bool
}

func (s *stubDispatcher) Send(ctx context.Context, msg *entity.Message) (*notifyUC.DispatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = msg
	s.ctxErr = ctx.Err()
	_, s.hasDL = ctx.Deadline()
	if s.report != nil {
		s.report.MessageID = msg.ID
	}
	return s.report, s.err
}

func (s *stubDispatcher) ChannelHealth(context.Context) ([]notifyUC.ChannelHealthStatus, error) {
	return s.health, s.err
}

type stubTester struct {
	ok      bool
	message string
	last    *entity.ChannelConfig
}

func (s *stubTester) Test(_ context.Context, cfg *entity.ChannelConfig) (bool, string) {
	s.last = cfg
	return s.ok, s.message
}

type server struct {
	mux        *http.ServeMux
	repo       *memory.ChannelRepo
	historyRep *memory.HistoryRepo
	recorder   *history.Recorder
	dispatcher *stubDispatcher
	tester     *stubTester
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		mux:        http.NewServeMux(),
		repo:       memory.NewChannelRepo(),
		historyRep: memory.NewHistoryRepo(),
		dispatcher: &stubDispatcher{},
		tester:     &stubTester{},
	}
	s.recorder = history.NewRecorder(s.historyRep)
	notify.Register(s.mux, notify.Deps{
		Configs:     &channel.Service{Repo: s.repo},
		Dispatcher:  s.dispatcher,
		Tester:      s.tester,
		History:     s.recorder,
		Paging:      pagination.DefaultConfig(),
		SendTimeout: 5 * time.Second,
	})
	return s
}

func (s *server) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

const dingtalkBody = `{
	"name": "ops",
	"type": "dingtalk",
	"enabled": true,
	"dingtalk_webhook": "https://oapi.dingtalk.com/robot/send?access_token=abc",
	"dingtalk_secret": "SECabc",
	"smtp_host": "ignored.example.com"
}`

/* ───────── Config CRUD ───────── */

func TestCreateConfig_MasksSecretsOnList(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodPost, "/notify/configs", dingtalkBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/notify/configs", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []notify.ConfigDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ops", got[0].Name)
	assert.Equal(t, "dingtalk", got[0].Type)
	assert.True(t, got[0].Enabled)
	assert.Equal(t, entity.MaskedValue, got[0].DingTalkSecret)
	assert.Empty(t, got[0].SMTPHost, "fields of other types are not read")

	stored, err := s.repo.Get(context.Background(), entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk})
	require.NoError(t, err)
	assert.Equal(t, "SECabc", stored.Settings.(*entity.DingTalkSettings).Secret)
}

func TestCreateConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		seed     bool
		body     string
		wantCode int
		wantKind string
		wantText string
	}{
		{
			name:     "TC-1: malformed JSON",
			body:     `{"name":`,
			wantCode: http.StatusBadRequest,
			wantKind: respond.KindInvalidRequest,
			wantText: "invalid JSON body",
		},
		{
			name:     "TC-2: unknown type",
			body:     `{"name":"x","type":"pager"}`,
			wantCode: http.StatusBadRequest,
			wantKind: respond.KindInvalidConfig,
			wantText: "type",
		},
		{
			name:     "TC-3: invalid webhook URL names the field",
			body:     `{"name":"x","type":"wechat","wechat_webhook":"ftp://example.com"}`,
			wantCode: http.StatusBadRequest,
			wantKind: respond.KindInvalidConfig,
			wantText: "wechat_webhook",
		},
		{
			name:     "TC-4: duplicate key",
			seed:     true,
			body:     dingtalkBody,
			wantCode: http.StatusConflict,
			wantKind: respond.KindDuplicateConfig,
			wantText: "already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			if tt.seed {
				require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/notify/configs", dingtalkBody).Code)
			}

			rr := s.do(http.MethodPost, "/notify/configs", tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Contains(t, body.Error, tt.wantText)
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	t.Run("TC-1: masked secret keeps stored value", func(t *testing.T) {
		s := newServer(t)
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/notify/configs", dingtalkBody).Code)

		rr := s.do(http.MethodPut, "/notify/configs", `{
			"name": "ops",
			"type": "dingtalk",
			"enabled": false,
			"dingtalk_webhook": "https://oapi.dingtalk.com/robot/send?access_token=new",
			"dingtalk_secret": "******"
		}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		stored, err := s.repo.Get(context.Background(), entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk})
		require.NoError(t, err)
		settings := stored.Settings.(*entity.DingTalkSettings)
		assert.Equal(t, "SECabc", settings.Secret)
		assert.Contains(t, settings.WebhookURL, "access_token=new")
		assert.False(t, stored.Enabled)
	})

	t.Run("TC-2: missing config is not_found", func(t *testing.T) {
		s := newServer(t)
		rr := s.do(http.MethodPut, "/notify/configs", dingtalkBody)
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, respond.KindNotFound, decodeError(t, rr).Kind)
	})
}

func TestDeleteConfig(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantKind string
	}{
		{"TC-1: existing config", "/notify/configs?name=ops&type=dingtalk", http.StatusOK, ""},
		{"TC-2: same name other type", "/notify/configs?name=ops&type=feishu", http.StatusNotFound, respond.KindNotFound},
		{"TC-3: missing name", "/notify/configs?type=dingtalk", http.StatusBadRequest, respond.KindInvalidRequest},
		{"TC-4: unknown type", "/notify/configs?name=ops&type=sms", http.StatusBadRequest, respond.KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/notify/configs", dingtalkBody).Code)

			rr := s.do(http.MethodDelete, tt.target, "")
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, decodeError(t, rr).Kind)
				return
			}
			configs, err := s.repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, configs)
		})
	}
}

func TestEnableConfig(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/notify/configs", dingtalkBody).Code)

	rr := s.do(http.MethodPost, "/notify/configs/enable", `{"name":"ops","type":"dingtalk","enabled":false}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stored, err := s.repo.Get(context.Background(), entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk})
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	rr = s.do(http.MethodPost, "/notify/configs/enable", `{"name":"ops","type":"dingtalk"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "enabled is required", decodeError(t, rr).Error)

	rr = s.do(http.MethodPost, "/notify/configs/enable", `{"name":"missing","type":"dingtalk","enabled":true}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTypes(t *testing.T) {
	s := newServer(t)
	rr := s.do(http.MethodGet, "/notify/types", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []entity.ChannelTypeInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, entity.ChannelTypes(), got)
}

/* ───────── Test / Send ───────── */

func TestTestHandler(t *testing.T) {
	t.Run("TC-1: passes the unsaved config to the tester", func(t *testing.T) {
		s := newServer(t)
		s.tester.ok, s.tester.message = true, notifyUC.TestSucceededMessage

		rr := s.do(http.MethodPost, "/notify/test", `{"name":"draft","type":"wechat","wechat_webhook":"https://qyapi.weixin.qq.com/x"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"message":"test notification sent"}`, rr.Body.String())

		require.NotNil(t, s.tester.last)
		assert.Equal(t, entity.ChannelWeChat, s.tester.last.Type())
		configs, _ := s.repo.List(context.Background())
		assert.Empty(t, configs, "test never stores the config")
	})

	t.Run("TC-2: unknown type is reported in the body", func(t *testing.T) {
		s := newServer(t)
		rr := s.do(http.MethodPost, "/notify/test", `{"name":"draft","type":"sms"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var got notify.TestResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.False(t, got.Success)
		assert.Contains(t, got.Message, "type")
		assert.Nil(t, s.tester.last)
	})
}

// secretRecorder keeps the DingTalk secret each test delivery was signed with.
type secretRecorder struct {
	mu      sync.Mutex
	secrets []string
}

func (r *secretRecorder) Type() entity.ChannelType { return entity.ChannelDingTalk }

func (r *secretRecorder) Deliver(_ context.Context, _ *entity.Message, cfg *entity.ChannelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets = append(r.secrets, cfg.Settings.(*entity.DingTalkSettings).Secret)
	return nil
}

func TestTestHandler_ListedConfigRoundTrip(t *testing.T) {
	repo := memory.NewChannelRepo()
	configs := &channel.Service{Repo: repo}
	adapter := &secretRecorder{}
	s := &server{mux: http.NewServeMux(), repo: repo}
	notify.Register(s.mux, notify.Deps{
		Configs:     configs,
		Dispatcher:  &stubDispatcher{},
		Tester:      notifyUC.NewTester(notifyUC.NewRegistry(adapter), configs.Validate, time.Second, notifyUC.WithStoredConfigs(configs)),
		History:     history.NewRecorder(memory.NewHistoryRepo()),
		Paging:      pagination.DefaultConfig(),
		SendTimeout: 5 * time.Second,
	})

	rr := s.do(http.MethodPost, "/notify/configs", dingtalkBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/notify/configs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []notify.ConfigDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, entity.MaskedValue, listed[0].DingTalkSecret)

	// 一覧で返った設定をそのままテストに回す
	item, err := json.Marshal(listed[0])
	require.NoError(t, err)
	rr = s.do(http.MethodPost, "/notify/test", string(item))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"test notification sent"}`, rr.Body.String())

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.Equal(t, []string{"SECabc"}, adapter.secrets)
}

func TestSendHandler_Success(t *testing.T) {
	s := newServer(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.dispatcher.report = &notifyUC.DispatchReport{Results: []entity.DeliveryResult{
		entity.NewSuccess(entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk}, 1, now),
		entity.NewFailure(entity.ChannelKey{Name: "mail", Type: entity.ChannelEmail}, "dial tcp: connection refused", 3, now),
	}}

	rr := s.do(http.MethodPost, "/notify/send", `{"level":"WARNING","title":"Disk","content":"90%","source":"monitor"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got notify.SendResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, s.dispatcher.lastMsg.ID, got.MessageID)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Channels, 2)
	assert.Equal(t, "failed", got.Channels[1].Status)
	assert.Equal(t, 3, got.Channels[1].Attempts)

	assert.Equal(t, "warning", s.dispatcher.lastMsg.Level)
	assert.True(t, s.dispatcher.hasDL, "dispatch is bounded by the send timeout")
}

func TestSendHandler_DetachesFromClientCancellation(t *testing.T) {
	s := newServer(t)
	s.dispatcher.report = &notifyUC.DispatchReport{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/notify/send", strings.NewReader(`{"title":"t"}`)).WithContext(ctx)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, s.dispatcher.ctxErr)
}

func TestSendHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		report   bool
		wantCode int
		wantKind string
		wantText string
	}{
		{
			name:     "TC-1: invalid message",
			err:      fmt.Errorf("%w: %w", notifyUC.ErrInvalidMessage, &entity.ValidationError{Field: "title", Message: "title or content is required"}),
			wantCode: http.StatusBadRequest,
			wantKind: respond.KindInvalidRequest,
			wantText: "title or content is required",
		},
		{
			name:     "TC-2: history write failure",
			err:      fmt.Errorf("%w: pq: password authentication failed for user=admin password=hunter2", notifyUC.ErrHistoryWrite),
			report:   true,
			wantCode: http.StatusInternalServerError,
			wantKind: respond.KindInternal,
			wantText: "internal server error",
		},
		{
			name:     "TC-3: store unreachable",
			err:      errors.New("snapshot channel configs: connection refused"),
			wantCode: http.StatusInternalServerError,
			wantKind: respond.KindInternal,
			wantText: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			s.dispatcher.err = tt.err
			if tt.report {
				s.dispatcher.report = &notifyUC.DispatchReport{}
			}

			rr := s.do(http.MethodPost, "/notify/send", `{"title":"t"}`)
			require.Equal(t, tt.wantCode, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Contains(t, body.Error, tt.wantText)
			assert.NotContains(t, rr.Body.String(), "hunter2")
		})
	}
}

/* ───────── History / Health ───────── */

func TestHistoryHandler(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := entity.NewMessage("info", "first", "", "test")
	second := entity.NewMessage("critical", "second", "", "test")
	require.NoError(t, s.recorder.Append(ctx, first, entity.NewSuccess(entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk}, 1, now)))
	require.NoError(t, s.recorder.Append(ctx, second, entity.NewFailure(entity.ChannelKey{Name: "hook", Type: entity.ChannelWebhook}, "unexpected status 500", 3, now.Add(time.Second))))

	rr := s.do(http.MethodGet, "/notify/history?page=1&limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2", rr.Header().Get("X-Total-Count"))
	assert.Equal(t, "2", rr.Header().Get("X-Total-Pages"))

	var got []notify.HistoryDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Message.Title, "newest first")
	assert.Equal(t, "hook", got[0].Name)
	assert.Equal(t, "webhook", got[0].Type)
	assert.Equal(t, "failed", got[0].Status)
	assert.Equal(t, "unexpected status 500", got[0].Error)

	rr = s.do(http.MethodGet, "/notify/history?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, respond.KindInvalidRequest, decodeError(t, rr).Kind)
}

func TestHistoryHandler_PageOutOfRange(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.recorder.Append(context.Background(), entity.NewMessage("info", "only", "", "test"),
		entity.NewSuccess(entity.ChannelKey{Name: "ops", Type: entity.ChannelDingTalk}, 1, time.Now())))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{"TC-1: offset would overflow", "page=9223372036854775807&limit=50", http.StatusBadRequest, 0},
		{"TC-2: largest valid page", fmt.Sprintf("page=%d&limit=50", pagination.MaxPage(50)), http.StatusOK, 0},
		{"TC-3: past the last page", "page=3&limit=50", http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(http.MethodGet, "/notify/history?"+tt.query, "")
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, respond.KindInvalidRequest, decodeError(t, rr).Kind)
				return
			}
			var got []notify.HistoryDTO
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	s := newServer(t)
	s.dispatcher.health = []notifyUC.ChannelHealthStatus{
		{Name: "ops", Type: entity.ChannelDingTalk, Enabled: true, State: "open", CircuitBreakerOpen: true, ConsecutiveFailures: 5},
	}

	rr := s.do(http.MethodGet, "/notify/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"ops","type":"dingtalk","enabled":true,"state":"open","circuit_breaker_open":true,"consecutive_failures":5}]`, rr.Body.String())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	s := newServer(t)
	rr := s.do(http.MethodPatch, "/notify/configs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
