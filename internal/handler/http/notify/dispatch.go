package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/respond"
	notifyUC "notify-dispatch/internal/usecase/notify"
)

// Dispatcher is the dispatch engine as seen by the handlers.
type Dispatcher interface {
	Send(ctx context.Context, msg *entity.Message) (*notifyUC.DispatchReport, error)
	ChannelHealth(ctx context.Context) ([]notifyUC.ChannelHealthStatus, error)
}

// ConnectivityTester sends a synthetic message through an unsaved config.
type ConnectivityTester interface {
	Test(ctx context.Context, cfg *entity.ChannelConfig) (bool, string)
}

// HistoryReader serves stored delivery results newest-first.
type HistoryReader interface {
	List(ctx context.Context, page, limit int) ([]*entity.HistoryRecord, error)
	Count(ctx context.Context) (int64, error)
}

// TestHandler validates and test-sends a config without storing it.
// Validation and delivery failures are reported in the body with 200.
type TestHandler struct{ Tester ConnectivityTester }

func (h TestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var dto ConfigDTO
	if err := respond.DecodeJSON(r, &dto); err != nil {
		badRequest(w, err)
		return
	}
	cfg, err := fromDTO(dto)
	if err != nil {
		respond.JSON(w, http.StatusOK, TestResponse{Success: false, Message: validationText(err).Error()})
		return
	}
	ok, msg := h.Tester.Test(r.Context(), cfg)
	respond.JSON(w, http.StatusOK, TestResponse{Success: ok, Message: msg})
}

// SendHandler dispatches one message to every enabled channel. The dispatch
// outlives the client connection and is bounded by Timeout instead.
type SendHandler struct {
	Svc     Dispatcher
	Timeout time.Duration
}

func (h SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	msg := entity.NewMessage(req.Level, req.Title, req.Content, req.Source)

	ctx := context.WithoutCancel(r.Context())
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	report, err := h.Svc.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, notifyUC.ErrHistoryWrite) && report != nil {
			slog.ErrorContext(r.Context(), "dispatch finished but history is incomplete",
				slog.String("message_id", report.MessageID),
				slog.Int("succeeded", report.Succeeded()),
				slog.Int("failed", report.Failed()))
		}
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSendResponse(report))
}

// HistoryHandler serves one page of delivery history and reports the total
// record count in X-Total-Count and the page count in X-Total-Pages.
type HistoryHandler struct {
	Svc    HistoryReader
	Paging pagination.Config
}

func (h HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.Paging)
	if err != nil {
		pagination.RecordRequest(http.StatusBadRequest, 0)
		badRequest(w, err)
		return
	}

	records, err := h.Svc.List(r.Context(), params.Page, params.Limit)
	if err != nil {
		pagination.RecordRequest(http.StatusInternalServerError, params.Page)
		writeError(w, r, err)
		return
	}
	total, err := h.Svc.Count(r.Context())
	if err != nil {
		pagination.RecordRequest(http.StatusInternalServerError, params.Page)
		writeError(w, r, err)
		return
	}

	out := make([]HistoryDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toHistoryDTO(rec))
	}
	meta := pagination.NewMetadata(params, total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(meta.Total, 10))
	w.Header().Set("X-Total-Pages", strconv.Itoa(meta.TotalPages))
	pagination.RecordRequest(http.StatusOK, params.Page)
	respond.JSON(w, http.StatusOK, out)
}

// HealthHandler reports the circuit breaker state of every stored channel.
type HealthHandler struct{ Svc Dispatcher }

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Svc.ChannelHealth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]HealthDTO, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, toHealthDTO(s))
	}
	respond.JSON(w, http.StatusOK, out)
}
