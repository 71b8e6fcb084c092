// Package notify serves the /notify/* REST surface used by the admin UI.
package notify

import (
	"net/http"
	"time"

	"notify-dispatch/internal/common/pagination"
)

// Deps bundles what the notify routes need.
type Deps struct {
	Configs     ConfigService
	Dispatcher  Dispatcher
	Tester      ConnectivityTester
	History     HistoryReader
	Paging      pagination.Config
	SendTimeout time.Duration
}

// Register registers all notify routes with the given mux.
func Register(mux *http.ServeMux, d Deps) {
	mux.Handle("GET    /notify/configs", ListConfigsHandler{d.Configs})
	mux.Handle("POST   /notify/configs", CreateConfigHandler{d.Configs})
	mux.Handle("PUT    /notify/configs", UpdateConfigHandler{d.Configs})
	mux.Handle("DELETE /notify/configs", DeleteConfigHandler{d.Configs})
	mux.Handle("POST   /notify/configs/enable", EnableConfigHandler{d.Configs})
	mux.Handle("GET    /notify/types", TypesHandler{d.Configs})

	mux.Handle("POST   /notify/test", TestHandler{d.Tester})
	mux.Handle("POST   /notify/send", SendHandler{Svc: d.Dispatcher, Timeout: d.SendTimeout})
	mux.Handle("GET    /notify/history", HistoryHandler{Svc: d.History, Paging: d.Paging})
	mux.Handle("GET    /notify/health", HealthHandler{d.Dispatcher})
}
