package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"pump-desk/internal/desk"
	"pump-desk/internal/executor"
	"pump-desk/internal/mascot"
	"pump-desk/internal/model"
	"pump-desk/internal/render"
	"pump-desk/pkg/ta"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed web
var webFS embed.FS

// Registry 服务端需要的币种操作 (由 desk.Desk 实现)
type Registry interface {
	Get(name string) (*model.Instrument, error)
	List() []*model.Instrument
	Remove(name string) error
	Attach(name string, s render.Surface) error
	Detach(name, surfaceID string)
}

// Server HTTP + websocket 入口
type Server struct {
	addr      string
	registry  Registry
	executor  executor.Executor
	mascotCfg mascot.Config
	logger    *zap.Logger

	router   *mux.Router
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// InstrumentView GET /api/instruments 的返回项
type InstrumentView struct {
	Name  string  `json:"name"`
	Icon  string  `json:"icon"`
	Price float64 `json:"price"`
}

// NewServer 注册所有路由
func NewServer(addr string, registry Registry, exec executor.Executor, mascotCfg mascot.Config, logger *zap.Logger) *Server {
	s := &Server{
		addr:      addr,
		registry:  registry,
		executor:  exec,
		mascotCfg: mascotCfg,
		logger:    logger,
		router:    mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		baseCtx: context.Background(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/instruments", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{name}/series", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{name}/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{name}/{action:pump|dump}", s.handleAction).Methods(http.MethodPost)
	api.HandleFunc("/instruments/{name}", s.handleRemove).Methods(http.MethodDelete)
	api.HandleFunc("/actions", s.handleActions).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWS)

	static, _ := fs.Sub(webFS, "web")
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(static)))
}

// Handler 返回路由，供测试和自定义 http.Server 使用
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ctx() context.Context { return s.baseCtx }

// Run 启动监听，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("Addr", s.addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list := s.registry.List()
	out := make([]InstrumentView, 0, len(list))
	for _, inst := range list {
		out = append(out, InstrumentView{Name: inst.Name, Icon: inst.Icon, Price: inst.Price()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	inst, err := s.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst.Series())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	inst, err := s.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := ta.Summarize(inst.Closes())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := model.ParseActionType(vars["action"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec, err := s.executor.Execute(r.Context(), model.Action{Instrument: vars["name"], Type: kind})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.executor.History())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	newSession(conn, s).run()
}

// writeError 把领域错误映射为 HTTP 状态码
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, desk.ErrUnknownInstrument):
		status = http.StatusNotFound
	case errors.Is(err, ta.ErrHistoryTooShort):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
