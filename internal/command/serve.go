package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"mpdcore/internal/entity"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/util"
)

const shutdownTimeout = 10 * time.Second

// minRefreshInterval keeps a zero or tiny lifetime from spinning the refresh loop
const minRefreshInterval = time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <url|file>",
		Short: "以HTTP服务提供解析后的MPD, 动态MPD按lifetime自动刷新",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := optionFromFlags(cmd, args)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), opt)
		},
	}
	cmd.Flags().String("addr", ":8080", "监听地址, 也可通过 MPD_SERVE_ADDR 设置")
	return cmd
}

// ManifestHandler serves one manifest, kept fresh by Run
type ManifestHandler struct {
	// mu guards manifest. Segment queries take the write lock, timeline
	// indexes drop expired segments while answering.
	mu        sync.RWMutex
	manifest  *entity.Manifest
	extractor *parser.StreamExtractor
	metrics   *metrics.Metrics
	clock     bounds.Clock
}

// NewManifestHandler 创建清单服务
func NewManifestHandler(extractor *parser.StreamExtractor, met *metrics.Metrics) *ManifestHandler {
	return &ManifestHandler{extractor: extractor, metrics: met, clock: bounds.DefaultClock}
}

// Load 首次加载清单
func (h *ManifestHandler) Load(ctx context.Context, url string) error {
	result, err := h.extractor.ExtractManifest(ctx, url)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		util.Logger.Warn("%s", w.Error())
	}
	h.mu.Lock()
	h.manifest = result.Manifest
	h.mu.Unlock()
	return nil
}

// Refresh fetches the manifest again and merges it. The fetch runs
// without holding the lock.
func (h *ManifestHandler) Refresh(ctx context.Context) error {
	h.mu.RLock()
	if h.manifest == nil || len(h.manifest.URIs) == 0 {
		h.mu.RUnlock()
		return errors.New("manifest has no URL to refresh from")
	}
	url := h.manifest.URIs[0]
	h.mu.RUnlock()

	result, err := h.extractor.ExtractManifest(ctx, url)
	if err != nil {
		return err
	}
	h.mu.Lock()
	parser.MergeManifest(h.manifest, result.Manifest)
	h.mu.Unlock()
	util.Logger.Debug("清单已刷新: %s", url)
	return nil
}

// nextRefresh returns how long to wait before refreshing, false when the
// manifest never needs it
func (h *ManifestHandler) nextRefresh() (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.manifest == nil || !h.manifest.IsDynamic || h.manifest.Lifetime == nil {
		return 0, false
	}
	d := time.Duration(*h.manifest.Lifetime * float64(time.Second))
	return max(d, minRefreshInterval), true
}

// Run refreshes dynamic manifests every lifetime until ctx is done
func (h *ManifestHandler) Run(ctx context.Context) {
	for {
		wait, ok := h.nextRefresh()
		if !ok {
			util.Logger.Info("清单无需刷新")
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := h.Refresh(ctx); err != nil {
			util.Logger.Error("刷新清单失败: %s", err.Error())
		}
	}
}

// Routes 注册HTTP路由
func (h *ManifestHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(metrics.RequestMiddleware(h.metrics))
	if h.metrics != nil {
		r.Get("/metrics", h.metrics.Handler().ServeHTTP)
	}
	r.Get("/manifest", h.GetManifest)
	r.Get("/representations/{representation_id}/segments", h.GetSegments)
	return r
}

// GetManifest handles GET /manifest
func (h *ManifestHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	var buf bytes.Buffer
	var err error
	if h.manifest != nil {
		err = json.NewEncoder(&buf).Encode(h.manifest)
	}
	loaded := h.manifest != nil
	h.mu.RUnlock()

	if !loaded {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		util.Logger.Error("序列化清单失败: %s", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

// GetSegments handles GET /representations/{representation_id}/segments?from=&duration=.
// The window defaults to the reachable content.
func (h *ManifestHandler) GetSegments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "representation_id")
	query := r.URL.Query()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manifest == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	period, adaptation, rep := h.manifest.FindRepresentation(id)
	if rep == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	window := manifestWindow(h.manifest, h.clock.NowMs())
	if s := query.Get("from"); s != "" {
		from, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(from) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		window.Duration = math.Max(window.From+window.Duration-from, 0)
		window.From = from
	}
	if s := query.Get("duration"); s != "" {
		duration, err := strconv.ParseFloat(s, 64)
		if err != nil || duration < 0 || math.IsNaN(duration) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		window.Duration = duration
	}

	choice := util.RepresentationChoice{PeriodID: period.ID, Adaptation: adaptation, Representation: rep}
	listing := listSegments(h.manifest, []util.RepresentationChoice{choice}, window)[0]
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listing); err != nil {
		util.Logger.Error("写入响应失败: %s", err.Error())
	}
}

// requestLogger logs every request at debug level
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		util.Logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func runServe(ctx context.Context, opt *MyOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	met := metrics.New()
	h := NewManifestHandler(newExtractor(opt, met), met)
	if err := h.Load(ctx, opt.Input); err != nil {
		return err
	}
	go h.Run(ctx)

	srv := &http.Server{Addr: opt.Addr, Handler: h.Routes()}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	util.Logger.Info("服务已启动: %s", opt.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	util.Logger.Info("正在关闭服务")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	util.Logger.Info("服务已停止")
	return nil
}
