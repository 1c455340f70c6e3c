// Package api serves pool status, digest requests and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"threadkit/internal/collect"
	"threadkit/internal/ctxchain"
	"threadkit/internal/digest"
	"threadkit/internal/events"
	"threadkit/internal/hashutil"
	"threadkit/internal/logger"
	"threadkit/internal/metrics"
	"threadkit/internal/worker"

	"golang.org/x/net/websocket"
)

// TraceHeader はリクエストのトレースIDを運ぶヘッダー
const TraceHeader = "X-Trace-Id"

// maxDigestInputs は 1 リクエストあたりの入力上限
const maxDigestInputs = 1000

// maxDigestBodyBytes は /api/digest のリクエストボディ上限
const maxDigestBodyBytes = 4 << 20

// Options はサーバーの依存関係
type Options struct {
	Pool              *worker.Pool
	Runner            *digest.Runner
	Metrics           *metrics.Metrics
	Collector         *metrics.Collector // nil なら /metrics を公開しない
	Events            *events.Bus        // nil ならイベントを配信しない
	BroadcastInterval time.Duration
}

// Server は API サーバー
type Server struct {
	addr string
	opts Options

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい API サーバーを作成する
func NewServer(addr string, opts Options) *Server {
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = time.Second
	}
	return &Server{
		addr:      addr,
		opts:      opts,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/metrics/reset", s.handleMetricsReset)
	mux.HandleFunc("/api/digest", s.handleDigest)
	mux.HandleFunc("/api/algorithms", s.handleAlgorithms)

	if s.opts.Collector != nil {
		mux.Handle("/metrics", s.opts.Collector.Handler())
	}

	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx が終わるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.broadcastLoop(ctx)
	if s.opts.Events != nil {
		go s.forwardEvents(ctx)
	}

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Pool          string `json:"pool"`
	Workers       int    `json:"workers"`
	AliveWorkers  int    `json:"alive_workers"`
	QueueSize     int    `json:"queue_size"`
	Algorithm     string `json:"algorithm"`
	DroppedEvents uint64 `json:"dropped_events"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{}
	if p := s.opts.Pool; p != nil {
		resp.Pool = p.Name()
		resp.Workers = p.NumWorkers()
		resp.AliveWorkers = p.AliveWorkers()
		resp.QueueSize = p.QueueSize()
	}
	if s.opts.Runner != nil {
		resp.Algorithm = s.opts.Runner.Algorithm()
	}
	if s.opts.Events != nil {
		resp.DroppedEvents = s.opts.Events.Dropped()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	SubmittedJobs uint64  `json:"submitted_jobs"`
	CompletedJobs uint64  `json:"completed_jobs"`
	FailedJobs    uint64  `json:"failed_jobs"`
	JobsPerSecond float64 `json:"jobs_per_second"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	FailureRate   float64 `json:"failure_rate"`
}

func (s *Server) metricsResponse() MetricsResponse {
	if s.opts.Metrics == nil {
		return MetricsResponse{}
	}
	snap := s.opts.Metrics.Snapshot()
	return MetricsResponse{
		SubmittedJobs: snap.SubmittedJobs,
		CompletedJobs: snap.CompletedJobs,
		FailedJobs:    snap.FailedJobs,
		JobsPerSecond: snap.OverallJobsPerSecond,
		AvgLatencyMs:  float64(snap.AverageLatency) / float64(time.Millisecond),
		P99LatencyMs:  float64(snap.P99Latency) / float64(time.Millisecond),
		FailureRate:   snap.FailureRate,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.metricsResponse())
}

// handleMetricsReset はウィンドウメトリクスをリセットする
// 累計カウンタと Prometheus の値は変わらない。
func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Metrics == nil {
		http.Error(w, "No metrics configured", http.StatusServiceUnavailable)
		return
	}
	s.opts.Metrics.Reset()
	s.writeJSON(w, s.metricsResponse())
}

// DigestRequest はハッシュ計算リクエスト
type DigestRequest struct {
	Inputs    []string `json:"inputs"`
	Algorithm string   `json:"algorithm,omitempty"`
}

// DigestResponse はハッシュ計算レスポンス
type DigestResponse struct {
	TraceID string          `json:"trace_id"`
	Results []digest.Result `json:"results"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Pool == nil {
		http.Error(w, "No pool configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDigestBodyBytes)

	var req DigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Request body too large (max %d bytes)", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "No inputs", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) > maxDigestInputs {
		http.Error(w, fmt.Sprintf("Too many inputs (max %d)", maxDigestInputs), http.StatusRequestEntityTooLarge)
		return
	}

	runner := s.opts.Runner
	if req.Algorithm != "" {
		if !hashutil.Supported(req.Algorithm) {
			http.Error(w, fmt.Sprintf("Unknown algorithm: %s", req.Algorithm), http.StatusBadRequest)
			return
		}
		runner = digest.New(s.opts.Pool, digest.Config{Algorithm: req.Algorithm}).WithEvents(s.opts.Events)
	}
	if runner == nil {
		runner = digest.New(s.opts.Pool, digest.DefaultConfig()).WithEvents(s.opts.Events)
	}

	chain := ctxchain.New()
	if id := r.Header.Get(TraceHeader); id != "" {
		chain = ctxchain.WithValue(chain, ctxchain.KeyTraceID, id)
	}
	chain = ctxchain.Wrap(chain)
	ctx := ctxchain.NewContext(r.Context(), chain)

	inputs := make([]digest.Input, len(req.Inputs))
	for i, in := range req.Inputs {
		inputs[i] = digest.Input{Name: fmt.Sprintf("input-%d", i), Data: []byte(in)}
	}

	results, err := runner.Run(ctx, inputs)
	switch {
	case errors.Is(err, worker.ErrPoolClosed):
		http.Error(w, "Pool is shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(TraceHeader, ctxchain.TraceID(chain))
	s.writeJSON(w, DigestResponse{TraceID: ctxchain.TraceID(chain), Results: results})
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, collect.SliceToSlice(hashutil.Algorithms(), algorithmInfo))
}

// AlgorithmInfo は利用可能なアルゴリズム
type AlgorithmInfo struct {
	Name      string `json:"name"`
	HexLength int    `json:"hex_length"`
}

func algorithmInfo(name string) (AlgorithmInfo, bool) {
	n, err := hashutil.Size(name)
	if err != nil {
		return AlgorithmInfo{}, false
	}
	return AlgorithmInfo{Name: name, HexLength: n}, true
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中の WebSocket クライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data interface{}) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(map[string]interface{}{
				"type":    "status",
				"status":  s.status(),
				"metrics": s.metricsResponse(),
			})
		}
	}
}

// forwardEvents はプールのイベントを WebSocket クライアントへ流す
func (s *Server) forwardEvents(ctx context.Context) {
	sub := s.opts.Events.Subscribe()
	defer s.opts.Events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(map[string]interface{}{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
