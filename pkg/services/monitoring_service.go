package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxLogEntries を超えた古いログは捨てます
const maxLogEntries = 5000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// BackendCall はバックエンドAPIへの1回の呼び出しです。StatusCode 0 はネットワークエラーを表します。
type BackendCall struct {
	Timestamp  time.Time     `json:"timestamp"`
	Route      string        `json:"route"`
	StatusCode int           `json:"statusCode"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      string        `json:"error,omitempty"`
}

// MonitoringService はパネル自身のリクエストとバックエンド呼び出しを記録します。
type MonitoringService struct {
	logs     []LogEntry
	backend  []BackendCall
	mu       sync.RWMutex
	location *time.Location
	now      func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	// ストアはブラジルのタイムゾーンで集計する
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &MonitoringService{
		logs:     make([]LogEntry, 0),
		backend:  make([]BackendCall, 0),
		location: loc,
		now:      time.Now,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}
}

// RecordBackendCall は backend.Observer として登録して使います。
func (s *MonitoringService) RecordBackendCall(method, path string, status int, elapsed time.Duration, err error) {
	call := BackendCall{
		Timestamp:  s.now(),
		Route:      method + " " + path,
		StatusCode: status,
		Elapsed:    elapsed,
	}
	if err != nil {
		call.Error = err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = append(s.backend, call)
	if len(s.backend) > maxLogEntries {
		s.backend = s.backend[len(s.backend)-maxLogEntries:]
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// 運用系のパスと静的ファイルは記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") ||
			strings.HasPrefix(path, "/static") || path == "/health" {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = path
		}
		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         route,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// BackendStat はバックエンドのルートごとの集計です。
type BackendStat struct {
	Route         string `json:"route"`
	Calls         int    `json:"calls"`
	Failures      int    `json:"failures"`
	AvgResponseMs int64  `json:"avgResponseMs"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
	Backend          []BackendStat            `json:"backend"`
	BackendFailures  []BackendCall            `json:"backendFailures"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now().In(s.location)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filteredLogs := make([]LogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filteredLogs = append(filteredLogs, entry)
		}
	}

	// 時間のバケットを過去から現在の順に初期化する
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[string]int, periodHours)
	for i := 0; i < periodHours; i++ {
		targetTime := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		bucketKey := targetTime.Truncate(time.Hour).Format(time.RFC3339)
		bucketIndex[bucketKey] = i
		requestsOverTime[i] = map[string]interface{}{"time": targetTime.Format("15:00"), "requests": 0}
	}
	for _, entry := range filteredLogs {
		bucketKey := entry.Timestamp.In(s.location).Truncate(time.Hour).Format(time.RFC3339)
		if i, ok := bucketIndex[bucketKey]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}
	}

	endpoints := make(map[string]int)
	for _, entry := range filteredLogs {
		endpoints[entry.Method+" "+entry.Path]++
	}

	statusNames := []string{"2xx Success", "3xx Redirect", "4xx Client Error", "5xx Server Error"}
	statusCounts := make(map[string]int, len(statusNames))
	for _, entry := range filteredLogs {
		switch {
		case entry.StatusCode >= 500:
			statusCounts[statusNames[3]]++
		case entry.StatusCode >= 400:
			statusCounts[statusNames[2]]++
		case entry.StatusCode >= 300:
			statusCounts[statusNames[1]]++
		case entry.StatusCode >= 200:
			statusCounts[statusNames[0]]++
		}
	}
	statusCodes := make([]map[string]interface{}, 0, len(statusNames))
	for _, name := range statusNames {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusCounts[name]})
	}

	responseTimeSum := make(map[string]time.Duration)
	responseCount := make(map[string]int)
	for _, entry := range filteredLogs {
		responseTimeSum[entry.Path] += entry.ResponseTime
		responseCount[entry.Path]++
	}
	paths := make([]string, 0, len(responseTimeSum))
	for path := range responseTimeSum {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, path := range paths {
		avg := responseTimeSum[path].Milliseconds() / int64(responseCount[path])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": path, "responseTime": avg})
	}

	recentErrors := make([]LogEntry, 0)
	for i := len(filteredLogs) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filteredLogs[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filteredLogs[i])
		}
	}

	backendStats, backendFailures := s.aggregateBackend(since)

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		Backend:          backendStats,
		BackendFailures:  backendFailures,
	}
}

// BackendHealth はバックエンド呼び出しだけの集計です。
type BackendHealth struct {
	PeriodHours int           `json:"periodHours"`
	Calls       int           `json:"calls"`
	Failures    int           `json:"failures"`
	Routes      []BackendStat `json:"routes"`
	Recent      []BackendCall `json:"recentFailures"`
}

// GetBackendHealth は指定された期間のバックエンド呼び出しをルートごとに集計します。
func (s *MonitoringService) GetBackendHealth(periodHours int) BackendHealth {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().In(s.location).Add(-time.Duration(periodHours) * time.Hour)
	routes, failures := s.aggregateBackend(since)
	health := BackendHealth{PeriodHours: periodHours, Routes: routes, Recent: failures}
	for _, r := range routes {
		health.Calls += r.Calls
		health.Failures += r.Failures
	}
	return health
}

// aggregateBackend は呼び出し元で読み取りロックを取っている前提です。
func (s *MonitoringService) aggregateBackend(since time.Time) ([]BackendStat, []BackendCall) {
	byRoute := make(map[string]*BackendStat)
	totals := make(map[string]time.Duration)
	failures := make([]BackendCall, 0)

	for i := len(s.backend) - 1; i >= 0; i-- {
		call := s.backend[i]
		if !call.Timestamp.After(since) {
			continue
		}
		stat, ok := byRoute[call.Route]
		if !ok {
			stat = &BackendStat{Route: call.Route}
			byRoute[call.Route] = stat
		}
		stat.Calls++
		totals[call.Route] += call.Elapsed
		failed := call.Error != "" || call.StatusCode >= 400 || call.StatusCode == 0
		if failed {
			stat.Failures++
			if len(failures) < 10 {
				failures = append(failures, call)
			}
		}
	}

	stats := make([]BackendStat, 0, len(byRoute))
	for route, stat := range byRoute {
		stat.AvgResponseMs = totals[route].Milliseconds() / int64(stat.Calls)
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Route < stats[j].Route })
	return stats, failures
}
