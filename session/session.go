// Package session 管理查询会话状态：工具调用彼此独立，分页上下文靠
// 会话对象在调用之间保持。
package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storkagent/market"
	"storkagent/screen"
)

// DefaultID 未显式指定会话时使用的共享会话
const DefaultID = "default"

// DefaultPageSize 默认每页数量
const DefaultPageSize = 50

// DefaultTimeout 会话空闲超时
const DefaultTimeout = 30 * time.Minute

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storkagent_active_sessions",
	Help: "Number of live query sessions.",
})

// PageInfo 分页状态快照
type PageInfo struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	PageSize    int  `json:"page_size"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// Session 单个会话的分页状态。data 为 nil 表示尚无查询，区别于
// 查询过但结果为空（非 nil 空切片）。
type Session struct {
	mu           sync.Mutex
	query        string
	data         []market.StockBrief
	criteria     *screen.Criteria
	pageSize     int
	currentPage  int
	totalPages   int
	totalCount   int
	lastActivity time.Time
	timeout      time.Duration
}

func newSession(timeout time.Duration) *Session {
	return &Session{
		pageSize:     DefaultPageSize,
		currentPage:  1,
		totalPages:   1,
		lastActivity: time.Now(),
		timeout:      timeout,
	}
}

func (s *Session) expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity) > s.timeout
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// SetQuery installs a new result set and resets pagination to page 1.
func (s *Session) SetQuery(query string, data []market.StockBrief, criteria *screen.Criteria, pageSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = []market.StockBrief{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s.query = query
	s.data = data
	s.criteria = criteria
	s.totalCount = len(data)
	s.pageSize = pageSize
	s.totalPages = (s.totalCount + pageSize - 1) / pageSize
	if s.totalPages < 1 {
		s.totalPages = 1
	}
	s.currentPage = 1
	s.touch()
}

// HasQuery reports whether any query has been set on this session.
func (s *Session) HasQuery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

// Query returns the label of the current query ("screen", "search", ...).
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Criteria returns the criteria that produced the current result set, if
// any. Used for export naming only.
func (s *Session) Criteria() *screen.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Data returns the complete materialized result set.
func (s *Session) Data() []market.StockBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *Session) pageLocked() []market.StockBrief {
	if s.data == nil {
		return []market.StockBrief{}
	}
	start := (s.currentPage - 1) * s.pageSize
	if start >= len(s.data) {
		return []market.StockBrief{}
	}
	end := start + s.pageSize
	if end > len(s.data) {
		end = len(s.data)
	}
	return s.data[start:end]
}

// CurrentPage returns the records on the current page.
func (s *Session) CurrentPage() []market.StockBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked()
}

// NextPage advances one page unless already on the last page, then returns
// the (possibly unchanged) current page.
func (s *Session) NextPage() []market.StockBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPage < s.totalPages {
		s.currentPage++
	}
	s.touch()
	return s.pageLocked()
}

// PrevPage retreats one page unless already on the first page.
func (s *Session) PrevPage() []market.StockBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPage > 1 {
		s.currentPage--
	}
	s.touch()
	return s.pageLocked()
}

// GotoPage jumps to page n when 1 <= n <= totalPages, otherwise keeps the
// current page.
func (s *Session) GotoPage(n int) []market.StockBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= 1 && n <= s.totalPages {
		s.currentPage = n
	}
	s.touch()
	return s.pageLocked()
}

// PageInfo returns the pagination snapshot without mutating anything.
func (s *Session) PageInfo() PageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PageInfo{
		CurrentPage: s.currentPage,
		TotalPages:  s.totalPages,
		TotalCount:  s.totalCount,
		PageSize:    s.pageSize,
		HasNext:     s.currentPage < s.totalPages,
		HasPrev:     s.currentPage > 1,
	}
}

// Manager 会话注册表，按 id 惰性创建，空闲超时后替换为新会话
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	log      *zap.Logger
}

func NewManager(timeout time.Duration, log *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		log:      log,
	}
}

// GetOrCreate returns the live session for id. An expired session is
// transparently replaced with a fresh empty one.
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		id = DefaultID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = newSession(m.timeout)
		m.sessions[id] = s
		activeSessions.Set(float64(len(m.sessions)))
		return s
	}
	if s.expired() {
		m.log.Debug("会话已过期，重建", zap.String("session", id))
		s = newSession(m.timeout)
		m.sessions[id] = s
		return s
	}

	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	return s
}

// Clear removes all state for id.
func (m *Manager) Clear(id string) {
	if id == "" {
		id = DefaultID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	activeSessions.Set(float64(len(m.sessions)))
}

// CleanupExpired drops every idle-expired session and returns how many
// were removed.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.expired() {
			delete(m.sessions, id)
			removed++
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
