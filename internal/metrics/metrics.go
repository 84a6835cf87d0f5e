// Package metrics 提供Prometheus文本格式的进程内指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/engine"
)

// 指标名称
const (
	HTTPRequestsTotal     = "nurseshift_http_requests_total"
	HTTPRequestDuration   = "nurseshift_http_request_duration_seconds"
	GenerationTotal       = "nurseshift_generation_total"
	GenerationDuration    = "nurseshift_generation_duration_seconds"
	AssignmentsInserted   = "nurseshift_assignments_inserted_total"
	ShortfallSlots        = "nurseshift_shortfall_slots"
	EligibilityRejections = "nurseshift_eligibility_rejections_total"
	DBConnections         = "nurseshift_db_connections"
)

// Registry 指标注册表
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *Registry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	once.Do(func() {
		registry = NewRegistry()
		registerDefaults(registry)
	})
	return registry
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func registerDefaults(r *Registry) {
	r.NewCounter(HTTPRequestsTotal, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(HTTPRequestDuration, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})

	r.NewCounter(GenerationTotal, "自动排班运行次数", []string{"strategy", "status"})
	r.NewHistogram(GenerationDuration, "自动排班耗时",
		[]string{"strategy"},
		[]float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120})
	r.NewCounter(AssignmentsInserted, "自动排班写入的排班数", []string{"strategy"})
	r.NewGauge(ShortfallSlots, "最近一次运行的人手缺口", []string{"strategy"})

	r.NewCounter(EligibilityRejections, "资格检查拒绝次数", []string{"reason"})
	r.NewGauge(DBConnections, "数据库连接数", []string{"state"})
}

// NewCounter 创建计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.counters[name] = c
	return c
}

// NewGauge 创建仪表盘
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.gauges[name] = g
	return g
}

// NewHistogram 创建直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = h
	return h
}

// GetCounter 获取计数器
func (r *Registry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *Registry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *Registry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 读取当前值
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Value 读取当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}
	// 按桶计数，输出时累加
	placed := false
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[key][len(h.Buckets)]++
	}
	h.sums[key] += value
}

// Count 观测次数
func (h *Histogram) Count(labelValues ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, n := range h.counts[labelKey(labelValues)] {
		total += n
	}
	return total
}

// 标签值中不会出现 \x1f
const labelSep = "\x1f"

func labelKey(labels []string) string {
	return strings.Join(labels, labelSep)
}

func splitLabelKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, labelSep)
}

func formatLabels(names []string, key string) string {
	vals := splitLabelKey(key)
	parts := make([]string, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts[i] = fmt.Sprintf("%s=%q", name, val)
	}
	return strings.Join(parts, ",")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSample(w io.Writer, name string, labels []string, key string, value string) {
	if key == "" && len(labels) == 0 {
		fmt.Fprintf(w, "%s %s\n", name, value)
		return
	}
	fmt.Fprintf(w, "%s{%s} %s\n", name, formatLabels(labels, key), value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTo 按名称顺序输出 Prometheus 文本格式
func (r *Registry) WriteTo(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.Name, c.Help, c.Name)
		c.mu.RLock()
		for _, key := range sortedKeys(c.values) {
			writeSample(w, c.Name, c.Labels, key, formatFloat(c.values[key]))
		}
		c.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.Name, g.Help, g.Name)
		g.mu.RLock()
		for _, key := range sortedKeys(g.values) {
			writeSample(w, g.Name, g.Labels, key, formatFloat(g.values[key]))
		}
		g.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
		h.mu.RLock()
		for _, key := range sortedKeys(h.counts) {
			counts := h.counts[key]
			labels := formatLabels(h.Labels, key)
			prefix := ""
			if labels != "" {
				prefix = labels + ","
			}
			cumulative := 0
			for i, bucket := range h.Buckets {
				cumulative += counts[i]
				fmt.Fprintf(w, "%s_bucket{%sle=\"%s\"} %d\n", h.Name, prefix, formatFloat(bucket), cumulative)
			}
			cumulative += counts[len(h.Buckets)]
			fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", h.Name, prefix, cumulative)
			writeSample(w, h.Name+"_sum", h.Labels, key, formatFloat(h.sums[key]))
			writeSample(w, h.Name+"_count", h.Labels, key, strconv.Itoa(cumulative))
		}
		h.mu.RUnlock()
	}
}

// Handler 返回指标输出处理器
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.Status(http.StatusOK)
		GetRegistry().WriteTo(c.Writer)
	}
}

// RecordRequest 记录请求指标，path 使用路由模板避免标签爆炸
func RecordRequest(method, path string, status int, duration time.Duration) {
	r := GetRegistry()
	r.GetCounter(HTTPRequestsTotal).Inc(method, path, strconv.Itoa(status))
	r.GetHistogram(HTTPRequestDuration).Observe(duration.Seconds(), method, path)
}

// RecordRejection 记录资格检查拒绝
func RecordRejection(reason constraint.Reason) {
	GetRegistry().GetCounter(EligibilityRejections).Inc(string(reason))
}

// SetDBConnections 记录连接池状态
func SetDBConnections(open, inUse, idle int) {
	g := GetRegistry().GetGauge(DBConnections)
	g.Set(float64(open), "open")
	g.Set(float64(inUse), "in_use")
	g.Set(float64(idle), "idle")
}

// GenerationObserver 把引擎运行结果写入指标
type GenerationObserver struct{}

var _ engine.Observer = GenerationObserver{}

// GenerationFinished 实现 engine.Observer
func (GenerationObserver) GenerationFinished(strategy scheduler.Strategy, result *engine.Result, err error) {
	r := GetRegistry()
	status := "success"
	if err != nil {
		status = "failure"
	}
	name := string(strategy)
	r.GetCounter(GenerationTotal).Inc(name, status)
	if result == nil {
		return
	}
	r.GetHistogram(GenerationDuration).Observe(result.Duration.Seconds(), name)
	r.GetCounter(AssignmentsInserted).Add(float64(result.Inserted), name)
	r.GetGauge(ShortfallSlots).Set(float64(missing(result.Shortfalls)), name)
}

func missing(list []model.Shortfall) int {
	total := 0
	for _, s := range list {
		total += s.Missing()
	}
	return total
}
