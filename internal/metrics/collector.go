package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 系统指标采样间隔
const collectInterval = 15 * time.Second

// Go 运行时指标
var (
	goMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_go_memory_usage_bytes",
		Help: "当前 Go 内存使用量",
	})
	goMemoryTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_go_memory_total_bytes",
		Help: "累计 Go 内存分配量",
	})
	goMemorySys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_go_memory_sys_bytes",
		Help: "Go 从系统获取的内存",
	})
	goGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_go_goroutines",
		Help: "当前 Goroutine 数量",
	})
	goGCCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_go_gc_count",
		Help: "GC 执行总次数",
	})
)

// SystemCollector 周期性采集运行时与向量库规模指标
type SystemCollector struct {
	storeStats func() int
}

// NewSystemCollector 创建系统指标收集器并启动后台采样
// storeStats 返回向量库当前文本块数量,允许为 nil
func NewSystemCollector(storeStats func() int) *SystemCollector {
	c := &SystemCollector{storeStats: storeStats}
	go c.run()
	return c
}

func (c *SystemCollector) run() {
	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.sample()
	}
}

// sample 采集一轮指标
func (c *SystemCollector) sample() {
	if c.storeStats != nil {
		StoreChunks.Set(float64(c.storeStats()))
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goMemoryUsage.Set(float64(m.Alloc))
	goMemoryTotal.Set(float64(m.TotalAlloc))
	goMemorySys.Set(float64(m.Sys))
	goGoroutines.Set(float64(runtime.NumGoroutine()))
	goGCCount.Set(float64(m.NumGC))
}

// outcome 把错误折叠成指标的 status 标签
func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

// RecordSearch 包装一次向量检索并记录耗时、结果数和结果状态
// stage 区分严格阈值检索与放宽阈值重试
func RecordSearch(stage string, fn func() (int, error)) (int, error) {
	start := time.Now()
	resultCount, err := fn()

	SearchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if resultCount > 0 {
		SearchResults.WithLabelValues(stage).Observe(float64(resultCount))
	}
	SearchesTotal.WithLabelValues(stage, outcome(err)).Inc()
	return resultCount, err
}

// RecordDocumentIngest 包装单个文档入库并记录耗时与产出块数
// fn 返回该文档产生的文本块数量
func RecordDocumentIngest(format string, fn func() (int, error)) (int, error) {
	start := time.Now()
	chunkCount, err := fn()

	DocumentIngestDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	if chunkCount > 0 {
		ChunksCreatedTotal.Add(float64(chunkCount))
	}
	DocumentsIngestedTotal.WithLabelValues(format, outcome(err)).Inc()
	return chunkCount, err
}

// RecordModelCall 包装一次模型调用并记录耗时与 Token 用量
func RecordModelCall(provider, model string, fn func() (int, int, error)) error {
	start := time.Now()
	promptTokens, completionTokens, err := fn()

	ModelCallDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
	if promptTokens > 0 {
		ModelCallTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		ModelCallTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	ModelCallsTotal.WithLabelValues(provider, model, outcome(err)).Inc()
	return err
}

// RecordWebSearch 记录一次网络搜索补充的结果状态
func RecordWebSearch(ok bool) {
	if ok {
		WebSearchesTotal.WithLabelValues("success").Inc()
		return
	}
	WebSearchesTotal.WithLabelValues("failed").Inc()
}
