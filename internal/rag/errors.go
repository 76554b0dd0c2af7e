package rag

import (
	"errors"

	"docqa/internal/rag/parsers"
)

// 检索子系统的错误分类。调用方用 errors.Is 判断类别，
// 具体上下文通过 fmt.Errorf("...: %w", Err...) 包装附加。
var (
	// ErrUnsupportedFormat 文件扩展名不受支持，在任何解析工作开始前返回。
	// 定义在 parsers 包中，这里重新导出方便调用方统一匹配。
	ErrUnsupportedFormat = parsers.ErrUnsupportedFormat

	// ErrExtractionFailure 文件内容损坏或无法解析，仅影响该文件，不中断批量上传
	ErrExtractionFailure = errors.New("文本提取失败")

	// ErrModelUnavailable 嵌入或生成后端不可达，当前操作失败但进程继续运行
	ErrModelUnavailable = errors.New("模型服务不可用")

	// ErrDimensionMismatch 向量维度与存储已建立的维度不一致，
	// 说明存储生命周期内嵌入模型配置发生了漂移
	ErrDimensionMismatch = errors.New("向量维度不匹配")

	// ErrStoreCorruption 持久化文件无法读取。加载时自动重置为空存储并告警，
	// 不作为硬失败向上传播
	ErrStoreCorruption = errors.New("向量存储文件损坏")
)
