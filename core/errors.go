package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），包括经过 fmt.Errorf("%w") 包装后的错误
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED, UNAVAILABLE
//   - Rater 错误：NOT_RECOMMENDABLE
//   - Engine 错误：UNDEFINED（相似度分母为 0）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_RECOMMENDABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "rater", "engine"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 按 Module + Code 比较，使 errors.Is(WrapDomainError(...), ErrXXX) 成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 以 base 的 Module/Code 包装一个底层错误。
func WrapDomainError(base *DomainError, cause error) *DomainError {
	return &DomainError{
		Module:  base.Module,
		Code:    base.Code,
		Message: base.Message,
		Err:     cause,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	ErrorCodeNotRecommendable = "NOT_RECOMMENDABLE" // 物品类别未注册
	ErrorCodeUndefined        = "UNDEFINED"         // 计算结果无定义
)

// 模块名称常量
const (
	ModuleStore  = "store"  // 存储模块
	ModuleRater  = "rater"  // 交互模块
	ModuleEngine = "engine" // 计算模块
	ModuleConfig = "config" // 配置模块
	ModuleWorker = "worker" // 批处理模块
)

var (
	// ErrNotRecommendable 表示交互目标的类别从未注册，属于调用方错误，不应重试
	ErrNotRecommendable = NewDomainError(ModuleRater, ErrorCodeNotRecommendable, "rater: category is not recommendable")

	// ErrUndefinedSimilarity 表示用户没有任何评分，相似度无定义，调用方必须跳过且不得写入
	ErrUndefinedSimilarity = NewDomainError(ModuleEngine, ErrorCodeUndefined, "engine: similarity is undefined")

	// ErrInvalidConfig 表示配置无效
	ErrInvalidConfig = NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: invalid configuration")
)

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsNotRecommendable 检查错误是否为 NOT_RECOMMENDABLE
func IsNotRecommendable(err error) bool {
	return hasCode(err, ErrorCodeNotRecommendable)
}

// IsUndefined 检查错误是否为 UNDEFINED
func IsUndefined(err error) bool {
	return hasCode(err, ErrorCodeUndefined)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
