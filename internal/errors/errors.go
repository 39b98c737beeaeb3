package errors

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

// 错误定义
// 业务规则类错误（余额不足、折扣码不可用、游客限流）是预期结果，
// 以带 reason 的类型化错误返回给调用方，由前端渲染具体文案；
// 不变量被破坏属于致命错误（500），必须触发告警而不是静默修正。

// Reason 常量
const (
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ReasonWelcomeAlreadyUsed  = "WELCOME_ALREADY_USED"

	ReasonGuestLimitExceeded = "GUEST_LIMIT_EXCEEDED"

	ReasonCodeNotFound           = "CODE_NOT_FOUND"
	ReasonCodeInactive           = "CODE_INACTIVE"
	ReasonCodeNotYetStarted      = "CODE_NOT_YET_STARTED"
	ReasonCodeExpired            = "CODE_EXPIRED"
	ReasonBelowMinimum           = "BELOW_MINIMUM"
	ReasonGlobalLimitReached     = "GLOBAL_LIMIT_REACHED"
	ReasonPerAccountLimitReached = "PER_ACCOUNT_LIMIT_REACHED"

	ReasonOrderNotFound        = "ORDER_NOT_FOUND"
	ReasonEmptyOrder           = "EMPTY_ORDER"
	ReasonPaymentUnavailable   = "PAYMENT_PROVIDER_UNAVAILABLE"
	ReasonPaymentCreateFailed  = "PAYMENT_CREATE_FAILED"
	ReasonLockAcquireFailed    = "LOCK_ACQUIRE_FAILED"
	ReasonInvariantViolation   = "INVARIANT_VIOLATION"
)

// ===== 余额模块 =====

// ErrorInsufficientBalance 余额不足
func ErrorInsufficientBalance(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonInsufficientBalance, fmt.Sprintf(format, args...))
}

func IsInsufficientBalance(err error) bool {
	return errors.Reason(err) == ReasonInsufficientBalance
}

// ErrorAccountNotFound 账户不存在
func ErrorAccountNotFound(format string, args ...interface{}) *errors.Error {
	return errors.New(404, ReasonAccountNotFound, fmt.Sprintf(format, args...))
}

func IsAccountNotFound(err error) bool {
	return errors.Reason(err) == ReasonAccountNotFound
}

// ErrorWelcomeAlreadyUsed 新用户赠送已发放
func ErrorWelcomeAlreadyUsed(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonWelcomeAlreadyUsed, fmt.Sprintf(format, args...))
}

func IsWelcomeAlreadyUsed(err error) bool {
	return errors.Reason(err) == ReasonWelcomeAlreadyUsed
}

// ===== 游客限流模块 =====

// ErrorGuestLimitExceeded 游客额度已用尽
func ErrorGuestLimitExceeded(format string, args ...interface{}) *errors.Error {
	return errors.New(429, ReasonGuestLimitExceeded, fmt.Sprintf(format, args...))
}

func IsGuestLimitExceeded(err error) bool {
	return errors.Reason(err) == ReasonGuestLimitExceeded
}

// ===== 折扣码模块 =====

// ErrorCodeNotFound 折扣码不存在
func ErrorCodeNotFound(format string, args ...interface{}) *errors.Error {
	return errors.New(404, ReasonCodeNotFound, fmt.Sprintf(format, args...))
}

func IsCodeNotFound(err error) bool {
	return errors.Reason(err) == ReasonCodeNotFound
}

// ErrorCodeInactive 折扣码已停用
func ErrorCodeInactive(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonCodeInactive, fmt.Sprintf(format, args...))
}

func IsCodeInactive(err error) bool {
	return errors.Reason(err) == ReasonCodeInactive
}

// ErrorCodeNotYetStarted 折扣码未开始
func ErrorCodeNotYetStarted(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonCodeNotYetStarted, fmt.Sprintf(format, args...))
}

func IsCodeNotYetStarted(err error) bool {
	return errors.Reason(err) == ReasonCodeNotYetStarted
}

// ErrorCodeExpired 折扣码已过期
func ErrorCodeExpired(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonCodeExpired, fmt.Sprintf(format, args...))
}

func IsCodeExpired(err error) bool {
	return errors.Reason(err) == ReasonCodeExpired
}

// ErrorBelowMinimum 未达到最低消费金额
func ErrorBelowMinimum(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonBelowMinimum, fmt.Sprintf(format, args...))
}

func IsBelowMinimum(err error) bool {
	return errors.Reason(err) == ReasonBelowMinimum
}

// ErrorGlobalLimitReached 折扣码全局使用次数已达上限
func ErrorGlobalLimitReached(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonGlobalLimitReached, fmt.Sprintf(format, args...))
}

func IsGlobalLimitReached(err error) bool {
	return errors.Reason(err) == ReasonGlobalLimitReached
}

// ErrorPerAccountLimitReached 单账户使用次数已达上限
func ErrorPerAccountLimitReached(format string, args ...interface{}) *errors.Error {
	return errors.New(409, ReasonPerAccountLimitReached, fmt.Sprintf(format, args...))
}

func IsPerAccountLimitReached(err error) bool {
	return errors.Reason(err) == ReasonPerAccountLimitReached
}

// ===== 结账模块 =====

// ErrorOrderNotFound 订单不存在
func ErrorOrderNotFound(format string, args ...interface{}) *errors.Error {
	return errors.New(404, ReasonOrderNotFound, fmt.Sprintf(format, args...))
}

func IsOrderNotFound(err error) bool {
	return errors.Reason(err) == ReasonOrderNotFound
}

// ErrorEmptyOrder 订单行项目为空
func ErrorEmptyOrder(format string, args ...interface{}) *errors.Error {
	return errors.New(400, ReasonEmptyOrder, fmt.Sprintf(format, args...))
}

func IsEmptyOrder(err error) bool {
	return errors.Reason(err) == ReasonEmptyOrder
}

// ErrorPaymentUnavailable 支付服务不可用
func ErrorPaymentUnavailable(format string, args ...interface{}) *errors.Error {
	return errors.New(503, ReasonPaymentUnavailable, fmt.Sprintf(format, args...))
}

func IsPaymentUnavailable(err error) bool {
	return errors.Reason(err) == ReasonPaymentUnavailable
}

// ErrorPaymentCreateFailed 外部支付订单创建失败
func ErrorPaymentCreateFailed(format string, args ...interface{}) *errors.Error {
	return errors.New(502, ReasonPaymentCreateFailed, fmt.Sprintf(format, args...))
}

func IsPaymentCreateFailed(err error) bool {
	return errors.Reason(err) == ReasonPaymentCreateFailed
}

// ErrorLockAcquireFailed 获取分布式锁失败
func ErrorLockAcquireFailed(format string, args ...interface{}) *errors.Error {
	return errors.New(500, ReasonLockAcquireFailed, fmt.Sprintf(format, args...))
}

func IsLockAcquireFailed(err error) bool {
	return errors.Reason(err) == ReasonLockAcquireFailed
}

// ===== 不变量 =====

// ErrorInvariantViolation 账本不变量被破坏（余额为负、重放不一致等）
// 该类错误不允许被吞掉或修正，必须向上传播并触发告警
func ErrorInvariantViolation(format string, args ...interface{}) *errors.Error {
	return errors.New(500, ReasonInvariantViolation, fmt.Sprintf(format, args...))
}

func IsInvariantViolation(err error) bool {
	return errors.Reason(err) == ReasonInvariantViolation
}
