package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditMetrics 积分/促销服务指标
type CreditMetrics struct {
	// 余额检查相关指标
	BalanceCheckTotal    *prometheus.CounterVec   // 余额检查总数（按操作、结果）
	BalanceCheckDuration *prometheus.HistogramVec // 余额检查耗时

	// 扣减相关指标
	DeductTotal    *prometheus.CounterVec   // 扣减总数（按操作、结果）
	DeductDuration *prometheus.HistogramVec // 扣减耗时
	DeductAmount   *prometheus.CounterVec   // 扣减积分数（按操作）

	// 发放相关指标
	GrantTotal  *prometheus.CounterVec // 发放总数（按类型）
	GrantAmount *prometheus.CounterVec // 发放积分数（按类型）

	// 游客限流指标
	GuestCheckTotal *prometheus.CounterVec // 游客检查总数（按结果）

	// 折扣码指标
	DiscountValidateTotal *prometheus.CounterVec // 校验总数（按结果 reason）
	DiscountRedeemTotal   *prometheus.CounterVec // 核销总数（按结果）

	// 结账指标
	CheckoutTotal    *prometheus.CounterVec // 下单总数（按结果）
	CheckoutDuration prometheus.Histogram   // 下单耗时
	PaymentCallTotal *prometheus.CounterVec // 外部支付调用总数（按接口、结果）

	// 分布式锁指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewCreditMetrics 创建指标
func NewCreditMetrics() *CreditMetrics {
	return &CreditMetrics{
		BalanceCheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_balance_check_total",
				Help: "Total number of balance checks",
			},
			[]string{"action", "result"}, // result: allowed/denied/error
		),
		BalanceCheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_balance_check_duration_seconds",
				Help:    "Duration of balance check operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		DeductTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_deduct_total",
				Help: "Total number of credit deductions",
			},
			[]string{"action", "result"},
		),
		DeductDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_deduct_duration_seconds",
				Help:    "Duration of credit deduction operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		DeductAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_deduct_amount_total",
				Help: "Total credits deducted",
			},
			[]string{"action"},
		),

		GrantTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_grant_total",
				Help: "Total number of credit grants",
			},
			[]string{"kind"},
		),
		GrantAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_grant_amount_total",
				Help: "Total credits granted",
			},
			[]string{"kind"},
		),

		GuestCheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guest_quota_check_total",
				Help: "Total number of guest quota checks",
			},
			[]string{"result"},
		),

		DiscountValidateTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discount_validate_total",
				Help: "Total number of discount code validations",
			},
			[]string{"result"}, // ok 或具体拒绝 reason
		),
		DiscountRedeemTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discount_redeem_total",
				Help: "Total number of discount code redemptions",
			},
			[]string{"result"},
		),

		CheckoutTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_place_order_total",
				Help: "Total number of place-order attempts",
			},
			[]string{"result"},
		),
		CheckoutDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkout_place_order_duration_seconds",
				Help:    "Duration of place-order operations",
				Buckets: prometheus.DefBuckets,
			},
		),
		PaymentCallTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_payment_call_total",
				Help: "Total number of payment provider calls",
			},
			[]string{"call", "result"}, // call: create_order/create_link
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_lock_acquire_total",
				Help: "Total number of lock acquisitions",
			},
			[]string{"result"},
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *CreditMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例
func GetMetrics() *CreditMetrics {
	once.Do(func() {
		defaultMetrics = NewCreditMetrics()
	})
	return defaultMetrics
}
