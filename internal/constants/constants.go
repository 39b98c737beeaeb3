package constants

// 时间格式常量
const (
	// TimeFormatMonth 月份格式 (YYYY-MM)
	TimeFormatMonth = "2006-01"
)

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "credit:balance:"
	// RedisKeyDeductLock 扣减锁 key 前缀
	RedisKeyDeductLock = "credit:deduct:lock:"
	// RedisKeyRedeemLock 折扣码核销锁 key 前缀
	RedisKeyRedeemLock = "promo:redeem:lock:"
)

// 积分流水类型常量（credit_transaction.kind）
const (
	// TxKindMonthlyReset 月度额度发放/重置
	TxKindMonthlyReset = "MONTHLY_RESET"
	// TxKindGenerationSpend 生成消耗
	TxKindGenerationSpend = "GENERATION_SPEND"
	// TxKindPurchaseBonus 购买赠送
	TxKindPurchaseBonus = "PURCHASE_BONUS"
	// TxKindManualGrant 人工发放
	TxKindManualGrant = "MANUAL_GRANT"
	// TxKindWelcomeGrant 新用户赠送
	TxKindWelcomeGrant = "WELCOME_GRANT"
)

// 折扣码类型常量
const (
	// DiscountKindPercentage 百分比折扣
	DiscountKindPercentage = "PERCENTAGE"
	// DiscountKindFixedAmount 固定金额折扣
	DiscountKindFixedAmount = "FIXED_AMOUNT"
)

// 订单状态常量
const (
	// OrderStatusPending 已落库，待创建外部订单
	OrderStatusPending = "pending"
	// OrderStatusRecorded 外部订单已创建
	OrderStatusRecorded = "recorded"
	// OrderStatusLinkCreated 支付链接已创建
	OrderStatusLinkCreated = "link_created"
	// OrderStatusPaid 支付成功
	OrderStatusPaid = "paid"
	// OrderStatusAbandoned 已放弃
	OrderStatusAbandoned = "abandoned"
)

// 支付结果状态常量（回调/MQ 事件）
const (
	// PaymentStatusPaid 支付成功
	PaymentStatusPaid = "PAID"
	// PaymentStatusAbandoned 放弃支付
	PaymentStatusAbandoned = "ABANDONED"
)

// 检查结果常量（用于指标）
const (
	// CheckResultAllowed 允许
	CheckResultAllowed = "allowed"
	// CheckResultDenied 拒绝
	CheckResultDenied = "denied"
	// CheckResultError 错误
	CheckResultError = "error"
)

// 锁结果常量（用于指标）
const (
	// LockResultSuccess 成功
	LockResultSuccess = "success"
	// LockResultFailed 失败
	LockResultFailed = "failed"
)

// 订单ID前缀常量
const (
	// OrderIDPrefixCheckout 结账订单ID前缀
	OrderIDPrefixCheckout = "order_"
)
