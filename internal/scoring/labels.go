package scoring

// Dimension band codes. These are stable machine identifiers; the
// Chinese labels and tags beside them are part of the display contract
// consumed downstream and are carried verbatim, never regenerated.
const (
	SpeedInstant = "instant"
	SpeedFast    = "fast"
	SpeedNormal  = "normal"
	SpeedSlow    = "slow"
	SpeedUnknown = "unknown"

	FxRateGain = "rate_gain"
	FxZeroLoss = "zero_loss"
	FxNormal   = "normal"
	FxModerate = "moderate"
	FxSevere   = "severe"
	FxUnknown  = "unknown"

	KycLowFriction      = "low_friction"
	KycLightFriction    = "light_friction"
	KycModerateFriction = "moderate_friction"
	KycHighFriction     = "high_friction"
	KycInsufficientInfo = "insufficient_info"

	SettlementSuccess     = "success"
	SettlementFailureRisk = "failure_risk"
	SettlementNeedsReview = "needs_review"
)

// Display labels, per band.
const (
	labelSpeedInstant = "极速到账"
	labelSpeedFast    = "快速到账"
	labelSpeedNormal  = "正常到账"
	labelSpeedSlow    = "到账缓慢"
	labelSpeedUnknown = "时效未知"

	labelFxRateGain = "汇率优于市场价"
	labelFxZeroLoss = "零损耗"
	labelFxNormal   = "损耗正常"
	labelFxModerate = "损耗偏高"
	labelFxSevere   = "损耗严重"
	labelFxUnknown  = "损耗未知"

	labelKycLow          = "免验证"
	labelKycLight        = "轻度验证"
	labelKycModerate     = "中度验证"
	labelKycHigh         = "强验证/卡审"
	labelKycInsufficient = "验证情况未知"

	labelSettlementSuccess = "到账成功"
	labelSettlementFailure = "到账失败风险"
	labelSettlementReview  = "待人工复核"

	labelOverallHigh   = "高风险"
	labelOverallMedium = "中等风险"
	labelOverallLow    = "低风险"
)

// Display duration rendering.
const (
	durationInstantText  = "秒到"
	durationHourSuffix   = "小时"
	durationMinuteSuffix = "分钟"
)
