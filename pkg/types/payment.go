package types

type PaymentStatus string

const (
	PaymentStatusCreated                PaymentStatus = "CREATED"
	PaymentStatusRequiresPaymentMethod  PaymentStatus = "REQUIRES_PAYMENT_METHOD"
	PaymentStatusRequiresCustomerAction PaymentStatus = "REQUIRES_CUSTOMER_ACTION"
	PaymentStatusRequiresCapture        PaymentStatus = "REQUIRES_CAPTURE"
	PaymentStatusProcessing             PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded              PaymentStatus = "SUCCEEDED"
	PaymentStatusCancelled              PaymentStatus = "CANCELLED"
	PaymentStatusFailed                 PaymentStatus = "FAILED"
	PaymentStatusRefunded               PaymentStatus = "REFUNDED"
)

// IsTerminal reports whether no further lifecycle step applies.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusCancelled, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard          PaymentMethod = "CARD"
	PaymentMethodEWallet       PaymentMethod = "EWALLET"
	PaymentMethodOnlineBanking PaymentMethod = "ONLINE_BANKING"
	PaymentMethodWeChatPay     PaymentMethod = "WECHAT_PAY"
	PaymentMethodAlipay        PaymentMethod = "ALIPAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodEWallet, PaymentMethodOnlineBanking, PaymentMethodWeChatPay, PaymentMethodAlipay:
		return true
	}
	return false
}

const DefaultCurrency = "MYR"
