package event

import "time"

const OTPDeliveryDestination string = "otp_delivery"
const OTPDeliveryDestinationConsumerNotification string = "otp_delivery_notification"

// OTPDeliveryMessage asks the notification module to send a login code.
type OTPDeliveryMessage struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RequestID string    `json:"request_id"`
	Code      string    `json:"code"`
	ValidTill time.Time `json:"valid_till"`
}
