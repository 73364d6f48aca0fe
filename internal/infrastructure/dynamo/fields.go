package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID         = "user_id"
	fieldEmail          = "email"
	fieldPasswordHash   = "password_hash"
	fieldFirstName      = "first_name"
	fieldCart           = "cart"
	fieldWishlist       = "wishlist"
	fieldUpdatedAt      = "updated_at"
	fieldCreatedAt      = "created_at"
	fieldPurpose        = "purpose"
	fieldVerified       = "verified"
	fieldAttempts       = "attempts"
	fieldGatewayOrderID = "gateway_order_id"
	fieldStatus         = "status"
	fieldPaymentID      = "payment_id"
	fieldVerifiedAt     = "verified_at"
	fieldQuantity       = "quantity"
)

// Index names created by Bootstrap.
const (
	indexEmail         = "email-index"
	indexUserCreatedAt = "user_id-created_at-index"
)
