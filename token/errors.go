package token

import "errors"

var (
	// ErrInsufficientFunds indicates the sender balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("token: insufficient funds")

	// ErrInsufficientAllowance indicates the spender was not approved for the amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrTransferRejected indicates the recipient hook refused a transfer.
	ErrTransferRejected = errors.New("token: transfer rejected by recipient")

	// ErrNativeApproval indicates an approval was requested for the native asset.
	ErrNativeApproval = errors.New("token: native asset has no approvals")
)
